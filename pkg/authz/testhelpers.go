package authz

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// SkipIfNoDatabase skips the test unless TEST_POSTGRES_PRIMARY points at a
// reachable postgres instance. The containerized integration tests (build tag
// "integration") provision their own database; these helpers instead target a
// long-lived shared instance, the way CI runs the engine against the same
// postgres the content layer uses.
func SkipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("TEST_POSTGRES_PRIMARY not set; skipping live database test")
	}

	return dbURL
}

// SkipIfNoDatabaseOrShort additionally skips in -short mode.
func SkipIfNoDatabaseOrShort(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping live database test in short mode")
	}

	return SkipIfNoDatabase(t)
}

// RequireDatabase opens and pings the shared test database, skipping the test
// when it is not configured or not reachable.
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := SkipIfNoDatabase(t)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("test database not reachable: %v", err)
	}

	return db
}

// IsDatabaseAvailable reports whether TEST_POSTGRES_PRIMARY is set. It does
// not test the connection.
func IsDatabaseAvailable() bool {
	return os.Getenv("TEST_POSTGRES_PRIMARY") != ""
}
