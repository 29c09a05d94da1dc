package authz

import (
	"context"
	"os"
	"testing"
)

func TestIsDatabaseAvailable(t *testing.T) {
	original := os.Getenv("TEST_POSTGRES_PRIMARY")
	defer func() {
		if original != "" {
			os.Setenv("TEST_POSTGRES_PRIMARY", original)
		} else {
			os.Unsetenv("TEST_POSTGRES_PRIMARY")
		}
	}()

	t.Run("returns true when env var is set", func(t *testing.T) {
		os.Setenv("TEST_POSTGRES_PRIMARY", "postgres://test")
		if !IsDatabaseAvailable() {
			t.Error("Expected IsDatabaseAvailable to return true when env var is set")
		}
	})

	t.Run("returns false when env var is not set", func(t *testing.T) {
		os.Unsetenv("TEST_POSTGRES_PRIMARY")
		if IsDatabaseAvailable() {
			t.Error("Expected IsDatabaseAvailable to return false when env var is not set")
		}
	})
}

// TestEngineOnSharedDatabase exercises the engine against the long-lived
// postgres instance CI provides via TEST_POSTGRES_PRIMARY. Unlike the
// containerized integration tests it shares the database with other runs, so
// it uses high ids and cleans up its rows.
func TestEngineOnSharedDatabase(t *testing.T) {
	_ = SkipIfNoDatabaseOrShort(t)

	db := RequireDatabase(t)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	engine := New(db, DefaultConfig())
	if err := engine.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	const (
		spaceID  = int64(910001)
		pageID   = int64(910002)
		authorID = int64(910003)
		otherID  = int64(910004)
	)

	_, err := db.ExecContext(ctx,
		"INSERT INTO spaces (id, name, owner_id) VALUES ($1, $2, $3)",
		spaceID, "shared-db-check", authorID,
	)
	if err != nil {
		t.Fatalf("Failed to insert space: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(ctx, "DELETE FROM spaces WHERE id = $1", spaceID)
	})

	_, err = db.ExecContext(ctx,
		"INSERT INTO pages (id, space_id, author_id, is_public) VALUES ($1, $2, $3, FALSE)",
		pageID, spaceID, authorID,
	)
	if err != nil {
		t.Fatalf("Failed to insert page: %v", err)
	}
	t.Cleanup(func() {
		db.ExecContext(ctx, "DELETE FROM pages WHERE id = $1", pageID)
	})

	allowed, err := engine.CanView(ctx, authorID, pageID, nil)
	if err != nil {
		t.Fatalf("CanView failed: %v", err)
	}
	if !allowed {
		t.Error("Expected the author to see their own page")
	}

	allowed, err = engine.CanView(ctx, otherID, pageID, nil)
	if err != nil {
		t.Fatalf("CanView failed: %v", err)
	}
	if allowed {
		t.Error("Expected an unrelated user to be denied")
	}

	visible, err := engine.VisibleSpaces(ctx, authorID, VisibilityPages, nil)
	if err != nil {
		t.Fatalf("VisibleSpaces failed: %v", err)
	}
	if !visible.Contains(spaceID) {
		t.Error("Expected the authored space in the author's visible set")
	}
}
