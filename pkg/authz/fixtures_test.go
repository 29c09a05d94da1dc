package authz

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE spaces (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			owner_id INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE space_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			space_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			granted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(space_id, user_id, role)
		);

		CREATE TABLE pages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			space_id INTEGER,
			author_id INTEGER NOT NULL,
			co_author_id INTEGER,
			social_group_id TEXT,
			is_public INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE page_relations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			page_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			relation TEXT NOT NULL,
			UNIQUE(page_id, user_id, relation)
		);

		CREATE TABLE space_grants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			space_id INTEGER NOT NULL,
			permission TEXT NOT NULL,
			agent_kind TEXT NOT NULL,
			agent TEXT NOT NULL,
			granted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(space_id, permission, agent_kind, agent)
		);

		CREATE TABLE user_global_roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			UNIQUE(user_id, role)
		);

		CREATE TABLE group_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			group_id TEXT NOT NULL,
			user_id INTEGER NOT NULL,
			UNIQUE(group_id, user_id)
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	return db
}

func createTestSpace(t *testing.T, db *sql.DB, name string, ownerID int64) int64 {
	t.Helper()

	result, err := db.Exec(`INSERT INTO spaces (name, owner_id) VALUES ($1, $2)`, name, ownerID)
	if err != nil {
		t.Fatalf("Failed to create space: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to get space id: %v", err)
	}
	return id
}

type testPage struct {
	spaceID       *int64
	authorID      int64
	coAuthorID    *int64
	socialGroupID *string
	isPublic      bool
}

func createTestPage(t *testing.T, db *sql.DB, page testPage) int64 {
	t.Helper()

	result, err := db.Exec(
		`INSERT INTO pages (space_id, author_id, co_author_id, social_group_id, is_public) VALUES ($1, $2, $3, $4, $5)`,
		page.spaceID, page.authorID, page.coAuthorID, page.socialGroupID, page.isPublic,
	)
	if err != nil {
		t.Fatalf("Failed to create page: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to get page id: %v", err)
	}
	return id
}

func addSpaceRole(t *testing.T, db *sql.DB, spaceID, userID int64, role SpaceRole) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO space_roles (space_id, user_id, role) VALUES ($1, $2, $3)`,
		spaceID, userID, string(role),
	)
	if err != nil {
		t.Fatalf("Failed to add space role: %v", err)
	}
}

func removeSpaceRole(t *testing.T, db *sql.DB, spaceID, userID int64, role SpaceRole) {
	t.Helper()

	_, err := db.Exec(
		`DELETE FROM space_roles WHERE space_id = $1 AND user_id = $2 AND role = $3`,
		spaceID, userID, string(role),
	)
	if err != nil {
		t.Fatalf("Failed to remove space role: %v", err)
	}
}

func addPageRelation(t *testing.T, db *sql.DB, pageID, userID int64, relation RelationField) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO page_relations (page_id, user_id, relation) VALUES ($1, $2, $3)`,
		pageID, userID, string(relation),
	)
	if err != nil {
		t.Fatalf("Failed to add page relation: %v", err)
	}
}

func addSpaceGrant(t *testing.T, db *sql.DB, spaceID int64, permission Permission, kind AgentKind, agent string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO space_grants (space_id, permission, agent_kind, agent) VALUES ($1, $2, $3, $4)`,
		spaceID, string(permission), string(kind), agent,
	)
	if err != nil {
		t.Fatalf("Failed to add space grant: %v", err)
	}
}

func addGlobalRole(t *testing.T, db *sql.DB, userID int64, role string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO user_global_roles (user_id, role) VALUES ($1, $2)`,
		userID, role,
	)
	if err != nil {
		t.Fatalf("Failed to add global role: %v", err)
	}
}

func addGroupMember(t *testing.T, db *sql.DB, groupID string, userID int64) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`,
		groupID, userID,
	)
	if err != nil {
		t.Fatalf("Failed to add group member: %v", err)
	}
}

func int64Ptr(v int64) *int64 { return &v }

func strPtr(v string) *string { return &v }
