package authz

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the migrations for the tables the engine reads. The
// content layer owns the rows; the engine owns the shape.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create spaces table",
			SQL: `
				CREATE TABLE IF NOT EXISTS spaces (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					owner_id BIGINT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_spaces_owner_id ON spaces(owner_id);
			`,
		},
		{
			Version:     2,
			Description: "Create space_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS space_roles (
					id BIGSERIAL PRIMARY KEY,
					space_id BIGINT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL,
					role VARCHAR(50) NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(space_id, user_id, role)
				);

				CREATE INDEX idx_space_roles_space_id ON space_roles(space_id);
				CREATE INDEX idx_space_roles_user_id ON space_roles(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create pages table",
			SQL: `
				CREATE TABLE IF NOT EXISTS pages (
					id BIGSERIAL PRIMARY KEY,
					space_id BIGINT REFERENCES spaces(id) ON DELETE SET NULL,
					author_id BIGINT NOT NULL,
					co_author_id BIGINT,
					social_group_id VARCHAR(255),
					is_public BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_pages_space_id ON pages(space_id);
				CREATE INDEX idx_pages_author_id ON pages(author_id);
				CREATE INDEX idx_pages_co_author_id ON pages(co_author_id);
			`,
		},
		{
			Version:     4,
			Description: "Create page_relations table",
			SQL: `
				CREATE TABLE IF NOT EXISTS page_relations (
					id BIGSERIAL PRIMARY KEY,
					page_id BIGINT NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
					user_id BIGINT NOT NULL,
					relation VARCHAR(50) NOT NULL,
					UNIQUE(page_id, user_id, relation)
				);

				CREATE INDEX idx_page_relations_page_id ON page_relations(page_id);
				CREATE INDEX idx_page_relations_user_id ON page_relations(user_id);
			`,
		},
		{
			Version:     5,
			Description: "Create space_grants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS space_grants (
					id BIGSERIAL PRIMARY KEY,
					space_id BIGINT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
					permission VARCHAR(50) NOT NULL,
					agent_kind VARCHAR(50) NOT NULL,
					agent VARCHAR(255) NOT NULL,
					granted_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(space_id, permission, agent_kind, agent)
				);

				CREATE INDEX idx_space_grants_space_id ON space_grants(space_id);
				CREATE INDEX idx_space_grants_permission ON space_grants(permission);
			`,
		},
		{
			Version:     6,
			Description: "Create user_global_roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS user_global_roles (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL,
					role VARCHAR(50) NOT NULL,
					UNIQUE(user_id, role)
				);

				CREATE INDEX idx_user_global_roles_user_id ON user_global_roles(user_id);
			`,
		},
		{
			Version:     7,
			Description: "Create group_members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS group_members (
					id BIGSERIAL PRIMARY KEY,
					group_id VARCHAR(255) NOT NULL,
					user_id BIGINT NOT NULL,
					UNIQUE(group_id, user_id)
				);

				CREATE INDEX idx_group_members_user_id ON group_members(user_id);
				CREATE INDEX idx_group_members_group_id ON group_members(group_id);
			`,
		},
	}
}

// RunMigrations executes all pending migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS authz_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM authz_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO authz_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
