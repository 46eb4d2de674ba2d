package workspace

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all workspace migrations. The users table is owned
// by the identity package and must be migrated first.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create metadata_templates table",
			SQL: `
				CREATE TABLE IF NOT EXISTS metadata_templates (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					fields JSONB NOT NULL DEFAULT '[]',
					assigned_to_kind VARCHAR(50),
					assigned_to_id UUID,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					locked BOOLEAN NOT NULL DEFAULT FALSE,
					locked_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					locked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_metadata_templates_assignment ON metadata_templates(assigned_to_kind, assigned_to_id);
			`,
		},
		{
			Version:     2,
			Description: "Create projects table",
			SQL: `
				CREATE TABLE IF NOT EXISTS projects (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					members_count INT NOT NULL DEFAULT 0,
					locked BOOLEAN NOT NULL DEFAULT FALSE,
					locked_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					locked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     3,
			Description: "Create folders table",
			SQL: `
				CREATE TABLE IF NOT EXISTS folders (
					id UUID PRIMARY KEY,
					project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					storage_ref TEXT NOT NULL DEFAULT '',
					metadata_template_id UUID REFERENCES metadata_templates(id) ON DELETE SET NULL,
					members_count INT NOT NULL DEFAULT 0,
					datasets_count INT NOT NULL DEFAULT 0,
					created_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					locked BOOLEAN NOT NULL DEFAULT FALSE,
					locked_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					locked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_folders_project_id ON folders(project_id);
			`,
		},
		{
			Version:     4,
			Description: "Create project_memberships table",
			SQL: `
				CREATE TABLE IF NOT EXISTS project_memberships (
					id UUID PRIMARY KEY,
					project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					member_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					is_project_admin BOOLEAN NOT NULL DEFAULT FALSE,
					can_create_folders BOOLEAN NOT NULL DEFAULT FALSE,
					is_metadata_template_admin BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(project_id, member_id)
				);

				CREATE INDEX idx_project_memberships_project_id ON project_memberships(project_id);
				CREATE INDEX idx_project_memberships_member_id ON project_memberships(member_id);
			`,
		},
		{
			Version:     5,
			Description: "Create folder_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS folder_permissions (
					id UUID PRIMARY KEY,
					folder_id UUID NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
					project_membership_id UUID NOT NULL REFERENCES project_memberships(id) ON DELETE CASCADE,
					is_folder_admin BOOLEAN NOT NULL DEFAULT FALSE,
					is_metadata_template_admin BOOLEAN NOT NULL DEFAULT FALSE,
					can_edit BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(folder_id, project_membership_id)
				);

				CREATE INDEX idx_folder_permissions_folder_id ON folder_permissions(folder_id);
				CREATE INDEX idx_folder_permissions_membership_id ON folder_permissions(project_membership_id);
			`,
		},
		{
			Version:     6,
			Description: "Create datasets table",
			SQL: `
				CREATE TABLE IF NOT EXISTS datasets (
					id UUID PRIMARY KEY,
					folder_id UUID REFERENCES folders(id),
					name VARCHAR(255) NOT NULL,
					created_by BIGINT NOT NULL REFERENCES users(id),
					publication_date TIMESTAMP,
					locked BOOLEAN NOT NULL DEFAULT FALSE,
					locked_by BIGINT REFERENCES users(id) ON DELETE SET NULL,
					locked_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_datasets_folder_id ON datasets(folder_id);
				CREATE INDEX idx_datasets_created_by ON datasets(created_by);
			`,
		},
	}
}

// RunMigrations executes all pending workspace migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS workspace_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM workspace_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
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
			"INSERT INTO workspace_migrations (version, description) VALUES ($1, $2)",
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
