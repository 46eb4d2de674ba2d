package workspace

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SkipIfNoDatabase skips the test if TEST_POSTGRES_PRIMARY environment variable is not set.
// This allows tests to run in CI where the database is available, but skip locally if not configured.
func SkipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv("TEST_POSTGRES_PRIMARY")
	if dbURL == "" {
		t.Skip("Skipping test: TEST_POSTGRES_PRIMARY environment variable not set (database not available)")
	}

	return dbURL
}

// RequireDatabase gets the database connection or skips the test if not available.
// Returns a connected database instance.
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := SkipIfNoDatabase(t)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}

	return db
}

// NewTestDB opens an in-memory SQLite database with the full workspace schema.
// Unit tests across the authorization packages share this helper so the
// cascade, lock, and access logic can run against real SQL without Postgres.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	// Each sqlite :memory: connection is its own database, so the pool
	// must stay on a single connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	// SQLite rendition of the Postgres migrations
	_, err = db.Exec(`
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			is_pending INTEGER NOT NULL DEFAULT 0,
			is_global_template_admin INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE invitations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			accepted_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE metadata_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			fields TEXT NOT NULL DEFAULT '[]',
			assigned_to_kind TEXT,
			assigned_to_id TEXT,
			created_by INTEGER,
			locked INTEGER NOT NULL DEFAULT 0,
			locked_by INTEGER,
			locked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_by INTEGER,
			members_count INTEGER NOT NULL DEFAULT 0,
			locked INTEGER NOT NULL DEFAULT 0,
			locked_by INTEGER,
			locked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE folders (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			storage_ref TEXT NOT NULL DEFAULT '',
			metadata_template_id TEXT,
			members_count INTEGER NOT NULL DEFAULT 0,
			datasets_count INTEGER NOT NULL DEFAULT 0,
			created_by INTEGER,
			locked INTEGER NOT NULL DEFAULT 0,
			locked_by INTEGER,
			locked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE project_memberships (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			member_id INTEGER NOT NULL,
			is_project_admin INTEGER NOT NULL DEFAULT 0,
			can_create_folders INTEGER NOT NULL DEFAULT 0,
			is_metadata_template_admin INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(project_id, member_id)
		);

		CREATE TABLE folder_permissions (
			id TEXT PRIMARY KEY,
			folder_id TEXT NOT NULL REFERENCES folders(id) ON DELETE CASCADE,
			project_membership_id TEXT NOT NULL REFERENCES project_memberships(id) ON DELETE CASCADE,
			is_folder_admin INTEGER NOT NULL DEFAULT 0,
			is_metadata_template_admin INTEGER NOT NULL DEFAULT 0,
			can_edit INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(folder_id, project_membership_id)
		);

		CREATE TABLE datasets (
			id TEXT PRIMARY KEY,
			folder_id TEXT REFERENCES folders(id),
			name TEXT NOT NULL,
			created_by INTEGER NOT NULL,
			publication_date TIMESTAMP,
			locked INTEGER NOT NULL DEFAULT 0,
			locked_by INTEGER,
			locked_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		t.Fatalf("Failed to create test tables: %v", err)
	}

	return db
}

// CreateTestUser inserts a user row and returns its ID
func CreateTestUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()

	result, err := db.Exec(
		`INSERT INTO users (username, email) VALUES ($1, $2)`,
		username, username+"@example.com")
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		t.Fatalf("Failed to get test user ID: %v", err)
	}
	return id
}

// MakeGlobalTemplateAdmin flags the user as a global template admin
func MakeGlobalTemplateAdmin(t *testing.T, db *sql.DB, userID int64) {
	t.Helper()

	if _, err := db.Exec(
		`UPDATE users SET is_global_template_admin = 1 WHERE id = $1`, userID); err != nil {
		t.Fatalf("Failed to flag global template admin: %v", err)
	}
}
