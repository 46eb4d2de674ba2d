// Package workspace defines the core entity model and SQL store for the
// Curate research-data workspace: projects, folders, datasets, metadata
// templates, and the membership and permission rows that bind users to them.
//
// # Entity Model
//
// Resources form a strict hierarchy:
//
//	Project
//	  └── Folder (belongs to exactly one project)
//	        └── Dataset (belongs to at most one folder; draft datasets float free)
//
// Metadata templates sit alongside the hierarchy. A template is either global
// (available everywhere) or assigned to a single project or folder via the
// (assigned_to_kind, assigned_to_id) pair.
//
// Access is recorded at two levels:
//
//	ProjectMembership  - one row per (project, user); carries project-wide flags
//	FolderPermission   - one row per (folder, membership); carries folder flags
//
// A folder permission always hangs off a project membership. Deleting the
// membership cascades away its folder permissions at the database level, but
// the higher-level cascade engine removes them explicitly inside the same
// transaction so counts and guards stay consistent.
//
// # Permission Flags
//
// Membership flags imply each other in one direction only:
//
//	IsProjectAdmin = true  forces  CanCreateFolders and IsMetadataTemplateAdmin
//	IsFolderAdmin = true   forces  CanEdit and IsMetadataTemplateAdmin
//
// MembershipFlags.Normalize and PermissionFlags.Normalize apply these rules.
// Callers that accept flags from the outside must normalize before writing.
//
// # Locking Columns
//
// Every lockable table carries locked, locked_by, and locked_at columns.
// The LockRecord type exposes HeldBy and Expired helpers; the actual lock
// protocol (acquire, heartbeat, stale takeover) lives in pkg/locks.
//
// # Store
//
// Store wraps either a *sql.DB or a *sql.Tx behind the DBTX interface:
//
//	store := workspace.NewStore(db)
//	tx, _ := store.BeginTx(ctx)
//	txStore := store.WithTx(tx)
//	// txStore methods run inside the transaction
//
// All statements use $N placeholders, which both lib/pq and go-sqlite3
// accept, so the same store runs against Postgres in production and SQLite
// in-memory in unit tests. TouchProject bumps the project row inside a
// transaction and serializes concurrent cascades on the same project.
//
// # Migrations
//
// Postgres schema migrations are provided in migrations.go:
//
//	err := workspace.RunMigrations(ctx, db)
//
// The users table is owned by pkg/identity and must be migrated first.
//
// # Testing
//
// NewTestDB opens an in-memory SQLite database with the full schema, shared
// by the cascade, lock, and access test suites. Postgres-backed integration
// tests gate on TEST_POSTGRES_PRIMARY via SkipIfNoDatabase.
//
// # Related Packages
//
//   - pkg/locks: advisory lock manager over the lock columns
//   - pkg/cascade: membership and permission cascade engine
//   - pkg/access: per-user access resolution (view, edit, administer)
//   - pkg/identity: user accounts and invitation handling
package workspace
