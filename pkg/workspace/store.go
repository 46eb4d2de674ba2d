package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBTX is the subset of database/sql shared by *sql.DB and *sql.Tx. All
// store methods run against it so cascade operations can reuse the same
// queries inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store handles workspace data persistence
type Store struct {
	db *sql.DB
	q  DBTX
}

// NewStore creates a new workspace store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

// WithTx returns a store whose queries run inside the given transaction
func (s *Store) WithTx(tx *sql.Tx) *Store {
	return &Store{db: s.db, q: tx}
}

// BeginTx starts a transaction on the underlying database
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const projectColumns = `id, name, description, created_by, members_count, locked, locked_by, locked_at, created_at, updated_at`

func scanProject(row rowScanner) (*Project, error) {
	var p Project
	var createdBy, lockedBy sql.NullInt64
	var lockedAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &createdBy, &p.MembersCount,
		&p.Lock.Locked, &lockedBy, &lockedAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if createdBy.Valid {
		id := createdBy.Int64
		p.CreatedBy = &id
	}
	if lockedBy.Valid {
		id := lockedBy.Int64
		p.Lock.LockedBy = &id
	}
	if lockedAt.Valid {
		at := lockedAt.Time
		p.Lock.LockedAt = &at
	}

	return &p, nil
}

// CreateProject inserts a new project row
func (s *Store) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO projects (id, name, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.q.ExecContext(ctx, query, p.ID, p.Name, p.Description, p.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetProject retrieves a project by ID
func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return p, nil
}

// ListProjectsForUser lists projects the user holds a membership on
func (s *Store) ListProjectsForUser(ctx context.Context, userID int64) ([]*Project, error) {
	query := `
		SELECT ` + prefixColumns("p", projectColumns) + `
		FROM projects p
		JOIN project_memberships m ON m.project_id = p.id
		WHERE m.member_id = $1
		ORDER BY p.name ASC
	`
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

// UpdateProject updates a project's mutable fields
func (s *Store) UpdateProject(ctx context.Context, p *Project) error {
	p.UpdatedAt = time.Now().UTC()
	query := `UPDATE projects SET name = $1, description = $2, updated_at = $3 WHERE id = $4`
	result, err := s.q.ExecContext(ctx, query, p.Name, p.Description, p.UpdatedAt, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	return requireRowAffected(result, "project")
}

// DeleteProject deletes a project row. Folders, memberships and permissions
// go with it through ON DELETE CASCADE; callers are responsible for the
// delete-protection checks.
func (s *Store) DeleteProject(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return requireRowAffected(result, "project")
}

// TouchProject bumps the project row. Inside a transaction this doubles as
// the per-project write serialization point for cascade operations: all
// membership mutations of one project queue on this row lock.
func (s *Store) TouchProject(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE projects SET updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}
	return requireRowAffected(result, "project")
}

// RefreshProjectMembersCount recomputes the project's members_count
func (s *Store) RefreshProjectMembersCount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE projects
		SET members_count = (SELECT COUNT(*) FROM project_memberships WHERE project_id = $1)
		WHERE id = $1
	`
	if _, err := s.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to refresh project members count: %w", err)
	}
	return nil
}

const folderColumns = `id, project_id, name, storage_ref, metadata_template_id, members_count, datasets_count, created_by, locked, locked_by, locked_at, created_at, updated_at`

func scanFolder(row rowScanner) (*Folder, error) {
	var f Folder
	var templateID uuid.NullUUID
	var createdBy, lockedBy sql.NullInt64
	var lockedAt sql.NullTime

	err := row.Scan(
		&f.ID, &f.ProjectID, &f.Name, &f.StorageRef, &templateID,
		&f.MembersCount, &f.DatasetsCount, &createdBy,
		&f.Lock.Locked, &lockedBy, &lockedAt,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if templateID.Valid {
		id := templateID.UUID
		f.MetadataTemplateID = &id
	}
	if createdBy.Valid {
		id := createdBy.Int64
		f.CreatedBy = &id
	}
	if lockedBy.Valid {
		id := lockedBy.Int64
		f.Lock.LockedBy = &id
	}
	if lockedAt.Valid {
		at := lockedAt.Time
		f.Lock.LockedAt = &at
	}

	return &f, nil
}

// CreateFolder inserts a new folder row
func (s *Store) CreateFolder(ctx context.Context, f *Folder) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO folders (id, project_id, name, storage_ref, metadata_template_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	var templateID interface{}
	if f.MetadataTemplateID != nil {
		templateID = *f.MetadataTemplateID
	}
	_, err := s.q.ExecContext(ctx, query,
		f.ID, f.ProjectID, f.Name, f.StorageRef, templateID, f.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to create folder: %w", err)
	}

	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

// GetFolder retrieves a folder by ID
func (s *Store) GetFolder(ctx context.Context, id uuid.UUID) (*Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE id = $1`

	f, err := scanFolder(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return f, nil
}

// ListFolders lists all folders of a project
func (s *Store) ListFolders(ctx context.Context, projectID uuid.UUID) ([]*Folder, error) {
	query := `SELECT ` + folderColumns + ` FROM folders WHERE project_id = $1 ORDER BY created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	return collectFolders(rows)
}

// ListFoldersForUser lists the project folders the user holds a permission on
func (s *Store) ListFoldersForUser(ctx context.Context, projectID uuid.UUID, userID int64) ([]*Folder, error) {
	query := `
		SELECT ` + prefixColumns("f", folderColumns) + `
		FROM folders f
		JOIN folder_permissions fp ON fp.folder_id = f.id
		JOIN project_memberships m ON m.id = fp.project_membership_id
		WHERE f.project_id = $1 AND m.member_id = $2
		ORDER BY f.created_at ASC
	`
	rows, err := s.q.QueryContext(ctx, query, projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	return collectFolders(rows)
}

func collectFolders(rows *sql.Rows) ([]*Folder, error) {
	var folders []*Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// UpdateFolder updates a folder's mutable fields
func (s *Store) UpdateFolder(ctx context.Context, f *Folder) error {
	f.UpdatedAt = time.Now().UTC()
	var templateID interface{}
	if f.MetadataTemplateID != nil {
		templateID = *f.MetadataTemplateID
	}
	query := `
		UPDATE folders
		SET name = $1, storage_ref = $2, metadata_template_id = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.q.ExecContext(ctx, query, f.Name, f.StorageRef, templateID, f.UpdatedAt, f.ID)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	return requireRowAffected(result, "folder")
}

// DeleteFolder deletes a folder row; permissions cascade with it
func (s *Store) DeleteFolder(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	return requireRowAffected(result, "folder")
}

// RefreshFolderMembersCount recomputes the folder's members_count
func (s *Store) RefreshFolderMembersCount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE folders
		SET members_count = (SELECT COUNT(*) FROM folder_permissions WHERE folder_id = $1)
		WHERE id = $1
	`
	if _, err := s.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to refresh folder members count: %w", err)
	}
	return nil
}

// RefreshFolderDatasetsCount recomputes the folder's datasets_count
func (s *Store) RefreshFolderDatasetsCount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE folders
		SET datasets_count = (SELECT COUNT(*) FROM datasets WHERE folder_id = $1)
		WHERE id = $1
	`
	if _, err := s.q.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to refresh folder datasets count: %w", err)
	}
	return nil
}

func requireRowAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}

// prefixColumns qualifies a comma separated column list with a table alias
func prefixColumns(alias, columns string) string {
	out := ""
	start := 0
	for i := 0; i <= len(columns); i++ {
		if i == len(columns) || columns[i] == ',' {
			col := columns[start:i]
			for len(col) > 0 && col[0] == ' ' {
				col = col[1:]
			}
			if out != "" {
				out += ", "
			}
			out += alias + "." + col
			start = i + 1
		}
	}
	return out
}
