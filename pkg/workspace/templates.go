package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const templateColumns = `id, name, fields, assigned_to_kind, assigned_to_id, created_by, locked, locked_by, locked_at, created_at, updated_at`

func scanTemplate(row rowScanner) (*MetadataTemplate, error) {
	var t MetadataTemplate
	var assignedKind sql.NullString
	var assignedID uuid.NullUUID
	var createdBy, lockedBy sql.NullInt64
	var lockedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Name, &t.Fields, &assignedKind, &assignedID, &createdBy,
		&t.Lock.Locked, &lockedBy, &lockedAt,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if assignedKind.Valid {
		kind := Kind(assignedKind.String)
		t.AssignedToKind = &kind
	}
	if assignedID.Valid {
		id := assignedID.UUID
		t.AssignedToID = &id
	}
	if createdBy.Valid {
		id := createdBy.Int64
		t.CreatedBy = &id
	}
	if lockedBy.Valid {
		id := lockedBy.Int64
		t.Lock.LockedBy = &id
	}
	if lockedAt.Valid {
		at := lockedAt.Time
		t.Lock.LockedAt = &at
	}

	return &t, nil
}

// CreateTemplate inserts a new metadata template
func (s *Store) CreateTemplate(ctx context.Context, t *MetadataTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	now := time.Now().UTC()
	var assignedKind interface{}
	if t.AssignedToKind != nil {
		assignedKind = string(*t.AssignedToKind)
	}
	var assignedID interface{}
	if t.AssignedToID != nil {
		assignedID = *t.AssignedToID
	}
	var createdBy interface{}
	if t.CreatedBy != nil {
		createdBy = *t.CreatedBy
	}

	query := `
		INSERT INTO metadata_templates (id, name, fields, assigned_to_kind, assigned_to_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query, t.ID, t.Name, t.Fields, assignedKind, assignedID, createdBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to create metadata template: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetTemplate retrieves a metadata template by ID
func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*MetadataTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM metadata_templates WHERE id = $1`

	t, err := scanTemplate(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("metadata template %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata template: %w", err)
	}
	return t, nil
}

// ListGlobalTemplates lists templates that are not assigned to any resource
func (s *Store) ListGlobalTemplates(ctx context.Context) ([]*MetadataTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM metadata_templates
		WHERE assigned_to_kind IS NULL
		ORDER BY name ASC
	`
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list global templates: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// ListTemplatesForProject lists the templates available inside a project:
// the globally shared ones plus any assigned to the project itself.
func (s *Store) ListTemplatesForProject(ctx context.Context, projectID uuid.UUID) ([]*MetadataTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM metadata_templates
		WHERE assigned_to_kind IS NULL
		   OR (assigned_to_kind = $1 AND assigned_to_id = $2)
		ORDER BY name ASC
	`
	rows, err := s.q.QueryContext(ctx, query, string(KindProject), projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project templates: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

// ListTemplatesForFolder lists the templates available inside a folder:
// global templates, templates assigned to the parent project, and templates
// assigned to the folder itself.
func (s *Store) ListTemplatesForFolder(ctx context.Context, folderID, projectID uuid.UUID) ([]*MetadataTemplate, error) {
	query := `
		SELECT ` + templateColumns + `
		FROM metadata_templates
		WHERE assigned_to_kind IS NULL
		   OR (assigned_to_kind = $1 AND assigned_to_id = $2)
		   OR (assigned_to_kind = $3 AND assigned_to_id = $4)
		ORDER BY name ASC
	`
	rows, err := s.q.QueryContext(ctx, query,
		string(KindProject), projectID,
		string(KindFolder), folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folder templates: %w", err)
	}
	defer rows.Close()
	return collectTemplates(rows)
}

func collectTemplates(rows *sql.Rows) ([]*MetadataTemplate, error) {
	var templates []*MetadataTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metadata template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// UpdateTemplate updates a template's name, fields, and assignment
func (s *Store) UpdateTemplate(ctx context.Context, t *MetadataTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	var assignedKind interface{}
	if t.AssignedToKind != nil {
		assignedKind = string(*t.AssignedToKind)
	}
	var assignedID interface{}
	if t.AssignedToID != nil {
		assignedID = *t.AssignedToID
	}

	query := `
		UPDATE metadata_templates
		SET name = $1, fields = $2, assigned_to_kind = $3, assigned_to_id = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.q.ExecContext(ctx, query, t.Name, t.Fields, assignedKind, assignedID, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("failed to update metadata template: %w", err)
	}
	return requireRowAffected(result, "metadata template")
}

// DeleteTemplate deletes a metadata template
func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM metadata_templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete metadata template: %w", err)
	}
	return requireRowAffected(result, "metadata template")
}
