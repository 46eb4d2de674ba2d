package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const datasetColumns = `id, folder_id, name, created_by, publication_date, locked, locked_by, locked_at, created_at, updated_at`

func scanDataset(row rowScanner) (*Dataset, error) {
	var d Dataset
	var folderID uuid.NullUUID
	var publicationDate, lockedAt sql.NullTime
	var lockedBy sql.NullInt64

	err := row.Scan(
		&d.ID, &folderID, &d.Name, &d.CreatedBy, &publicationDate,
		&d.Lock.Locked, &lockedBy, &lockedAt,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if folderID.Valid {
		id := folderID.UUID
		d.FolderID = &id
	}
	if publicationDate.Valid {
		at := publicationDate.Time
		d.PublicationDate = &at
	}
	if lockedBy.Valid {
		id := lockedBy.Int64
		d.Lock.LockedBy = &id
	}
	if lockedAt.Valid {
		at := lockedAt.Time
		d.Lock.LockedAt = &at
	}

	return &d, nil
}

// CreateDataset inserts a new dataset row
func (s *Store) CreateDataset(ctx context.Context, d *Dataset) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}

	now := time.Now().UTC()
	var folderID interface{}
	if d.FolderID != nil {
		folderID = *d.FolderID
	}
	var publicationDate interface{}
	if d.PublicationDate != nil {
		publicationDate = *d.PublicationDate
	}

	query := `
		INSERT INTO datasets (id, folder_id, name, created_by, publication_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.q.ExecContext(ctx, query, d.ID, folderID, d.Name, d.CreatedBy, publicationDate, now, now)
	if err != nil {
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	d.CreatedAt = now
	d.UpdatedAt = now
	return nil
}

// GetDataset retrieves a dataset by ID
func (s *Store) GetDataset(ctx context.Context, id uuid.UUID) (*Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE id = $1`

	d, err := scanDataset(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return d, nil
}

// ListDatasets lists all datasets of a folder
func (s *Store) ListDatasets(ctx context.Context, folderID uuid.UUID) ([]*Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets WHERE folder_id = $1 ORDER BY created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}

	return datasets, rows.Err()
}

// ListDraftDatasets lists the unpublished, unassigned datasets of a user
func (s *Store) ListDraftDatasets(ctx context.Context, userID int64) ([]*Dataset, error) {
	query := `
		SELECT ` + datasetColumns + `
		FROM datasets
		WHERE created_by = $1 AND folder_id IS NULL AND publication_date IS NULL
		ORDER BY created_at ASC
	`
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list draft datasets: %w", err)
	}
	defer rows.Close()

	var datasets []*Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, d)
	}

	return datasets, rows.Err()
}

// UpdateDataset updates a dataset's mutable fields
func (s *Store) UpdateDataset(ctx context.Context, d *Dataset) error {
	d.UpdatedAt = time.Now().UTC()
	var folderID interface{}
	if d.FolderID != nil {
		folderID = *d.FolderID
	}
	var publicationDate interface{}
	if d.PublicationDate != nil {
		publicationDate = *d.PublicationDate
	}

	query := `
		UPDATE datasets
		SET folder_id = $1, name = $2, publication_date = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.q.ExecContext(ctx, query, folderID, d.Name, publicationDate, d.UpdatedAt, d.ID)
	if err != nil {
		return fmt.Errorf("failed to update dataset: %w", err)
	}
	return requireRowAffected(result, "dataset")
}

// DeleteDataset deletes a dataset row
func (s *Store) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	return requireRowAffected(result, "dataset")
}

// CountDatasets counts the datasets directly inside a folder
func (s *Store) CountDatasets(ctx context.Context, folderID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM datasets WHERE folder_id = $1`
	if err := s.q.QueryRowContext(ctx, query, folderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return count, nil
}

// ProjectHasDatasets reports whether any folder of the project contains a
// dataset. Consumed by the admin guard and by project delete protection.
func (s *Store) ProjectHasDatasets(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*)
		FROM datasets d
		JOIN folders f ON f.id = d.folder_id
		WHERE f.project_id = $1
	`
	if err := s.q.QueryRowContext(ctx, query, projectID).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check project datasets: %w", err)
	}
	return count > 0, nil
}

// FolderHasDatasets reports whether the folder contains a dataset
func (s *Store) FolderHasDatasets(ctx context.Context, folderID uuid.UUID) (bool, error) {
	count, err := s.CountDatasets(ctx, folderID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
