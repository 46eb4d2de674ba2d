package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const membershipColumns = `id, project_id, member_id, is_project_admin, can_create_folders, is_metadata_template_admin, created_at, updated_at`

func scanMembership(row rowScanner) (*ProjectMembership, error) {
	var m ProjectMembership
	err := row.Scan(
		&m.ID, &m.ProjectID, &m.MemberID,
		&m.IsProjectAdmin, &m.CanCreateFolders, &m.IsMetadataTemplateAdmin,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateMembership inserts a new project membership
func (s *Store) CreateMembership(ctx context.Context, m *ProjectMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO project_memberships
			(id, project_id, member_id, is_project_admin, can_create_folders, is_metadata_template_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		m.ID, m.ProjectID, m.MemberID,
		m.IsProjectAdmin, m.CanCreateFolders, m.IsMetadataTemplateAdmin,
		now, now,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("membership for user %d on project %s already exists: %w", m.MemberID, m.ProjectID, ErrConflict)
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMembership retrieves a membership by ID
func (s *Store) GetMembership(ctx context.Context, id uuid.UUID) (*ProjectMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE id = $1`

	m, err := scanMembership(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// GetMembershipForUser retrieves the membership of a user on a project
func (s *Store) GetMembershipForUser(ctx context.Context, projectID uuid.UUID, userID int64) (*ProjectMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = $1 AND member_id = $2`

	m, err := scanMembership(s.q.QueryRowContext(ctx, query, projectID, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("membership for user %d on project %s: %w", userID, projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// ListMemberships lists all memberships of a project
func (s *Store) ListMemberships(ctx context.Context, projectID uuid.UUID) ([]*ProjectMembership, error) {
	query := `SELECT ` + membershipColumns + ` FROM project_memberships WHERE project_id = $1 ORDER BY created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*ProjectMembership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// UpdateMembershipFlags replaces the flag set of a membership
func (s *Store) UpdateMembershipFlags(ctx context.Context, id uuid.UUID, flags MembershipFlags) error {
	query := `
		UPDATE project_memberships
		SET is_project_admin = $1, can_create_folders = $2, is_metadata_template_admin = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.q.ExecContext(ctx, query,
		flags.IsProjectAdmin, flags.CanCreateFolders, flags.IsMetadataTemplateAdmin,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	return requireRowAffected(result, "membership")
}

// DeleteMembership deletes a membership row; its folder permissions cascade
func (s *Store) DeleteMembership(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM project_memberships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return requireRowAffected(result, "membership")
}

// CountProjectAdmins counts memberships with is_project_admin on a project
func (s *Store) CountProjectAdmins(ctx context.Context, projectID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM project_memberships WHERE project_id = $1 AND is_project_admin = TRUE`
	if err := s.q.QueryRowContext(ctx, query, projectID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count project admins: %w", err)
	}
	return count, nil
}

const permissionColumns = `fp.id, fp.folder_id, fp.project_membership_id, m.member_id, fp.is_folder_admin, fp.is_metadata_template_admin, fp.can_edit, fp.created_at, fp.updated_at`

const permissionFrom = `
	FROM folder_permissions fp
	JOIN project_memberships m ON m.id = fp.project_membership_id
`

func scanPermission(row rowScanner) (*FolderPermission, error) {
	var p FolderPermission
	err := row.Scan(
		&p.ID, &p.FolderID, &p.ProjectMembershipID, &p.MemberID,
		&p.IsFolderAdmin, &p.IsMetadataTemplateAdmin, &p.CanEdit,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePermission inserts a new folder permission
func (s *Store) CreatePermission(ctx context.Context, p *FolderPermission) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO folder_permissions
			(id, folder_id, project_membership_id, is_folder_admin, is_metadata_template_admin, can_edit, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.q.ExecContext(ctx, query,
		p.ID, p.FolderID, p.ProjectMembershipID,
		p.IsFolderAdmin, p.IsMetadataTemplateAdmin, p.CanEdit,
		now, now,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("permission for membership %s on folder %s already exists: %w", p.ProjectMembershipID, p.FolderID, ErrConflict)
		}
		return fmt.Errorf("failed to create permission: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPermission retrieves a folder permission by ID
func (s *Store) GetPermission(ctx context.Context, id uuid.UUID) (*FolderPermission, error) {
	query := `SELECT ` + permissionColumns + permissionFrom + ` WHERE fp.id = $1`

	p, err := scanPermission(s.q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("permission %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return p, nil
}

// GetPermissionForMembership retrieves the permission a membership holds on a folder
func (s *Store) GetPermissionForMembership(ctx context.Context, folderID, membershipID uuid.UUID) (*FolderPermission, error) {
	query := `SELECT ` + permissionColumns + permissionFrom + ` WHERE fp.folder_id = $1 AND fp.project_membership_id = $2`

	p, err := scanPermission(s.q.QueryRowContext(ctx, query, folderID, membershipID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("permission for membership %s on folder %s: %w", membershipID, folderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return p, nil
}

// GetPermissionForUser retrieves the permission a user holds on a folder
func (s *Store) GetPermissionForUser(ctx context.Context, folderID uuid.UUID, userID int64) (*FolderPermission, error) {
	query := `SELECT ` + permissionColumns + permissionFrom + ` WHERE fp.folder_id = $1 AND m.member_id = $2`

	p, err := scanPermission(s.q.QueryRowContext(ctx, query, folderID, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("permission for user %d on folder %s: %w", userID, folderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return p, nil
}

// ListFolderPermissions lists all permissions on a folder
func (s *Store) ListFolderPermissions(ctx context.Context, folderID uuid.UUID) ([]*FolderPermission, error) {
	query := `SELECT ` + permissionColumns + permissionFrom + ` WHERE fp.folder_id = $1 ORDER BY fp.created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

// ListMembershipPermissions lists all folder permissions derived from a membership
func (s *Store) ListMembershipPermissions(ctx context.Context, membershipID uuid.UUID) ([]*FolderPermission, error) {
	query := `SELECT ` + permissionColumns + permissionFrom + ` WHERE fp.project_membership_id = $1 ORDER BY fp.created_at ASC`

	rows, err := s.q.QueryContext(ctx, query, membershipID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	return collectPermissions(rows)
}

func collectPermissions(rows *sql.Rows) ([]*FolderPermission, error) {
	var permissions []*FolderPermission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// UpdatePermissionFlags replaces the flag set of a folder permission
func (s *Store) UpdatePermissionFlags(ctx context.Context, id uuid.UUID, flags PermissionFlags) error {
	query := `
		UPDATE folder_permissions
		SET is_folder_admin = $1, is_metadata_template_admin = $2, can_edit = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := s.q.ExecContext(ctx, query,
		flags.IsFolderAdmin, flags.IsMetadataTemplateAdmin, flags.CanEdit,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update permission: %w", err)
	}
	return requireRowAffected(result, "permission")
}

// DeletePermission deletes a folder permission row
func (s *Store) DeletePermission(ctx context.Context, id uuid.UUID) error {
	result, err := s.q.ExecContext(ctx, `DELETE FROM folder_permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	return requireRowAffected(result, "permission")
}

// DeleteMembershipPermissions deletes all folder permissions of a membership
func (s *Store) DeleteMembershipPermissions(ctx context.Context, membershipID uuid.UUID) error {
	_, err := s.q.ExecContext(ctx,
		`DELETE FROM folder_permissions WHERE project_membership_id = $1`, membershipID)
	if err != nil {
		return fmt.Errorf("failed to delete membership permissions: %w", err)
	}
	return nil
}

// CountFolderAdmins counts permissions with is_folder_admin on a folder
func (s *Store) CountFolderAdmins(ctx context.Context, folderID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM folder_permissions WHERE folder_id = $1 AND is_folder_admin = TRUE`
	if err := s.q.QueryRowContext(ctx, query, folderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count folder admins: %w", err)
	}
	return count, nil
}
