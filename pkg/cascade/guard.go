package cascade

import (
	"context"

	"github.com/google/uuid"

	"github.com/curateio/curate/pkg/workspace"
)

// Guard enforces the last-admin invariants: a project or folder that still
// contains datasets must keep at least one admin, so nobody can orphan data
// by removing or demoting its final administrator. The metadata template
// admin flag is deliberately not guarded; losing the last template admin
// leaves the resource fully manageable.
//
// The escape hatch is dataset emptiness. While a project or folder holds no
// dataset anywhere beneath it, its last admin may leave, be demoted, or be
// swept away in a bulk replacement: there is no data left to be locked out
// of. Membership counts play no part in the rule.
type Guard struct {
	store *workspace.Store
}

// NewGuard creates a guard over the given store. Inside a cascade
// transaction, pass the transactional store so checks see pending writes.
func NewGuard(store *workspace.Store) *Guard {
	return &Guard{store: store}
}

// CheckMembershipRemoval rejects removing the membership when it is the
// last admin of a project that still contains datasets.
func (g *Guard) CheckMembershipRemoval(ctx context.Context, m *workspace.ProjectMembership) error {
	if !m.IsProjectAdmin {
		return nil
	}
	admins, err := g.store.CountProjectAdmins(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	if admins > 1 {
		return nil
	}
	has, err := g.store.ProjectHasDatasets(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return workspace.NewForbiddenError("cannot remove the last admin of a project that contains datasets")
}

// CheckMembershipDowngrade rejects clearing the admin flag on the last
// admin of a project that still contains datasets.
func (g *Guard) CheckMembershipDowngrade(ctx context.Context, m *workspace.ProjectMembership, newFlags workspace.MembershipFlags) error {
	if !m.IsProjectAdmin || newFlags.IsProjectAdmin {
		return nil
	}
	admins, err := g.store.CountProjectAdmins(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	if admins > 1 {
		return nil
	}
	has, err := g.store.ProjectHasDatasets(ctx, m.ProjectID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return workspace.NewForbiddenError("cannot demote the last admin of a project that contains datasets")
}

// CheckReplacementMemberships validates the final state of a bulk
// replacement before anything is written: while the project contains
// datasets, the resulting membership set must hold at least one admin.
func (g *Guard) CheckReplacementMemberships(ctx context.Context, projectID uuid.UUID, flags []workspace.MembershipFlags) error {
	for _, f := range flags {
		if f.IsProjectAdmin {
			return nil
		}
	}
	has, err := g.store.ProjectHasDatasets(ctx, projectID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return workspace.NewForbiddenError("replacement would leave a project that contains datasets without an admin")
}

// CheckPermissionRemoval rejects removing the last admin permission of a
// folder that still contains datasets.
func (g *Guard) CheckPermissionRemoval(ctx context.Context, p *workspace.FolderPermission) error {
	if !p.IsFolderAdmin {
		return nil
	}
	admins, err := g.store.CountFolderAdmins(ctx, p.FolderID)
	if err != nil {
		return err
	}
	if admins > 1 {
		return nil
	}
	has, err := g.store.FolderHasDatasets(ctx, p.FolderID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return workspace.NewForbiddenError("cannot remove the last admin of a folder that contains datasets")
}

// CheckPermissionDowngrade rejects clearing the folder admin flag on the
// last admin of a folder that still contains datasets.
func (g *Guard) CheckPermissionDowngrade(ctx context.Context, p *workspace.FolderPermission, newFlags workspace.PermissionFlags) error {
	if !p.IsFolderAdmin || newFlags.IsFolderAdmin {
		return nil
	}
	admins, err := g.store.CountFolderAdmins(ctx, p.FolderID)
	if err != nil {
		return err
	}
	if admins > 1 {
		return nil
	}
	has, err := g.store.FolderHasDatasets(ctx, p.FolderID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return workspace.NewForbiddenError("cannot demote the last admin of a folder that contains datasets")
}

// CheckReplacementPermissions validates the final state of a bulk folder
// permission replacement: while the folder contains datasets, the
// resulting permission set must hold at least one folder admin.
func (g *Guard) CheckReplacementPermissions(ctx context.Context, folderID uuid.UUID, flags []workspace.PermissionFlags) error {
	for _, f := range flags {
		if f.IsFolderAdmin {
			return nil
		}
	}
	has, err := g.store.FolderHasDatasets(ctx, folderID)
	if err != nil {
		return err
	}
	if !has {
		return nil
	}
	return workspace.NewForbiddenError("replacement would leave a folder that contains datasets without an admin")
}

// CheckProjectDeletion rejects deleting a project that still contains
// datasets anywhere in its folders.
func (g *Guard) CheckProjectDeletion(ctx context.Context, projectID uuid.UUID) error {
	has, err := g.store.ProjectHasDatasets(ctx, projectID)
	if err != nil {
		return err
	}
	if has {
		return workspace.NewValidationError("cannot delete a project that contains datasets")
	}
	return nil
}

// CheckFolderDeletion rejects deleting a folder that still contains datasets
func (g *Guard) CheckFolderDeletion(ctx context.Context, folderID uuid.UUID) error {
	has, err := g.store.FolderHasDatasets(ctx, folderID)
	if err != nil {
		return err
	}
	if has {
		return workspace.NewValidationError("cannot delete a folder that contains datasets")
	}
	return nil
}
