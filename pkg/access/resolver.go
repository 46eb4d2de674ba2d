// Package access resolves what a user may do with a workspace resource.
//
// Decisions are computed fresh from the membership and permission tables on
// every call. Nothing here is cached: a revoked membership takes effect on
// the next request, which is the property the whole permission cascade
// exists to provide.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/curateio/curate/pkg/identity"
	"github.com/curateio/curate/pkg/workspace"
)

// Level is a requested access level
type Level string

const (
	LevelView       Level = "view"
	LevelEdit       Level = "edit"
	LevelAdminister Level = "administer"
)

// Resolver answers access questions for workspace resources.
//
// HideForbidden controls how a denied view reads from the outside: when
// true, resources the user may not see are reported as not found instead of
// forbidden, so their existence does not leak. Denied edits on visible
// resources always report forbidden.
type Resolver struct {
	store         *workspace.Store
	users         *identity.Store
	HideForbidden bool
}

// NewResolver creates a resolver over the workspace and identity stores
func NewResolver(store *workspace.Store, users *identity.Store) *Resolver {
	return &Resolver{store: store, users: users, HideForbidden: true}
}

// CanView returns nil when the user may see the resource
func (r *Resolver) CanView(ctx context.Context, userID int64, kind workspace.Kind, id uuid.UUID) error {
	return r.check(ctx, userID, kind, id, LevelView)
}

// CanEdit returns nil when the user may modify the resource
func (r *Resolver) CanEdit(ctx context.Context, userID int64, kind workspace.Kind, id uuid.UUID) error {
	return r.check(ctx, userID, kind, id, LevelEdit)
}

// CanAdminister returns nil when the user may manage access to the resource
func (r *Resolver) CanAdminister(ctx context.Context, userID int64, kind workspace.Kind, id uuid.UUID) error {
	return r.check(ctx, userID, kind, id, LevelAdminister)
}

// CanCreateFolderIn reports whether the user may create folders in the
// project. Project admins always can; others need the dedicated flag.
func (r *Resolver) CanCreateFolderIn(ctx context.Context, userID int64, projectID uuid.UUID) error {
	if _, err := r.store.GetProject(ctx, projectID); err != nil {
		return err
	}
	m, err := r.store.GetMembershipForUser(ctx, projectID, userID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}
	if m.IsProjectAdmin || m.CanCreateFolders {
		return nil
	}
	return workspace.NewForbiddenError("folder creation permission required")
}

// CanManageTemplatesIn reports whether the user may create or assign
// metadata templates within the given project or folder scope. Used when
// the template does not exist yet and checkTemplate has nothing to load.
func (r *Resolver) CanManageTemplatesIn(ctx context.Context, userID int64, kind workspace.Kind, scopeID uuid.UUID) error {
	switch kind {
	case workspace.KindProject:
		return r.checkProjectTemplate(ctx, userID, scopeID, LevelEdit)
	case workspace.KindFolder:
		return r.checkFolderTemplate(ctx, userID, scopeID, LevelEdit)
	default:
		return workspace.NewValidationError("templates cannot be scoped to %q", kind)
	}
}

// CanManageGlobalTemplates reports whether the user may create or change
// metadata templates that are not assigned to any project or folder. It is
// a per-user flag, not derived from any membership.
func (r *Resolver) CanManageGlobalTemplates(ctx context.Context, userID int64) error {
	u, err := r.users.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.IsGlobalTemplateAdmin {
		return nil
	}
	return workspace.NewForbiddenError("global template admin required")
}

func (r *Resolver) check(ctx context.Context, userID int64, kind workspace.Kind, id uuid.UUID, level Level) error {
	switch kind {
	case workspace.KindProject:
		return r.checkProject(ctx, userID, id, level)
	case workspace.KindFolder:
		return r.checkFolder(ctx, userID, id, level)
	case workspace.KindDataset:
		return r.checkDataset(ctx, userID, id, level)
	case workspace.KindMetadataTemplate:
		return r.checkTemplate(ctx, userID, id, level)
	default:
		return workspace.NewValidationError("unknown resource kind %q", kind)
	}
}

func (r *Resolver) checkProject(ctx context.Context, userID int64, projectID uuid.UUID, level Level) error {
	if _, err := r.store.GetProject(ctx, projectID); err != nil {
		return err
	}

	m, err := r.store.GetMembershipForUser(ctx, projectID, userID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}

	switch level {
	case LevelView, LevelEdit:
		// Any membership grants view and edit of the project itself
		return nil
	case LevelAdminister:
		if m.IsProjectAdmin {
			return nil
		}
		return workspace.NewForbiddenError("project admin required")
	}
	return workspace.NewValidationError("unknown access level %q", level)
}

func (r *Resolver) checkFolder(ctx context.Context, userID int64, folderID uuid.UUID, level Level) error {
	folder, err := r.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}

	m, err := r.store.GetMembershipForUser(ctx, folder.ProjectID, userID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}

	// Project admins see and control every folder in the project
	if m.IsProjectAdmin {
		return nil
	}

	p, err := r.store.GetPermissionForMembership(ctx, folderID, m.ID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}

	switch level {
	case LevelView:
		return nil
	case LevelEdit:
		if p.CanEdit || p.IsFolderAdmin {
			return nil
		}
		return workspace.NewForbiddenError("edit permission required")
	case LevelAdminister:
		if p.IsFolderAdmin {
			return nil
		}
		return workspace.NewForbiddenError("folder admin required")
	}
	return workspace.NewValidationError("unknown access level %q", level)
}

func (r *Resolver) checkDataset(ctx context.Context, userID int64, datasetID uuid.UUID, level Level) error {
	d, err := r.store.GetDataset(ctx, datasetID)
	if err != nil {
		return err
	}

	// Drafts belong to their creator alone until they land in a folder
	if d.FolderID == nil {
		if d.CreatedBy == userID {
			return nil
		}
		return r.denyView()
	}

	return r.checkFolder(ctx, userID, *d.FolderID, level)
}

func (r *Resolver) checkTemplate(ctx context.Context, userID int64, templateID uuid.UUID, level Level) error {
	t, err := r.store.GetTemplate(ctx, templateID)
	if err != nil {
		return err
	}

	if t.IsGlobal() {
		if level == LevelView {
			return nil
		}
		return r.CanManageGlobalTemplates(ctx, userID)
	}

	switch *t.AssignedToKind {
	case workspace.KindProject:
		return r.checkProjectTemplate(ctx, userID, *t.AssignedToID, level)
	case workspace.KindFolder:
		return r.checkFolderTemplate(ctx, userID, *t.AssignedToID, level)
	default:
		return fmt.Errorf("template %s has invalid assignment kind %q", t.ID, *t.AssignedToKind)
	}
}

func (r *Resolver) checkProjectTemplate(ctx context.Context, userID int64, projectID uuid.UUID, level Level) error {
	m, err := r.store.GetMembershipForUser(ctx, projectID, userID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}
	if level == LevelView {
		return nil
	}
	if m.IsMetadataTemplateAdmin {
		return nil
	}
	return workspace.NewForbiddenError("metadata template admin required")
}

func (r *Resolver) checkFolderTemplate(ctx context.Context, userID int64, folderID uuid.UUID, level Level) error {
	folder, err := r.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}

	m, err := r.store.GetMembershipForUser(ctx, folder.ProjectID, userID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}
	// Project-wide template admins manage folder templates too
	if m.IsMetadataTemplateAdmin {
		return nil
	}

	p, err := r.store.GetPermissionForMembership(ctx, folderID, m.ID)
	if errors.Is(err, workspace.ErrNotFound) {
		return r.denyView()
	}
	if err != nil {
		return err
	}
	if level == LevelView {
		return nil
	}
	if p.IsMetadataTemplateAdmin {
		return nil
	}
	return workspace.NewForbiddenError("metadata template admin required")
}

// denyView maps an invisible resource to the configured denial style
func (r *Resolver) denyView() error {
	if r.HideForbidden {
		return fmt.Errorf("resource: %w", workspace.ErrNotFound)
	}
	return workspace.NewForbiddenError("access denied")
}
