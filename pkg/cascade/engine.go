// Package cascade implements the permission cascade: every mutation of
// memberships, permissions, or the resource hierarchy runs in a single
// transaction that also applies the follow-on writes the change implies.
// Creating a project creates its General folder and the creator's admin
// membership; granting project admin fans out folder admin permissions;
// removing a member takes their folder permissions with them. Either the
// whole cascade commits or none of it does.
//
// Authorization is the caller's concern: the HTTP layer checks the actor
// through the access resolver before invoking the engine. The engine
// enforces the structural invariants (admin guard, lock protocol, dataset
// emptiness on deletion) that must hold no matter who asks.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/curateio/curate/pkg/identity"
	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/workspace"
)

// GeneralFolderName is the folder every project starts with
const GeneralFolderName = "General"

// Engine applies cascading mutations to the workspace
type Engine struct {
	store    *workspace.Store
	identity *identity.Store
	locks    *locks.Manager
	log      *logrus.Logger
}

// NewEngine creates a cascade engine
func NewEngine(store *workspace.Store, identityStore *identity.Store, lockManager *locks.Manager, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{store: store, identity: identityStore, locks: lockManager, log: log}
}

// scope bundles the transactional views of the stores for one cascade
type scope struct {
	store    *workspace.Store
	identity *identity.Store
	locks    *locks.Manager
	guard    *Guard
}

// inProjectTx runs fn inside a transaction serialized on the project row.
// The TouchProject write makes concurrent cascades on the same project
// conflict at the database instead of interleaving.
func (e *Engine) inProjectTx(ctx context.Context, projectID uuid.UUID, fn func(s *scope) error) error {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin cascade transaction: %w", err)
	}
	defer tx.Rollback()

	s := &scope{
		store:    e.store.WithTx(tx),
		identity: e.identity.WithTx(tx),
		locks:    e.locks.WithTx(tx),
	}
	s.guard = NewGuard(s.store)

	if projectID != uuid.Nil {
		if err := s.store.TouchProject(ctx, projectID); err != nil {
			return err
		}
	}

	if err := fn(s); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateProject creates a project together with its General folder and the
// creator's admin membership and folder permission.
func (e *Engine) CreateProject(ctx context.Context, actor int64, name, description string) (*workspace.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workspace.NewValidationError("project name is required")
	}

	project := &workspace.Project{Name: name, Description: description, CreatedBy: &actor}
	err := e.inProjectTx(ctx, uuid.Nil, func(s *scope) error {
		if err := s.store.CreateProject(ctx, project); err != nil {
			return err
		}

		general := &workspace.Folder{
			ProjectID:  project.ID,
			Name:       GeneralFolderName,
			StorageRef: storageRef(project.ID, GeneralFolderName),
			CreatedBy:  &actor,
		}
		if err := s.store.CreateFolder(ctx, general); err != nil {
			return err
		}

		membership := &workspace.ProjectMembership{ProjectID: project.ID, MemberID: actor}
		membership.IsProjectAdmin = true
		membership.CanCreateFolders = true
		membership.IsMetadataTemplateAdmin = true
		if err := s.store.CreateMembership(ctx, membership); err != nil {
			return err
		}

		perm := &workspace.FolderPermission{
			FolderID:                general.ID,
			ProjectMembershipID:     membership.ID,
			IsFolderAdmin:           true,
			IsMetadataTemplateAdmin: true,
			CanEdit:                 true,
		}
		if err := s.store.CreatePermission(ctx, perm); err != nil {
			return err
		}

		if err := s.store.RefreshProjectMembersCount(ctx, project.ID); err != nil {
			return err
		}
		return s.store.RefreshFolderMembersCount(ctx, general.ID)
	})
	if err != nil {
		return nil, err
	}

	e.log.Infof("Created project %s (%s) for user %d", project.Name, project.ID, actor)
	return project, nil
}

// UpdateProject renames or re-describes a project. The actor's lock is
// released afterwards unless keepLock is set.
func (e *Engine) UpdateProject(ctx context.Context, actor int64, projectID uuid.UUID, name, description string, keepLock bool) (*workspace.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workspace.NewValidationError("project name is required")
	}

	var project *workspace.Project
	err := e.inProjectTx(ctx, projectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindProject, projectID, actor); err != nil {
			return err
		}
		var err error
		project, err = s.store.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		project.Name = name
		project.Description = description
		if err := s.store.UpdateProject(ctx, project); err != nil {
			return err
		}
		return e.autoUnlock(ctx, s, workspace.KindProject, projectID, actor, keepLock)
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject removes a project and everything hanging off it. Projects
// that still contain datasets cannot be deleted.
func (e *Engine) DeleteProject(ctx context.Context, actor int64, projectID uuid.UUID) error {
	err := e.inProjectTx(ctx, projectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindProject, projectID, actor); err != nil {
			return err
		}
		if err := s.guard.CheckProjectDeletion(ctx, projectID); err != nil {
			return err
		}
		return s.store.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}
	e.log.Infof("Deleted project %s by user %d", projectID, actor)
	return nil
}

// CreateFolder creates a folder and its initial permission set. The creator
// and every project admin receive folder admin; explicit grants may add
// more people or raise the defaults, but a project admin's permission is
// never granted below folder admin.
func (e *Engine) CreateFolder(ctx context.Context, actor int64, projectID uuid.UUID, name string, templateID *uuid.UUID, grants []workspace.PermissionGrant) (*workspace.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workspace.NewValidationError("folder name is required")
	}

	folder := &workspace.Folder{
		ProjectID:          projectID,
		Name:               name,
		StorageRef:         storageRef(projectID, name),
		MetadataTemplateID: templateID,
		CreatedBy:          &actor,
	}
	err := e.inProjectTx(ctx, projectID, func(s *scope) error {
		if err := s.store.CreateFolder(ctx, folder); err != nil {
			return err
		}

		// Defaults: creator and all project admins get folder admin
		desired := map[uuid.UUID]workspace.PermissionFlags{}
		memberships, err := s.store.ListMemberships(ctx, projectID)
		if err != nil {
			return err
		}
		adminMemberships := map[uuid.UUID]bool{}
		for _, m := range memberships {
			if m.IsProjectAdmin {
				desired[m.ID] = workspace.FolderAdminFlags()
				adminMemberships[m.ID] = true
			}
			if m.MemberID == actor {
				desired[m.ID] = workspace.FolderAdminFlags()
			}
		}

		// Explicit grants override the defaults, except for project admins
		for _, g := range grants {
			m, err := e.resolveMembership(ctx, s, projectID, g.User)
			if err != nil {
				return err
			}
			flags := g.Flags.Normalize()
			if adminMemberships[m.ID] {
				flags = workspace.FolderAdminFlags()
			}
			desired[m.ID] = flags
		}

		for membershipID, flags := range desired {
			perm := &workspace.FolderPermission{
				FolderID:                folder.ID,
				ProjectMembershipID:     membershipID,
				IsFolderAdmin:           flags.IsFolderAdmin,
				IsMetadataTemplateAdmin: flags.IsMetadataTemplateAdmin,
				CanEdit:                 flags.CanEdit,
			}
			if err := s.store.CreatePermission(ctx, perm); err != nil {
				return err
			}
		}

		return s.store.RefreshFolderMembersCount(ctx, folder.ID)
	})
	if err != nil {
		return nil, err
	}

	e.log.Infof("Created folder %s (%s) in project %s", folder.Name, folder.ID, projectID)
	return folder, nil
}

// UpdateFolder changes a folder's name or metadata template. The actor's
// lock is released afterwards unless keepLock is set.
func (e *Engine) UpdateFolder(ctx context.Context, actor int64, folderID uuid.UUID, name string, templateID *uuid.UUID, keepLock bool) (*workspace.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workspace.NewValidationError("folder name is required")
	}

	folder, err := e.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	err = e.inProjectTx(ctx, folder.ProjectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindFolder, folderID, actor); err != nil {
			return err
		}
		folder, err = s.store.GetFolder(ctx, folderID)
		if err != nil {
			return err
		}
		folder.Name = name
		folder.MetadataTemplateID = templateID
		if err := s.store.UpdateFolder(ctx, folder); err != nil {
			return err
		}
		return e.autoUnlock(ctx, s, workspace.KindFolder, folderID, actor, keepLock)
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes a folder and its permissions. Folders that still
// contain datasets cannot be deleted.
func (e *Engine) DeleteFolder(ctx context.Context, actor int64, folderID uuid.UUID) error {
	folder, err := e.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}

	return e.inProjectTx(ctx, folder.ProjectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindFolder, folderID, actor); err != nil {
			return err
		}
		if err := s.guard.CheckFolderDeletion(ctx, folderID); err != nil {
			return err
		}
		return s.store.DeleteFolder(ctx, folderID)
	})
}

// UpsertMembership adds a user to a project or updates their flags. Email
// references to unknown users create pending accounts with an invitation.
// Every membership is mirrored onto every folder of the project: plain
// members get a blank permission row, project admins get folder admin, and
// template admins carry that flag into each folder. Existing permissions
// are only ever raised; demoting an admin leaves their folder permissions
// in place.
func (e *Engine) UpsertMembership(ctx context.Context, actor int64, projectID uuid.UUID, grant workspace.MemberGrant) (*workspace.ProjectMembership, error) {
	var membership *workspace.ProjectMembership
	err := e.inProjectTx(ctx, projectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindProject, projectID, actor); err != nil {
			return err
		}

		user, err := s.identity.ResolveOrCreateUser(ctx, grant.User)
		if err != nil {
			return err
		}
		flags := grant.Flags.Normalize()

		existing, err := s.store.GetMembershipForUser(ctx, projectID, user.ID)
		switch {
		case err == nil:
			if err := s.guard.CheckMembershipDowngrade(ctx, existing, flags); err != nil {
				return err
			}
			if err := s.store.UpdateMembershipFlags(ctx, existing.ID, flags); err != nil {
				return err
			}
			if err := e.syncFolderPermissions(ctx, s, projectID, existing.ID, flags); err != nil {
				return err
			}
			if membership, err = s.store.GetMembership(ctx, existing.ID); err != nil {
				return err
			}

		case errors.Is(err, workspace.ErrNotFound):
			membership = &workspace.ProjectMembership{
				ProjectID:               projectID,
				MemberID:                user.ID,
				IsProjectAdmin:          flags.IsProjectAdmin,
				CanCreateFolders:        flags.CanCreateFolders,
				IsMetadataTemplateAdmin: flags.IsMetadataTemplateAdmin,
			}
			if err := s.store.CreateMembership(ctx, membership); err != nil {
				return err
			}
			if err := e.syncFolderPermissions(ctx, s, projectID, membership.ID, flags); err != nil {
				return err
			}
			if err := s.store.RefreshProjectMembersCount(ctx, projectID); err != nil {
				return err
			}

		default:
			return err
		}

		return e.autoUnlock(ctx, s, workspace.KindProject, projectID, actor, false)
	})
	if err != nil {
		return nil, err
	}
	return membership, nil
}

// RemoveMembership removes a user from a project together with all their
// folder permissions. The last admin of a project that still contains
// datasets cannot be removed.
func (e *Engine) RemoveMembership(ctx context.Context, actor int64, projectID uuid.UUID, ref workspace.UserRef) error {
	return e.inProjectTx(ctx, projectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindProject, projectID, actor); err != nil {
			return err
		}

		user, err := s.identity.ResolveUser(ctx, ref)
		if err != nil {
			return err
		}
		membership, err := s.store.GetMembershipForUser(ctx, projectID, user.ID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckMembershipRemoval(ctx, membership); err != nil {
			return err
		}

		affected, err := s.store.ListMembershipPermissions(ctx, membership.ID)
		if err != nil {
			return err
		}
		if err := s.store.DeleteMembershipPermissions(ctx, membership.ID); err != nil {
			return err
		}
		if err := s.store.DeleteMembership(ctx, membership.ID); err != nil {
			return err
		}

		for _, p := range affected {
			if err := s.store.RefreshFolderMembersCount(ctx, p.FolderID); err != nil {
				return err
			}
		}
		if err := s.store.RefreshProjectMembersCount(ctx, projectID); err != nil {
			return err
		}

		e.log.Infof("Removed user %d from project %s", user.ID, projectID)
		return nil
	})
}

// ReplaceProjectMemberships swaps the project's entire membership set for
// the given grants in one transaction. Every reference must resolve and the
// final set must satisfy the admin guard or nothing changes at all.
func (e *Engine) ReplaceProjectMemberships(ctx context.Context, actor int64, projectID uuid.UUID, grants []workspace.MemberGrant) ([]*workspace.ProjectMembership, error) {
	var result []*workspace.ProjectMembership
	err := e.inProjectTx(ctx, projectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindProject, projectID, actor); err != nil {
			return err
		}

		// Resolve everything up front so a bad reference aborts before
		// any membership is touched
		desired := map[int64]workspace.MembershipFlags{}
		for _, g := range grants {
			user, err := s.identity.ResolveOrCreateUser(ctx, g.User)
			if err != nil {
				return err
			}
			if _, dup := desired[user.ID]; dup {
				return workspace.NewValidationError("duplicate member %s in replacement", user.Email)
			}
			desired[user.ID] = g.Flags.Normalize()
		}

		finalFlags := make([]workspace.MembershipFlags, 0, len(desired))
		for _, f := range desired {
			finalFlags = append(finalFlags, f)
		}
		if err := s.guard.CheckReplacementMemberships(ctx, projectID, finalFlags); err != nil {
			return err
		}

		existing, err := s.store.ListMemberships(ctx, projectID)
		if err != nil {
			return err
		}

		affectedFolders := map[uuid.UUID]bool{}
		for _, m := range existing {
			flags, keep := desired[m.MemberID]
			if !keep {
				perms, err := s.store.ListMembershipPermissions(ctx, m.ID)
				if err != nil {
					return err
				}
				for _, p := range perms {
					affectedFolders[p.FolderID] = true
				}
				if err := s.store.DeleteMembershipPermissions(ctx, m.ID); err != nil {
					return err
				}
				if err := s.store.DeleteMembership(ctx, m.ID); err != nil {
					return err
				}
				continue
			}
			if flags != m.Flags() {
				if err := s.store.UpdateMembershipFlags(ctx, m.ID, flags); err != nil {
					return err
				}
			}
			if err := e.syncFolderPermissions(ctx, s, projectID, m.ID, flags); err != nil {
				return err
			}
			delete(desired, m.MemberID)
		}

		// Whatever is left in desired is new
		for userID, flags := range desired {
			m := &workspace.ProjectMembership{
				ProjectID:               projectID,
				MemberID:                userID,
				IsProjectAdmin:          flags.IsProjectAdmin,
				CanCreateFolders:        flags.CanCreateFolders,
				IsMetadataTemplateAdmin: flags.IsMetadataTemplateAdmin,
			}
			if err := s.store.CreateMembership(ctx, m); err != nil {
				return err
			}
			if err := e.syncFolderPermissions(ctx, s, projectID, m.ID, flags); err != nil {
				return err
			}
		}

		for folderID := range affectedFolders {
			if err := s.store.RefreshFolderMembersCount(ctx, folderID); err != nil {
				return err
			}
		}
		if err := s.store.RefreshProjectMembersCount(ctx, projectID); err != nil {
			return err
		}
		if err := e.autoUnlock(ctx, s, workspace.KindProject, projectID, actor, false); err != nil {
			return err
		}

		result, err = s.store.ListMemberships(ctx, projectID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Infof("Replaced memberships of project %s: %d members", projectID, len(result))
	return result, nil
}

// ReplaceFolderPermissions swaps a folder's entire permission set for the
// given grants. Users without a project membership get one created, so
// granting folder access cascades upward. Project admins always keep
// folder admin regardless of what the grants say.
func (e *Engine) ReplaceFolderPermissions(ctx context.Context, actor int64, folderID uuid.UUID, grants []workspace.PermissionGrant) ([]*workspace.FolderPermission, error) {
	folder, err := e.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var result []*workspace.FolderPermission
	err = e.inProjectTx(ctx, folder.ProjectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindFolder, folderID, actor); err != nil {
			return err
		}

		desired := map[uuid.UUID]workspace.PermissionFlags{}
		for _, g := range grants {
			m, err := e.resolveMembership(ctx, s, folder.ProjectID, g.User)
			if err != nil {
				return err
			}
			if _, dup := desired[m.ID]; dup {
				return workspace.NewValidationError("duplicate member in replacement")
			}
			flags := g.Flags.Normalize()
			if m.IsProjectAdmin {
				flags = workspace.FolderAdminFlags()
			}
			desired[m.ID] = flags
		}

		// Project admins stay on the folder even when omitted
		memberships, err := s.store.ListMemberships(ctx, folder.ProjectID)
		if err != nil {
			return err
		}
		for _, m := range memberships {
			if m.IsProjectAdmin {
				desired[m.ID] = workspace.FolderAdminFlags()
			}
		}

		finalFlags := make([]workspace.PermissionFlags, 0, len(desired))
		for _, f := range desired {
			finalFlags = append(finalFlags, f)
		}
		if err := s.guard.CheckReplacementPermissions(ctx, folderID, finalFlags); err != nil {
			return err
		}

		existing, err := s.store.ListFolderPermissions(ctx, folderID)
		if err != nil {
			return err
		}
		for _, p := range existing {
			flags, keep := desired[p.ProjectMembershipID]
			if !keep {
				if err := s.store.DeletePermission(ctx, p.ID); err != nil {
					return err
				}
				continue
			}
			if flags != p.Flags() {
				if err := s.store.UpdatePermissionFlags(ctx, p.ID, flags); err != nil {
					return err
				}
			}
			delete(desired, p.ProjectMembershipID)
		}
		for membershipID, flags := range desired {
			perm := &workspace.FolderPermission{
				FolderID:                folderID,
				ProjectMembershipID:     membershipID,
				IsFolderAdmin:           flags.IsFolderAdmin,
				IsMetadataTemplateAdmin: flags.IsMetadataTemplateAdmin,
				CanEdit:                 flags.CanEdit,
			}
			if err := s.store.CreatePermission(ctx, perm); err != nil {
				return err
			}
		}

		if err := s.store.RefreshFolderMembersCount(ctx, folderID); err != nil {
			return err
		}
		if err := s.store.RefreshProjectMembersCount(ctx, folder.ProjectID); err != nil {
			return err
		}
		if err := e.autoUnlock(ctx, s, workspace.KindFolder, folderID, actor, false); err != nil {
			return err
		}

		result, err = s.store.ListFolderPermissions(ctx, folderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Infof("Replaced permissions of folder %s: %d entries", folderID, len(result))
	return result, nil
}

// UpsertPermission grants or updates a single folder permission, creating
// the project membership when the user has none yet.
func (e *Engine) UpsertPermission(ctx context.Context, actor int64, folderID uuid.UUID, grant workspace.PermissionGrant) (*workspace.FolderPermission, error) {
	folder, err := e.store.GetFolder(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var perm *workspace.FolderPermission
	err = e.inProjectTx(ctx, folder.ProjectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindFolder, folderID, actor); err != nil {
			return err
		}

		m, err := e.resolveMembership(ctx, s, folder.ProjectID, grant.User)
		if err != nil {
			return err
		}
		flags := grant.Flags.Normalize()
		if m.IsProjectAdmin {
			flags = workspace.FolderAdminFlags()
		}

		existing, err := s.store.GetPermissionForMembership(ctx, folderID, m.ID)
		switch {
		case err == nil:
			if err := s.guard.CheckPermissionDowngrade(ctx, existing, flags); err != nil {
				return err
			}
			if err := s.store.UpdatePermissionFlags(ctx, existing.ID, flags); err != nil {
				return err
			}
			perm, err = s.store.GetPermission(ctx, existing.ID)
			return err
		case errors.Is(err, workspace.ErrNotFound):
			perm = &workspace.FolderPermission{
				FolderID:                folderID,
				ProjectMembershipID:     m.ID,
				IsFolderAdmin:           flags.IsFolderAdmin,
				IsMetadataTemplateAdmin: flags.IsMetadataTemplateAdmin,
				CanEdit:                 flags.CanEdit,
			}
			if err := s.store.CreatePermission(ctx, perm); err != nil {
				return err
			}
			return s.store.RefreshFolderMembersCount(ctx, folderID)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return perm, nil
}

// RemovePermission removes a single folder permission. The last folder
// admin of a folder that still contains datasets cannot be removed, and a
// project admin's permission cannot be removed at all.
func (e *Engine) RemovePermission(ctx context.Context, actor int64, folderID uuid.UUID, ref workspace.UserRef) error {
	folder, err := e.store.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}

	return e.inProjectTx(ctx, folder.ProjectID, func(s *scope) error {
		if err := s.locks.CheckMutable(ctx, workspace.KindFolder, folderID, actor); err != nil {
			return err
		}

		user, err := s.identity.ResolveUser(ctx, ref)
		if err != nil {
			return err
		}
		m, err := s.store.GetMembershipForUser(ctx, folder.ProjectID, user.ID)
		if err != nil {
			return err
		}
		if m.IsProjectAdmin {
			return workspace.NewForbiddenError("cannot remove a project admin's folder permission")
		}
		perm, err := s.store.GetPermissionForMembership(ctx, folderID, m.ID)
		if err != nil {
			return err
		}
		if err := s.guard.CheckPermissionRemoval(ctx, perm); err != nil {
			return err
		}
		if err := s.store.DeletePermission(ctx, perm.ID); err != nil {
			return err
		}
		return s.store.RefreshFolderMembersCount(ctx, folderID)
	})
}

// resolveMembership resolves a user reference and ensures they hold a
// membership in the project, creating a plain one when missing.
func (e *Engine) resolveMembership(ctx context.Context, s *scope, projectID uuid.UUID, ref workspace.UserRef) (*workspace.ProjectMembership, error) {
	user, err := s.identity.ResolveOrCreateUser(ctx, ref)
	if err != nil {
		return nil, err
	}
	m, err := s.store.GetMembershipForUser(ctx, projectID, user.ID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, workspace.ErrNotFound) {
		return nil, err
	}

	m = &workspace.ProjectMembership{ProjectID: projectID, MemberID: user.ID}
	if err := s.store.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	if err := s.store.RefreshProjectMembersCount(ctx, projectID); err != nil {
		return nil, err
	}
	return m, nil
}

// syncFolderPermissions mirrors a membership's flags onto every folder of
// the project. Project admins get folder admin and edit everywhere, and a
// metadata template admin carries that flag into each folder. Missing rows
// are created with the mirror flags; existing rows are raised field by
// field, never lowered.
func (e *Engine) syncFolderPermissions(ctx context.Context, s *scope, projectID, membershipID uuid.UUID, flags workspace.MembershipFlags) error {
	folders, err := s.store.ListFolders(ctx, projectID)
	if err != nil {
		return err
	}
	mirror := workspace.PermissionFlags{
		IsFolderAdmin:           flags.IsProjectAdmin,
		IsMetadataTemplateAdmin: flags.IsMetadataTemplateAdmin,
		CanEdit:                 flags.IsProjectAdmin,
	}

	for _, f := range folders {
		existing, err := s.store.GetPermissionForMembership(ctx, f.ID, membershipID)
		switch {
		case err == nil:
			raised := workspace.PermissionFlags{
				IsFolderAdmin:           existing.IsFolderAdmin || mirror.IsFolderAdmin,
				IsMetadataTemplateAdmin: existing.IsMetadataTemplateAdmin || mirror.IsMetadataTemplateAdmin,
				CanEdit:                 existing.CanEdit || mirror.CanEdit,
			}
			if raised != existing.Flags() {
				if err := s.store.UpdatePermissionFlags(ctx, existing.ID, raised); err != nil {
					return err
				}
			}
		case errors.Is(err, workspace.ErrNotFound):
			perm := &workspace.FolderPermission{
				FolderID:                f.ID,
				ProjectMembershipID:     membershipID,
				IsFolderAdmin:           mirror.IsFolderAdmin,
				IsMetadataTemplateAdmin: mirror.IsMetadataTemplateAdmin,
				CanEdit:                 mirror.CanEdit,
			}
			if err := s.store.CreatePermission(ctx, perm); err != nil {
				return err
			}
			if err := s.store.RefreshFolderMembersCount(ctx, f.ID); err != nil {
				return err
			}
		default:
			return err
		}
	}
	return nil
}

// autoUnlock drops the actor's own lock after a successful mutation. Locks
// held by other users are left alone; keepLock refreshes instead.
func (e *Engine) autoUnlock(ctx context.Context, s *scope, kind workspace.Kind, id uuid.UUID, actor int64, keepLock bool) error {
	status, err := s.locks.Status(ctx, kind, id)
	if err != nil {
		return err
	}
	if !status.Locked || status.LockedBy == nil || *status.LockedBy != actor {
		return nil
	}
	return s.locks.ReleaseAfterMutation(ctx, kind, id, actor, keepLock)
}

// storageRef derives the backing storage path for a folder
func storageRef(projectID uuid.UUID, name string) string {
	slug := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "-"))
	return fmt.Sprintf("curate/%s/%s", projectID, slug)
}
