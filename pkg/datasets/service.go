// Package datasets manages the dataset lifecycle. A dataset starts as a
// private draft of its creator, invisible to everyone else, and becomes a
// normal folder resource the moment it is published into one. From then on
// the folder's permissions govern it; the creator keeps no special rights.
package datasets

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/curateio/curate/pkg/access"
	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/workspace"
)

// Service implements dataset operations on top of the workspace store
type Service struct {
	store    *workspace.Store
	locks    *locks.Manager
	resolver *access.Resolver
	log      *logrus.Logger
}

// NewService creates a dataset service
func NewService(store *workspace.Store, lockManager *locks.Manager, resolver *access.Resolver, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, locks: lockManager, resolver: resolver, log: log}
}

// CreateDraft creates an unpublished dataset owned by the actor
func (s *Service) CreateDraft(ctx context.Context, actor int64, name string) (*workspace.Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workspace.NewValidationError("dataset name is required")
	}

	d := &workspace.Dataset{Name: name, CreatedBy: actor}
	if err := s.store.CreateDataset(ctx, d); err != nil {
		return nil, err
	}
	s.log.Infof("Created draft dataset %s for user %d", d.ID, actor)
	return d, nil
}

// Get returns the dataset if the actor may see it
func (s *Service) Get(ctx context.Context, actor int64, id uuid.UUID) (*workspace.Dataset, error) {
	if err := s.resolver.CanView(ctx, actor, workspace.KindDataset, id); err != nil {
		return nil, err
	}
	return s.store.GetDataset(ctx, id)
}

// ListFolder returns the datasets of a folder the actor may see
func (s *Service) ListFolder(ctx context.Context, actor int64, folderID uuid.UUID) ([]*workspace.Dataset, error) {
	if err := s.resolver.CanView(ctx, actor, workspace.KindFolder, folderID); err != nil {
		return nil, err
	}
	return s.store.ListDatasets(ctx, folderID)
}

// ListDrafts returns the actor's own unpublished datasets
func (s *Service) ListDrafts(ctx context.Context, actor int64) ([]*workspace.Dataset, error) {
	return s.store.ListDraftDatasets(ctx, actor)
}

// Rename changes a dataset's name. The actor's lock is released afterwards
// unless keepLock is set.
func (s *Service) Rename(ctx context.Context, actor int64, id uuid.UUID, name string, keepLock bool) (*workspace.Dataset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, workspace.NewValidationError("dataset name is required")
	}
	if err := s.resolver.CanEdit(ctx, actor, workspace.KindDataset, id); err != nil {
		return nil, err
	}
	if err := s.locks.CheckMutable(ctx, workspace.KindDataset, id, actor); err != nil {
		return nil, err
	}

	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	d.Name = name
	if err := s.store.UpdateDataset(ctx, d); err != nil {
		return nil, err
	}
	if err := s.autoUnlock(ctx, id, actor, keepLock); err != nil {
		return nil, err
	}
	return d, nil
}

// Publish moves a draft into a folder and stamps the publication date.
// Only the creator may publish their draft, and only into a folder they
// can edit. Publication is permanent; a published dataset cannot return
// to draft state.
func (s *Service) Publish(ctx context.Context, actor int64, id, folderID uuid.UUID) (*workspace.Dataset, error) {
	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.IsPublished() || d.FolderID != nil {
		return nil, workspace.NewValidationError("dataset is already published")
	}
	if d.CreatedBy != actor {
		return nil, workspace.NewForbiddenError("only the creator may publish a draft")
	}
	if err := s.resolver.CanEdit(ctx, actor, workspace.KindFolder, folderID); err != nil {
		return nil, err
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	txStore := s.store.WithTx(tx)

	now := time.Now().UTC()
	d.FolderID = &folderID
	d.PublicationDate = &now
	if err := txStore.UpdateDataset(ctx, d); err != nil {
		return nil, err
	}
	if err := txStore.RefreshFolderDatasetsCount(ctx, folderID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.log.Infof("Published dataset %s into folder %s", d.ID, folderID)
	return d, nil
}

// Delete removes a dataset. Drafts may only be deleted by their creator;
// published datasets take edit access on their folder.
func (s *Service) Delete(ctx context.Context, actor int64, id uuid.UUID) error {
	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return err
	}

	if d.FolderID == nil {
		if d.CreatedBy != actor {
			// A stranger should not learn the draft exists
			return s.resolver.CanView(ctx, actor, workspace.KindDataset, id)
		}
	} else {
		if err := s.resolver.CanEdit(ctx, actor, workspace.KindDataset, id); err != nil {
			return err
		}
		if err := s.locks.CheckMutable(ctx, workspace.KindDataset, id, actor); err != nil {
			return err
		}
	}

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	txStore := s.store.WithTx(tx)

	if err := txStore.DeleteDataset(ctx, id); err != nil {
		return err
	}
	if d.FolderID != nil {
		if err := txStore.RefreshFolderDatasetsCount(ctx, *d.FolderID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Service) autoUnlock(ctx context.Context, id uuid.UUID, actor int64, keepLock bool) error {
	status, err := s.locks.Status(ctx, workspace.KindDataset, id)
	if err != nil {
		return err
	}
	if !status.Locked || status.LockedBy == nil || *status.LockedBy != actor {
		return nil
	}
	return s.locks.ReleaseAfterMutation(ctx, workspace.KindDataset, id, actor, keepLock)
}
