package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/curateio/curate/pkg/access"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/workspace"
)

// LockHandlers handles advisory lock HTTP requests for every lockable kind
type LockHandlers struct {
	locks    *locks.Manager
	resolver *access.Resolver
}

// NewLockHandlers creates a new lock handlers instance
func NewLockHandlers(lockManager *locks.Manager, resolver *access.Resolver) *LockHandlers {
	return &LockHandlers{locks: lockManager, resolver: resolver}
}

// RegisterRoutes registers lock routes for all lockable resources
func (h *LockHandlers) RegisterRoutes(router *mux.Router) {
	h.registerKind(router, "/api/v1/projects/{id}/lock", workspace.KindProject)
	h.registerKind(router, "/api/v1/folders/{id}/lock", workspace.KindFolder)
	h.registerKind(router, "/api/v1/datasets/{id}/lock", workspace.KindDataset)
	h.registerKind(router, "/api/v1/templates/{id}/lock", workspace.KindMetadataTemplate)
}

func (h *LockHandlers) registerKind(router *mux.Router, path string, kind workspace.Kind) {
	router.HandleFunc(path, h.status(kind)).Methods("GET")
	router.HandleFunc(path, h.acquire(kind)).Methods("POST")
	router.HandleFunc(path, h.release(kind)).Methods("DELETE")
	router.HandleFunc(path+"/force", h.forceRelease(kind)).Methods("DELETE")
}

// status handles GET on a lock path. Re-posting an already held lock
// refreshes its timestamp, so clients poll status plus acquire as a
// heartbeat while editing.
func (h *LockHandlers) status(kind workspace.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		id, ok := parsePathUUID(w, r, "id")
		if !ok {
			return
		}

		if err := h.resolver.CanView(r.Context(), actor, kind, id); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}

		status, err := h.locks.Status(r.Context(), kind, id)
		if err != nil {
			httputil.WriteDomainError(w, err)
			return
		}

		httputil.WriteSuccess(w, status)
	}
}

// acquire handles POST on a lock path
func (h *LockHandlers) acquire(kind workspace.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		id, ok := parsePathUUID(w, r, "id")
		if !ok {
			return
		}

		ctx := r.Context()
		if err := h.resolver.CanEdit(ctx, actor, kind, id); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
		if err := h.locks.Acquire(ctx, kind, id, actor); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}

		status, err := h.locks.Status(ctx, kind, id)
		if err != nil {
			httputil.WriteDomainError(w, err)
			return
		}

		httputil.WriteSuccess(w, status)
	}
}

// release handles DELETE on a lock path
func (h *LockHandlers) release(kind workspace.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		id, ok := parsePathUUID(w, r, "id")
		if !ok {
			return
		}

		if err := h.locks.Release(r.Context(), kind, id, actor); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}

		httputil.WriteNoContent(w)
	}
}

// forceRelease handles DELETE on a lock force path. Administrators may
// break a lock regardless of holder or age.
func (h *LockHandlers) forceRelease(kind workspace.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorID(w, r)
		if !ok {
			return
		}
		id, ok := parsePathUUID(w, r, "id")
		if !ok {
			return
		}

		ctx := r.Context()
		if err := h.resolver.CanAdminister(ctx, actor, kind, id); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
		if err := h.locks.ForceRelease(ctx, kind, id); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}

		httputil.WriteNoContent(w)
	}
}
