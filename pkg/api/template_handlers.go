package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/curateio/curate/pkg/access"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/workspace"
)

// TemplateHandlers handles metadata template HTTP requests
type TemplateHandlers struct {
	store    *workspace.Store
	resolver *access.Resolver
	locks    *locks.Manager
}

// NewTemplateHandlers creates a new template handlers instance
func NewTemplateHandlers(store *workspace.Store, resolver *access.Resolver, lockManager *locks.Manager) *TemplateHandlers {
	return &TemplateHandlers{store: store, resolver: resolver, locks: lockManager}
}

// RegisterRoutes registers metadata template routes
func (h *TemplateHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/templates", h.createTemplate).Methods("POST")
	router.HandleFunc("/api/v1/templates", h.listGlobalTemplates).Methods("GET")
	router.HandleFunc("/api/v1/templates/{id}", h.getTemplate).Methods("GET")
	router.HandleFunc("/api/v1/templates/{id}", h.updateTemplate).Methods("PUT")
	router.HandleFunc("/api/v1/templates/{id}", h.deleteTemplate).Methods("DELETE")

	router.HandleFunc("/api/v1/projects/{id}/templates", h.listProjectTemplates).Methods("GET")
	router.HandleFunc("/api/v1/folders/{id}/templates", h.listFolderTemplates).Methods("GET")
}

// createTemplate handles POST /api/v1/templates
//
// Omitting the assignment makes the template global, which requires the
// global template admin flag. Scoped templates require metadata template
// admin rights in the target scope.
func (h *TemplateHandlers) createTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name           string          `json:"name"`
		Fields         json.RawMessage `json:"fields"`
		AssignedToKind *workspace.Kind `json:"assigned_to_kind"`
		AssignedToID   *uuid.UUID      `json:"assigned_to_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}
	if (req.AssignedToKind == nil) != (req.AssignedToID == nil) {
		httputil.WriteBadRequest(w, "assigned_to_kind and assigned_to_id must be set together")
		return
	}

	if req.AssignedToKind != nil {
		if err := h.resolver.CanManageTemplatesIn(r.Context(), actor, *req.AssignedToKind, *req.AssignedToID); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
	} else {
		if err := h.resolver.CanManageGlobalTemplates(r.Context(), actor); err != nil {
			httputil.WriteDomainError(w, err)
			return
		}
	}

	template := &workspace.MetadataTemplate{
		Name:           req.Name,
		Fields:         req.Fields,
		AssignedToKind: req.AssignedToKind,
		AssignedToID:   req.AssignedToID,
		CreatedBy:      &actor,
	}
	if err := h.store.CreateTemplate(r.Context(), template); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, template)
}

// listGlobalTemplates handles GET /api/v1/templates
func (h *TemplateHandlers) listGlobalTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := actorID(w, r); !ok {
		return
	}

	templates, err := h.store.ListGlobalTemplates(r.Context())
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, templates)
}

// getTemplate handles GET /api/v1/templates/{id}
func (h *TemplateHandlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	templateID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.resolver.CanView(r.Context(), actor, workspace.KindMetadataTemplate, templateID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	template, err := h.store.GetTemplate(r.Context(), templateID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, template)
}

// updateTemplate handles PUT /api/v1/templates/{id}
func (h *TemplateHandlers) updateTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	templateID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name     string          `json:"name"`
		Fields   json.RawMessage `json:"fields"`
		KeepLock bool            `json:"keep_lock"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	ctx := r.Context()
	if err := h.resolver.CanEdit(ctx, actor, workspace.KindMetadataTemplate, templateID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.locks.CheckMutable(ctx, workspace.KindMetadataTemplate, templateID, actor); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	template, err := h.store.GetTemplate(ctx, templateID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	template.Name = req.Name
	template.Fields = req.Fields
	if err := h.store.UpdateTemplate(ctx, template); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.locks.ReleaseAfterMutation(ctx, workspace.KindMetadataTemplate, templateID, actor, req.KeepLock); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	template, err = h.store.GetTemplate(ctx, templateID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, template)
}

// deleteTemplate handles DELETE /api/v1/templates/{id}
func (h *TemplateHandlers) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	templateID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.resolver.CanEdit(ctx, actor, workspace.KindMetadataTemplate, templateID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}
	if err := h.locks.CheckMutable(ctx, workspace.KindMetadataTemplate, templateID, actor); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.store.DeleteTemplate(ctx, templateID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listProjectTemplates handles GET /api/v1/projects/{id}/templates
func (h *TemplateHandlers) listProjectTemplates(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.resolver.CanView(r.Context(), actor, workspace.KindProject, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	templates, err := h.store.ListTemplatesForProject(r.Context(), projectID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, templates)
}

// listFolderTemplates handles GET /api/v1/folders/{id}/templates
//
// Returns templates usable in the folder: global ones, the project's,
// and the folder's own.
func (h *TemplateHandlers) listFolderTemplates(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.resolver.CanView(r.Context(), actor, workspace.KindFolder, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	folder, err := h.store.GetFolder(r.Context(), folderID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	templates, err := h.store.ListTemplatesForFolder(r.Context(), folderID, folder.ProjectID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, templates)
}
