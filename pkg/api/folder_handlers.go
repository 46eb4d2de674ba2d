package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/curateio/curate/pkg/access"
	"github.com/curateio/curate/pkg/cascade"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/workspace"
)

// FolderHandlers handles folder and folder permission HTTP requests
type FolderHandlers struct {
	engine   *cascade.Engine
	store    *workspace.Store
	resolver *access.Resolver
}

// NewFolderHandlers creates a new folder handlers instance
func NewFolderHandlers(engine *cascade.Engine, store *workspace.Store, resolver *access.Resolver) *FolderHandlers {
	return &FolderHandlers{engine: engine, store: store, resolver: resolver}
}

// RegisterRoutes registers folder routes
func (h *FolderHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/projects/{id}/folders", h.createFolder).Methods("POST")
	router.HandleFunc("/api/v1/projects/{id}/folders", h.listFolders).Methods("GET")
	router.HandleFunc("/api/v1/folders/{id}", h.getFolder).Methods("GET")
	router.HandleFunc("/api/v1/folders/{id}", h.updateFolder).Methods("PUT")
	router.HandleFunc("/api/v1/folders/{id}", h.deleteFolder).Methods("DELETE")

	router.HandleFunc("/api/v1/folders/{id}/permissions", h.listPermissions).Methods("GET")
	router.HandleFunc("/api/v1/folders/{id}/permissions", h.upsertPermission).Methods("POST")
	router.HandleFunc("/api/v1/folders/{id}/permissions", h.replacePermissions).Methods("PUT")
	router.HandleFunc("/api/v1/folders/{id}/permissions/{user_id}", h.removePermission).Methods("DELETE")
}

// createFolder handles POST /api/v1/projects/{id}/folders
func (h *FolderHandlers) createFolder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name               string                      `json:"name"`
		MetadataTemplateID *uuid.UUID                  `json:"metadata_template_id"`
		Permissions        []workspace.PermissionGrant `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := h.resolver.CanCreateFolderIn(r.Context(), actor, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	folder, err := h.engine.CreateFolder(r.Context(), actor, projectID, req.Name, req.MetadataTemplateID, req.Permissions)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, folder)
}

// listFolders handles GET /api/v1/projects/{id}/folders
//
// Only folders the caller can see come back: every folder for project
// admins, granted folders for everyone else.
func (h *FolderHandlers) listFolders(w http.ResponseWriter, r *http.Request) {
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

	folders, err := h.store.ListFoldersForUser(r.Context(), projectID, actor)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, folders)
}

// getFolder handles GET /api/v1/folders/{id}
func (h *FolderHandlers) getFolder(w http.ResponseWriter, r *http.Request) {
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

	httputil.WriteSuccess(w, folder)
}

// updateFolder handles PUT /api/v1/folders/{id}
func (h *FolderHandlers) updateFolder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name               string     `json:"name"`
		MetadataTemplateID *uuid.UUID `json:"metadata_template_id"`
		KeepLock           bool       `json:"keep_lock"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := h.resolver.CanEdit(r.Context(), actor, workspace.KindFolder, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	folder, err := h.engine.UpdateFolder(r.Context(), actor, folderID, req.Name, req.MetadataTemplateID, req.KeepLock)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, folder)
}

// deleteFolder handles DELETE /api/v1/folders/{id}
func (h *FolderHandlers) deleteFolder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindFolder, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.engine.DeleteFolder(r.Context(), actor, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listPermissions handles GET /api/v1/folders/{id}/permissions
func (h *FolderHandlers) listPermissions(w http.ResponseWriter, r *http.Request) {
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

	permissions, err := h.store.ListFolderPermissions(r.Context(), folderID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, permissions)
}

// upsertPermission handles POST /api/v1/folders/{id}/permissions
func (h *FolderHandlers) upsertPermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var grant workspace.PermissionGrant
	if !httputil.ParseJSONOrError(w, r, &grant) {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindFolder, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	permission, err := h.engine.UpsertPermission(r.Context(), actor, folderID, grant)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, permission)
}

// replacePermissions handles PUT /api/v1/folders/{id}/permissions
func (h *FolderHandlers) replacePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Permissions []workspace.PermissionGrant `json:"permissions"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindFolder, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	permissions, err := h.engine.ReplaceFolderPermissions(r.Context(), actor, folderID, req.Permissions)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, permissions)
}

// removePermission handles DELETE /api/v1/folders/{id}/permissions/{user_id}
func (h *FolderHandlers) removePermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindFolder, folderID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.engine.RemovePermission(r.Context(), actor, folderID, workspace.UserByID(userID)); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
