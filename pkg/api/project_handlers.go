package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/curateio/curate/pkg/access"
	"github.com/curateio/curate/pkg/cascade"
	"github.com/curateio/curate/pkg/httputil"
	"github.com/curateio/curate/pkg/workspace"
)

// ProjectHandlers handles project and membership HTTP requests
type ProjectHandlers struct {
	engine   *cascade.Engine
	store    *workspace.Store
	resolver *access.Resolver
}

// NewProjectHandlers creates a new project handlers instance
func NewProjectHandlers(engine *cascade.Engine, store *workspace.Store, resolver *access.Resolver) *ProjectHandlers {
	return &ProjectHandlers{engine: engine, store: store, resolver: resolver}
}

// RegisterRoutes registers project routes
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/projects", h.createProject).Methods("POST")
	router.HandleFunc("/api/v1/projects", h.listProjects).Methods("GET")
	router.HandleFunc("/api/v1/projects/{id}", h.getProject).Methods("GET")
	router.HandleFunc("/api/v1/projects/{id}", h.updateProject).Methods("PUT")
	router.HandleFunc("/api/v1/projects/{id}", h.deleteProject).Methods("DELETE")

	router.HandleFunc("/api/v1/projects/{id}/members", h.listMembers).Methods("GET")
	router.HandleFunc("/api/v1/projects/{id}/members", h.upsertMember).Methods("POST")
	router.HandleFunc("/api/v1/projects/{id}/members", h.replaceMembers).Methods("PUT")
	router.HandleFunc("/api/v1/projects/{id}/members/{user_id}", h.removeMember).Methods("DELETE")
}

// createProject handles POST /api/v1/projects
func (h *ProjectHandlers) createProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	project, err := h.engine.CreateProject(r.Context(), actor, req.Name, req.Description)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, project)
}

// listProjects handles GET /api/v1/projects
func (h *ProjectHandlers) listProjects(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	projects, err := h.store.ListProjectsForUser(r.Context(), actor)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, projects)
}

// getProject handles GET /api/v1/projects/{id}
func (h *ProjectHandlers) getProject(w http.ResponseWriter, r *http.Request) {
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

	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, project)
}

// updateProject handles PUT /api/v1/projects/{id}
func (h *ProjectHandlers) updateProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		KeepLock    bool   `json:"keep_lock"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	if err := h.resolver.CanEdit(r.Context(), actor, workspace.KindProject, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	project, err := h.engine.UpdateProject(r.Context(), actor, projectID, req.Name, req.Description, req.KeepLock)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, project)
}

// deleteProject handles DELETE /api/v1/projects/{id}
func (h *ProjectHandlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindProject, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.engine.DeleteProject(r.Context(), actor, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listMembers handles GET /api/v1/projects/{id}/members
func (h *ProjectHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
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

	members, err := h.store.ListMemberships(r.Context(), projectID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// upsertMember handles POST /api/v1/projects/{id}/members
func (h *ProjectHandlers) upsertMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var grant workspace.MemberGrant
	if !httputil.ParseJSONOrError(w, r, &grant) {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindProject, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	membership, err := h.engine.UpsertMembership(r.Context(), actor, projectID, grant)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, membership)
}

// replaceMembers handles PUT /api/v1/projects/{id}/members
func (h *ProjectHandlers) replaceMembers(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Members []workspace.MemberGrant `json:"members"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindProject, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	members, err := h.engine.ReplaceProjectMemberships(r.Context(), actor, projectID, req.Members)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, members)
}

// removeMember handles DELETE /api/v1/projects/{id}/members/{user_id}
func (h *ProjectHandlers) removeMember(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	projectID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}
	userID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	if err := h.resolver.CanAdminister(r.Context(), actor, workspace.KindProject, projectID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	if err := h.engine.RemoveMembership(r.Context(), actor, projectID, workspace.UserByID(userID)); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}
