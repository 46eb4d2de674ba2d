package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/curateio/curate/pkg/datasets"
	"github.com/curateio/curate/pkg/httputil"
)

// DatasetHandlers handles dataset HTTP requests
type DatasetHandlers struct {
	service *datasets.Service
}

// NewDatasetHandlers creates a new dataset handlers instance
func NewDatasetHandlers(service *datasets.Service) *DatasetHandlers {
	return &DatasetHandlers{service: service}
}

// RegisterRoutes registers dataset routes
func (h *DatasetHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/datasets", h.createDraft).Methods("POST")
	router.HandleFunc("/api/v1/datasets/drafts", h.listDrafts).Methods("GET")
	router.HandleFunc("/api/v1/datasets/{id}", h.getDataset).Methods("GET")
	router.HandleFunc("/api/v1/datasets/{id}", h.renameDataset).Methods("PUT")
	router.HandleFunc("/api/v1/datasets/{id}", h.deleteDataset).Methods("DELETE")
	router.HandleFunc("/api/v1/datasets/{id}/publish", h.publishDataset).Methods("POST")

	router.HandleFunc("/api/v1/folders/{id}/datasets", h.listFolderDatasets).Methods("GET")
}

// createDraft handles POST /api/v1/datasets
//
// A new dataset always starts as a private draft of its creator. It only
// becomes visible to others once published into a folder.
func (h *DatasetHandlers) createDraft(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	dataset, err := h.service.CreateDraft(r.Context(), actor, req.Name)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteCreated(w, dataset)
}

// listDrafts handles GET /api/v1/datasets/drafts
func (h *DatasetHandlers) listDrafts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}

	drafts, err := h.service.ListDrafts(r.Context(), actor)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, drafts)
}

// getDataset handles GET /api/v1/datasets/{id}
func (h *DatasetHandlers) getDataset(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	datasetID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	dataset, err := h.service.Get(r.Context(), actor, datasetID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, dataset)
}

// renameDataset handles PUT /api/v1/datasets/{id}
func (h *DatasetHandlers) renameDataset(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	datasetID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		Name     string `json:"name"`
		KeepLock bool   `json:"keep_lock"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	dataset, err := h.service.Rename(r.Context(), actor, datasetID, req.Name, req.KeepLock)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, dataset)
}

// publishDataset handles POST /api/v1/datasets/{id}/publish
func (h *DatasetHandlers) publishDataset(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	datasetID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	var req struct {
		FolderID uuid.UUID `json:"folder_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.FolderID == uuid.Nil {
		httputil.WriteBadRequest(w, "folder_id is required")
		return
	}

	dataset, err := h.service.Publish(r.Context(), actor, datasetID, req.FolderID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, dataset)
}

// deleteDataset handles DELETE /api/v1/datasets/{id}
func (h *DatasetHandlers) deleteDataset(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	datasetID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, datasetID); err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// listFolderDatasets handles GET /api/v1/folders/{id}/datasets
func (h *DatasetHandlers) listFolderDatasets(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	folderID, ok := parsePathUUID(w, r, "id")
	if !ok {
		return
	}

	list, err := h.service.ListFolder(r.Context(), actor, folderID)
	if err != nil {
		httputil.WriteDomainError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}
