// Package handler provides the HTTP request handlers for the dataset API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/service"
)

// DatasetAPI is the service surface the handlers call.
type DatasetAPI interface {
	InitializeDataset(ctx context.Context, req service.InitializeRequest) (*model.Dataset, error)
	CreateVersion(ctx context.Context, req service.CreateVersionRequest) (*model.Version, error)
	ListVersions(ctx context.Context, datasetID string) ([]*model.Version, error)
	GetFileTree(ctx context.Context, datasetID, tag string) (*model.FileTree, error)
	BrowseDirectory(ctx context.Context, datasetID, tag, dirPath string, page, limit int) (*model.DirectoryContent, error)
	GetHistory(ctx context.Context, datasetID string, maxCount int) ([]model.CommitInfo, error)
	GetDataset(ctx context.Context, datasetID string) (*model.Dataset, error)
	DeleteDataset(ctx context.Context, datasetID string) error
}

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	datasets    DatasetAPI
	errorWriter *ErrorWriter
	logger      *zap.Logger
	timeout     time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(datasets DatasetAPI, errorWriter *ErrorWriter, logger *zap.Logger, timeout time.Duration) *Handlers {
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	return &Handlers{
		datasets:    datasets,
		errorWriter: errorWriter,
		logger:      logger,
		timeout:     timeout,
	}
}

type createDatasetRequest struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Tenant      string `json:"tenant"`
	ArchivePath string `json:"archive_path,omitempty"`
	Message     string `json:"message,omitempty"`
}

type createVersionRequest struct {
	Tag     string                `json:"tag"`
	Message string                `json:"message,omitempty"`
	Files   []model.FileReference `json:"files"`
}

// CreateDataset handles POST /v1/datasets requests.
func (h *Handlers) CreateDataset(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req createDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorWriter.WriteValidationError(w, "invalid JSON body", requestID)
		return
	}
	if req.Name == "" || req.Tenant == "" {
		h.errorWriter.WriteValidationError(w, "name and tenant are required", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dataset, err := h.datasets.InitializeDataset(ctx, service.InitializeRequest{
		ID:          req.ID,
		Name:        req.Name,
		Tenant:      req.Tenant,
		ArchivePath: req.ArchivePath,
		Message:     req.Message,
	})
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, dataset)
}

// GetDataset handles GET /v1/datasets/{dataset_id} requests.
func (h *Handlers) GetDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	dataset, err := h.datasets.GetDataset(ctx, mux.Vars(r)["dataset_id"])
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, dataset)
}

// DeleteDataset handles DELETE /v1/datasets/{dataset_id} requests.
func (h *Handlers) DeleteDataset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.datasets.DeleteDataset(ctx, mux.Vars(r)["dataset_id"]); err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// CreateVersion handles POST /v1/datasets/{dataset_id}/versions requests.
func (h *Handlers) CreateVersion(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	var req createVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorWriter.WriteValidationError(w, "invalid JSON body", requestID)
		return
	}
	if req.Tag == "" {
		h.errorWriter.WriteValidationError(w, "tag is required", requestID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	version, err := h.datasets.CreateVersion(ctx, service.CreateVersionRequest{
		DatasetID: mux.Vars(r)["dataset_id"],
		Tag:       req.Tag,
		Message:   req.Message,
		Files:     req.Files,
	})
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusCreated, version)
}

// ListVersions handles GET /v1/datasets/{dataset_id}/versions requests.
func (h *Handlers) ListVersions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	versions, err := h.datasets.ListVersions(ctx, mux.Vars(r)["dataset_id"])
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]any{"versions": versions})
}

// GetFileTree handles GET /v1/datasets/{dataset_id}/versions/{tag}/tree requests.
func (h *Handlers) GetFileTree(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	tree, err := h.datasets.GetFileTree(ctx, vars["dataset_id"], vars["tag"])
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, tree)
}

// BrowseDirectory handles GET /v1/datasets/{dataset_id}/versions/{tag}/files requests.
func (h *Handlers) BrowseDirectory(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	vars := mux.Vars(r)
	query := r.URL.Query()

	page := 1
	if raw := query.Get("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.errorWriter.WriteValidationError(w, "page must be an integer", requestID)
			return
		}
		page = parsed
	}

	limit := 50
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.errorWriter.WriteValidationError(w, "limit must be an integer", requestID)
			return
		}
		limit = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	content, err := h.datasets.BrowseDirectory(ctx, vars["dataset_id"], vars["tag"], query.Get("path"), page, limit)
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, content)
}

// GetHistory handles GET /v1/datasets/{dataset_id}/history requests.
func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	maxCount := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.errorWriter.WriteValidationError(w, "limit must be a positive integer", requestID)
			return
		}
		maxCount = parsed
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	history, err := h.datasets.GetHistory(ctx, mux.Vars(r)["dataset_id"], maxCount)
	if err != nil {
		h.errorWriter.HandleError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]any{"commits": history})
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
