package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/zorli-ai/docvault/internal/api"
	"github.com/zorli-ai/docvault/internal/api/middleware"
	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/service"
)

type DocumentService interface {
	Upload(ctx context.Context, input service.UploadInput) (*domain.Document, error)
	Get(ctx context.Context, workspaceID, documentID string) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
}

type DocumentPipeline interface {
	Reprocess(ctx context.Context, workspaceID, documentID string) error
	Remove(ctx context.Context, workspaceID, documentID string) error
}

type DocumentHandler struct {
	svc      DocumentService
	pipeline DocumentPipeline
}

func NewDocumentHandler(svc DocumentService, pipeline DocumentPipeline) *DocumentHandler {
	return &DocumentHandler{svc: svc, pipeline: pipeline}
}

type DocumentResponse struct {
	ID                string  `json:"id"`
	WorkspaceID       string  `json:"workspace_id"`
	Filename          string  `json:"filename"`
	MediaType         string  `json:"media_type"`
	SizeBytes         int64   `json:"size_bytes"`
	Status            string  `json:"status"`
	Stage             string  `json:"stage,omitempty"`
	FailReason        string  `json:"fail_reason,omitempty"`
	ChunkCount        int     `json:"chunk_count"`
	EmbeddedCount     int     `json:"embedded_count"`
	PageCount         int     `json:"page_count,omitempty"`
	ExtractMethod     string  `json:"extract_method,omitempty"`
	ExtractConfidence float64 `json:"extract_confidence,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:                d.ID,
		WorkspaceID:       d.WorkspaceID,
		Filename:          d.Filename,
		MediaType:         d.MediaType,
		SizeBytes:         d.SizeBytes,
		Status:            string(d.Status),
		Stage:             string(d.Stage),
		FailReason:        d.FailReason,
		ChunkCount:        d.ChunkCount,
		EmbeddedCount:     d.EmbeddedCount,
		PageCount:         d.PageCount,
		ExtractMethod:     d.ExtractMethod,
		ExtractConfidence: d.ExtractConfidence,
		CreatedAt:         d.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:         d.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// Upload accepts a multipart document upload and queues it for
// processing. The response is the pending document record.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusBadRequest, "missing workspace header")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file form field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	doc, err := h.svc.Upload(r.Context(), service.UploadInput{
		WorkspaceID: workspaceID,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusBadRequest, "missing workspace header")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.Get(r.Context(), workspaceID, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

type DocumentListResponse struct {
	Items   []*DocumentResponse `json:"items"`
	Cursor  string              `json:"cursor,omitempty"`
	HasMore bool                `json:"has_more"`
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusBadRequest, "missing workspace header")
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 0
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListDocumentsInput{
		WorkspaceID: workspaceID,
		Cursor:      cursor,
		Limit:       limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(output.Items))
	for i, d := range output.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, DocumentListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

type ReprocessResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// Reprocess clears a document's derived data and queues it for another
// pipeline run.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusBadRequest, "missing workspace header")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.pipeline.Reprocess(r.Context(), workspaceID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, ReprocessResponse{
		DocumentID: id,
		Status:     "queued",
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusBadRequest, "missing workspace header")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.pipeline.Remove(r.Context(), workspaceID, id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
