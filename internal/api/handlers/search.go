package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/zorli-ai/docvault/internal/api"
	"github.com/zorli-ai/docvault/internal/api/middleware"
	"github.com/zorli-ai/docvault/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query   string   `json:"query"`
	Limit   int      `json:"limit,omitempty"`
	FileIDs []string `json:"file_ids,omitempty"`
}

type SearchResponse struct {
	Results []service.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	workspaceID := middleware.GetWorkspaceID(r.Context())
	if workspaceID == "" {
		api.Error(w, http.StatusBadRequest, "missing workspace header")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		WorkspaceID: workspaceID,
		Query:       req.Query,
		Limit:       req.Limit,
		DocumentIDs: req.FileIDs,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results: results,
		Count:   len(results),
	})
}
