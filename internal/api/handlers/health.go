package handlers

import (
	"context"
	"net/http"

	"github.com/zorli-ai/docvault/internal/api"
	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/index"
)

type DatabasePinger interface {
	Ping(ctx context.Context) error
}

type EmbeddingProbe interface {
	Available() bool
}

type IndexReader interface {
	Stats() index.Stats
}

type DocumentCounter interface {
	CountByStatus(ctx context.Context) (map[domain.DocumentStatus]int, error)
}

// HealthHandler reports service readiness: database reachability,
// embedding provider availability, and index occupancy. The service is
// degraded rather than down when only the provider is unavailable.
type HealthHandler struct {
	db        DatabasePinger
	embedder  EmbeddingProbe
	idx       IndexReader
	documents DocumentCounter
}

func NewHealthHandler(db DatabasePinger, embedder EmbeddingProbe, idx IndexReader, documents DocumentCounter) *HealthHandler {
	return &HealthHandler{
		db:        db,
		embedder:  embedder,
		idx:       idx,
		documents: documents,
	}
}

type IndexInfo struct {
	Chunks     int `json:"chunks"`
	Documents  int `json:"documents"`
	Workspaces int `json:"workspaces"`
}

type HealthResponse struct {
	Status              string         `json:"status"`
	Degraded            bool           `json:"degraded"`
	Database            string         `json:"database"`
	EmbeddingsAvailable bool           `json:"embeddings_available"`
	Index               IndexInfo      `json:"index"`
	Documents           map[string]int `json:"documents,omitempty"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
	}

	if err := h.db.Ping(r.Context()); err != nil {
		resp.Status = "unavailable"
		resp.Database = "error"
		api.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.EmbeddingsAvailable = h.embedder.Available()
	if !resp.EmbeddingsAvailable {
		resp.Status = "degraded"
		resp.Degraded = true
	}

	stats := h.idx.Stats()
	resp.Index = IndexInfo{
		Chunks:     stats.Chunks,
		Documents:  stats.Documents,
		Workspaces: stats.Workspaces,
	}

	counts, err := h.documents.CountByStatus(r.Context())
	if err != nil {
		resp.Status = "unavailable"
		resp.Database = "error"
		api.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	byStatus := make(map[string]int, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
	}
	resp.Documents = byStatus

	api.JSON(w, http.StatusOK, resp)
}
