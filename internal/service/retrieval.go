package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/index"
	"github.com/zorli-ai/docvault/internal/telemetry"
)

// SearchIndexInterface defines the index operations used for retrieval
type SearchIndexInterface interface {
	Search(params index.SearchParams) []index.Result
	AddChunks(entries []index.Entry)
	Stats() index.Stats
}

// QueryEmbedder defines the interface for embedding search queries
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	Available() bool
}

// RetrievalChunkRepository defines the chunk access used to rebuild the index
type RetrievalChunkRepository interface {
	ListPage(ctx context.Context, afterID string, limit int) ([]domain.DocumentChunk, error)
}

const (
	defaultSearchResultLimit = 10
	maxSearchResultLimit     = 50
	defaultContextChars      = 8000
	rebuildBatchSize         = 500
)

// RetrievalService answers workspace-scoped search queries against the
// hybrid index and rebuilds the index from the chunk store at startup.
type RetrievalService struct {
	searchIndex SearchIndexInterface
	embedder    QueryEmbedder
	chunks      RetrievalChunkRepository
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(searchIndex SearchIndexInterface, embedder QueryEmbedder, chunks RetrievalChunkRepository) *RetrievalService {
	return &RetrievalService{
		searchIndex: searchIndex,
		embedder:    embedder,
		chunks:      chunks,
	}
}

// SearchInput represents a search request scoped to one workspace.
// DocumentIDs optionally restricts results to those documents.
type SearchInput struct {
	WorkspaceID string
	Query       string
	Limit       int
	DocumentIDs []string
}

// SearchResult is one ranked chunk, carrying everything a caller needs
// to hand the text to an LLM with a citation.
type SearchResult struct {
	DocumentID   string  `json:"document_id"`
	ChunkID      string  `json:"chunk_id"`
	ChunkIndex   int     `json:"chunk_index"`
	Filename     string  `json:"filename"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
	KeywordScore float64 `json:"keyword_score"`
	Score        float64 `json:"score"`
}

// Search embeds the query when the provider is available and runs the
// hybrid index search. Embedding failures degrade to keyword-only
// retrieval rather than failing the request.
func (s *RetrievalService) Search(ctx context.Context, input SearchInput) ([]SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Search", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		Operation:   "search",
	})
	defer span.End()

	if input.WorkspaceID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "workspace id is required")
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query cannot be empty")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchResultLimit
	}
	if limit > maxSearchResultLimit {
		limit = maxSearchResultLimit
	}

	var queryEmbedding []float32
	if s.embedder != nil && s.embedder.Available() {
		vec, err := s.embedder.EmbedQuery(ctx, input.Query)
		if err != nil {
			log.Printf("Query embedding failed, falling back to keyword search: %v", err)
		} else {
			queryEmbedding = vec
		}
	}

	hits := s.searchIndex.Search(index.SearchParams{
		WorkspaceID:    input.WorkspaceID,
		Query:          input.Query,
		QueryEmbedding: queryEmbedding,
		Limit:          limit,
		DocumentIDs:    input.DocumentIDs,
	})

	results := make([]SearchResult, len(hits))
	for i, h := range hits {
		results[i] = SearchResult{
			DocumentID:   h.DocumentID,
			ChunkID:      h.ChunkID,
			ChunkIndex:   h.ChunkIndex,
			Filename:     h.Filename,
			Content:      h.Content,
			Similarity:   h.Similarity,
			KeywordScore: h.KeywordScore,
			Score:        h.Score,
		}
	}
	return results, nil
}

// RebuildIndex repopulates the in-memory index from the chunk store in
// keyset batches. Embeddingless chunks are indexed too, so documents
// processed in degraded mode stay lexically searchable.
func (s *RetrievalService) RebuildIndex(ctx context.Context) (index.Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.RebuildIndex", telemetry.SpanAttributes{
		Operation: "rebuild",
	})
	defer span.End()

	afterID := ""
	for {
		page, err := s.chunks.ListPage(ctx, afterID, rebuildBatchSize)
		if err != nil {
			return index.Stats{}, domain.NewDomainErrorWithCause(domain.ErrCodeIndexCorruption,
				"search index rebuild failed", err)
		}
		if len(page) == 0 {
			break
		}
		s.searchIndex.AddChunks(toIndexEntries(page))
		afterID = page[len(page)-1].ID
	}

	stats := s.searchIndex.Stats()
	log.Printf("Search index rebuilt: %d chunks, %d documents, %d workspaces",
		stats.Chunks, stats.Documents, stats.Workspaces)
	return stats, nil
}

// AssembleContext renders ranked results into a single prompt-ready
// block. Each chunk is preceded by a [filename] citation line. Chunks
// that would push the block past maxChars are dropped; when even the
// first chunk does not fit it is truncated instead, so a non-empty
// result list never assembles to nothing.
func AssembleContext(results []SearchResult, maxChars int) string {
	if len(results) == 0 {
		return ""
	}
	if maxChars <= 0 {
		maxChars = defaultContextChars
	}

	used := 0
	parts := make([]string, 0, len(results))
	for _, r := range results {
		block := fmt.Sprintf("[%s]\n%s", r.Filename, r.Content)
		n := utf8.RuneCountInString(block)
		sep := 0
		if len(parts) > 0 {
			sep = 2
		}
		if used+sep+n > maxChars {
			if len(parts) == 0 {
				parts = append(parts, string([]rune(block)[:maxChars]))
			}
			break
		}
		parts = append(parts, block)
		used += sep + n
	}
	return strings.Join(parts, "\n\n")
}
