package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zorli-ai/docvault/internal/domain"
)

// EmbeddingProvider defines the interface for batch embedding generation.
// The int return is the provider-reported prompt token usage.
type EmbeddingProvider interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, int, error)
	IsAvailable() bool
}

const (
	defaultEmbedBatchSize = 100
	defaultEmbedDelay     = 200 * time.Millisecond
)

// EmbeddingService turns document chunks into vectors. Chunks are sent
// to the provider in fixed-size batches with a small delay in between
// to stay under provider rate limits.
type EmbeddingService struct {
	provider   EmbeddingProvider
	batchSize  int
	batchDelay time.Duration
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(provider EmbeddingProvider, batchSize int, batchDelay time.Duration) *EmbeddingService {
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}
	if batchDelay < 0 {
		batchDelay = defaultEmbedDelay
	}
	return &EmbeddingService{
		provider:   provider,
		batchSize:  batchSize,
		batchDelay: batchDelay,
	}
}

// Available reports whether the embedding provider can be reached.
func (s *EmbeddingService) Available() bool {
	return s.provider != nil && s.provider.IsAvailable()
}

// EmbedChunks generates one embedding per non-blank chunk and returns
// them keyed by chunk ID. Blank chunks are skipped, never sent to the
// provider, and absent from the result. The operation is all-or-nothing:
// any batch failure returns an error and no partial map.
func (s *EmbeddingService) EmbedChunks(ctx context.Context, chunks []domain.DocumentChunk) (map[string][]float32, int, error) {
	if s.provider == nil || !s.provider.IsAvailable() {
		return nil, 0, domain.ErrEmbeddingUnavailable
	}

	// Blank filtering happens before batching so batch counts always
	// line up with what the provider was actually asked for.
	ids := make([]string, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		ids = append(ids, chunk.ID)
		texts = append(texts, chunk.Content)
	}

	vectors := make(map[string][]float32, len(ids))
	totalUsage := 0

	for start := 0; start < len(ids); start += s.batchSize {
		if start > 0 && s.batchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}

		end := start + s.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batchIDs := ids[start:end]
		batchTexts := texts[start:end]

		batchVectors, usage, err := s.provider.CreateEmbeddings(ctx, batchTexts)
		if err != nil {
			return nil, 0, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingProviderError,
				"embedding provider request failed", err)
		}
		if len(batchVectors) != len(batchTexts) {
			return nil, 0, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingCountMismatch,
				"embedding count does not match input count",
				fmt.Errorf("got %d vectors for %d texts", len(batchVectors), len(batchTexts)))
		}

		for i, id := range batchIDs {
			vectors[id] = batchVectors[i]
		}
		totalUsage += usage
	}

	return vectors, totalUsage, nil
}

// EmbedQuery generates a single embedding for a search query.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.provider == nil || !s.provider.IsAvailable() {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query cannot be empty")
	}

	vectors, _, err := s.provider.CreateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingProviderError,
			"embedding provider request failed", err)
	}
	if len(vectors) != 1 {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingCountMismatch,
			"embedding count does not match input count",
			fmt.Errorf("got %d vectors for 1 text", len(vectors)))
	}

	return vectors[0], nil
}
