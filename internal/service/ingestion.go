package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/extract"
	"github.com/zorli-ai/docvault/internal/index"
	"github.com/zorli-ai/docvault/internal/telemetry"
)

// IngestionDocumentRepository defines the document state transitions the
// pipeline drives. Claiming and completion are guarded updates: a claim
// only succeeds on a pending document, and completion only succeeds if
// the document still exists, so a concurrent removal wins over a late
// completion.
type IngestionDocumentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ClaimForProcessing(ctx context.Context, id string) (*domain.Document, error)
	SetStage(ctx context.Context, id string, stage domain.ProcessingStage) error
	RecordExtraction(ctx context.Context, id, method string, confidence float64, pageCount int) error
	MarkCompleted(ctx context.Context, id string, chunkCount, embeddedCount int) (bool, error)
	MarkFailed(ctx context.Context, id string, stage domain.ProcessingStage, reason string) error
	ResetForReprocess(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// IngestionChunkRepository defines the repository interface for chunk persistence
type IngestionChunkRepository interface {
	ReplaceForDocument(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// IngestionStorage defines the blob storage interface for the pipeline
type IngestionStorage interface {
	Download(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// TextExtractor defines the interface for extracting text from raw document bytes
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, filename, contentType string) (extract.Result, error)
}

// ChunkEmbedder defines the interface for batch chunk embedding
type ChunkEmbedder interface {
	EmbedChunks(ctx context.Context, chunks []domain.DocumentChunk) (map[string][]float32, int, error)
	Available() bool
}

// ChunkIndex defines the search index maintenance operations
type ChunkIndex interface {
	AddChunks(entries []index.Entry)
	RemoveDocument(documentID string)
}

// Enqueuer defines the interface for queueing documents for processing
type Enqueuer interface {
	Enqueue(documentID string) error
}

// IngestionConfig controls pipeline behavior
type IngestionConfig struct {
	ChunkConfig ChunkConfig

	// RequireEmbeddings fails processing when the embedding provider is
	// unavailable instead of indexing the document lexical-only.
	RequireEmbeddings bool
}

// IngestionService drives a claimed document through the processing
// pipeline: download, extract, chunk, embed, index. A stage failure is
// terminal; the document stays failed until a caller asks for a
// reprocess.
type IngestionService struct {
	documents   IngestionDocumentRepository
	chunks      IngestionChunkRepository
	storage     IngestionStorage
	extractor   TextExtractor
	embedder    ChunkEmbedder
	searchIndex ChunkIndex
	queue       Enqueuer
	cfg         IngestionConfig
	uuidGen     UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(
	documents IngestionDocumentRepository,
	chunks IngestionChunkRepository,
	storage IngestionStorage,
	extractor TextExtractor,
	embedder ChunkEmbedder,
	searchIndex ChunkIndex,
	queue Enqueuer,
	cfg IngestionConfig,
) *IngestionService {
	return NewIngestionServiceWithUUIDGen(documents, chunks, storage, extractor, embedder,
		searchIndex, queue, cfg, &DefaultUUIDGenerator{})
}

// NewIngestionServiceWithUUIDGen creates a new IngestionService with custom UUID generator (for testing)
func NewIngestionServiceWithUUIDGen(
	documents IngestionDocumentRepository,
	chunks IngestionChunkRepository,
	storage IngestionStorage,
	extractor TextExtractor,
	embedder ChunkEmbedder,
	searchIndex ChunkIndex,
	queue Enqueuer,
	cfg IngestionConfig,
	uuidGen UUIDGenerator,
) *IngestionService {
	if cfg.ChunkConfig == (ChunkConfig{}) {
		cfg.ChunkConfig = DefaultChunkConfig()
	}
	return &IngestionService{
		documents:   documents,
		chunks:      chunks,
		storage:     storage,
		extractor:   extractor,
		embedder:    embedder,
		searchIndex: searchIndex,
		queue:       queue,
		cfg:         cfg,
		uuidGen:     uuidGen,
	}
}

// Process runs the full pipeline for one document. It is called by the
// background workers, one call per queued document.
func (s *IngestionService) Process(ctx context.Context, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Process", telemetry.SpanAttributes{
		DocumentID: documentID,
		Operation:  "process",
	})
	defer span.End()

	doc, err := s.documents.ClaimForProcessing(ctx, documentID)
	if err != nil {
		return err
	}

	log.Printf("Processing document %s (%s)", doc.ID, doc.Filename)

	data, err := s.storage.Download(ctx, doc.StorageKey)
	if err != nil {
		return s.fail(ctx, doc, domain.StageExtracting,
			domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "document download failed", err))
	}

	res, err := s.extractor.Extract(ctx, data, doc.Filename, doc.MediaType)
	if err != nil {
		return s.fail(ctx, doc, domain.StageExtracting, err)
	}
	if strings.TrimSpace(res.Content) == "" {
		return s.fail(ctx, doc, domain.StageExtracting, domain.ErrNoExtractableContent)
	}
	if err := s.documents.RecordExtraction(ctx, doc.ID, res.Method, res.Confidence, res.PageCount); err != nil {
		return fmt.Errorf("failed to record extraction: %w", err)
	}

	if err := s.documents.SetStage(ctx, doc.ID, domain.StageChunking); err != nil {
		return fmt.Errorf("failed to set stage: %w", err)
	}
	textChunks := ChunkText(res.Content, s.cfg.ChunkConfig)
	if len(textChunks) == 0 {
		return s.fail(ctx, doc, domain.StageChunking, domain.ErrNoChunksProduced)
	}

	now := time.Now().UTC()
	docChunks := make([]domain.DocumentChunk, len(textChunks))
	for i, tc := range textChunks {
		docChunks[i] = domain.DocumentChunk{
			ID:          s.uuidGen.NewString(),
			DocumentID:  doc.ID,
			WorkspaceID: doc.WorkspaceID,
			Filename:    doc.Filename,
			ChunkIndex:  tc.Index,
			Content:     tc.Content,
			StartWord:   tc.StartWord,
			EndWord:     tc.EndWord,
			WordCount:   tc.WordCount,
			CreatedAt:   now,
		}
	}

	if err := s.documents.SetStage(ctx, doc.ID, domain.StageEmbedding); err != nil {
		return fmt.Errorf("failed to set stage: %w", err)
	}
	embeddedCount := 0
	if s.embedder != nil && s.embedder.Available() {
		vectors, usage, err := s.embedder.EmbedChunks(ctx, docChunks)
		if err != nil {
			return s.fail(ctx, doc, domain.StageEmbedding, err)
		}
		for i := range docChunks {
			if vec, ok := vectors[docChunks[i].ID]; ok {
				docChunks[i].Embedding = vec
				embeddedCount++
			}
		}
		log.Printf("Embedded %d/%d chunks for document %s (%d tokens)",
			embeddedCount, len(docChunks), doc.ID, usage)
	} else if s.cfg.RequireEmbeddings {
		return s.fail(ctx, doc, domain.StageEmbedding, domain.ErrEmbeddingUnavailable)
	} else {
		log.Printf("Embedding provider unavailable, indexing document %s lexical-only", doc.ID)
	}

	if err := s.documents.SetStage(ctx, doc.ID, domain.StageIndexing); err != nil {
		return fmt.Errorf("failed to set stage: %w", err)
	}
	if err := s.chunks.ReplaceForDocument(ctx, doc.ID, docChunks); err != nil {
		return s.fail(ctx, doc, domain.StageIndexing,
			domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "chunk persistence failed", err))
	}
	s.searchIndex.AddChunks(toIndexEntries(docChunks))

	done, err := s.documents.MarkCompleted(ctx, doc.ID, len(docChunks), embeddedCount)
	if err != nil {
		return fmt.Errorf("failed to mark document completed: %w", err)
	}
	if !done {
		// The document was removed while we were processing it. Its
		// chunk rows are already gone, so withdraw the index entries.
		s.searchIndex.RemoveDocument(doc.ID)
		log.Printf("Document %s was removed during processing, discarding results", doc.ID)
		return nil
	}

	log.Printf("Document %s processed: %d chunks, %d embedded", doc.ID, len(docChunks), embeddedCount)
	return nil
}

// Reprocess clears a document's derived data and queues it for another
// pipeline run. Documents currently being processed are refused.
func (s *IngestionService) Reprocess(ctx context.Context, workspaceID, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Reprocess", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		DocumentID:  documentID,
		Operation:   "reprocess",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.WorkspaceID != workspaceID {
		return domain.ErrDocumentNotFound
	}
	if doc.Status == domain.DocumentStatusProcessing {
		return domain.ErrDocumentNotProcessable
	}

	s.searchIndex.RemoveDocument(doc.ID)
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	if err := s.documents.ResetForReprocess(ctx, doc.ID); err != nil {
		return err
	}
	if err := s.queue.Enqueue(doc.ID); err != nil {
		return err
	}

	log.Printf("Document %s queued for reprocessing", doc.ID)
	return nil
}

// Remove deletes a document everywhere: index first so searches stop
// returning it, then chunks and the document row, then the stored blob.
// A blob deletion failure is logged but does not fail the removal.
func (s *IngestionService) Remove(ctx context.Context, workspaceID, documentID string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Remove", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		DocumentID:  documentID,
		Operation:   "remove",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.WorkspaceID != workspaceID {
		return domain.ErrDocumentNotFound
	}

	s.searchIndex.RemoveDocument(doc.ID)
	if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document chunks: %w", err)
	}
	if err := s.documents.Delete(ctx, doc.ID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := s.storage.DeleteObject(ctx, doc.StorageKey); err != nil {
		log.Printf("Error deleting blob %s for document %s: %v", doc.StorageKey, doc.ID, err)
	}

	log.Printf("Document %s removed", doc.ID)
	return nil
}

// fail marks the document failed at the given stage and returns the
// cause. Cancellation is not a document failure: the claim stays in
// place and the startup requeue picks the document up again.
func (s *IngestionService) fail(ctx context.Context, doc *domain.Document, stage domain.ProcessingStage, cause error) error {
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}

	log.Printf("Document %s failed during %s: %v", doc.ID, stage, cause)
	if err := s.documents.MarkFailed(ctx, doc.ID, stage, cause.Error()); err != nil {
		log.Printf("Error marking document %s failed: %v", doc.ID, err)
	}
	return cause
}

// toIndexEntries converts persisted chunks into index entries.
func toIndexEntries(chunks []domain.DocumentChunk) []index.Entry {
	entries := make([]index.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = index.Entry{
			ChunkID:     c.ID,
			DocumentID:  c.DocumentID,
			WorkspaceID: c.WorkspaceID,
			Filename:    c.Filename,
			ChunkIndex:  c.ChunkIndex,
			Content:     c.Content,
			Embedding:   c.Embedding,
		}
	}
	return entries
}
