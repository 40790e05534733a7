package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zorli-ai/docvault/internal/domain"
	"github.com/zorli-ai/docvault/internal/pagination"
	"github.com/zorli-ai/docvault/internal/telemetry"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByWorkspace(ctx context.Context, workspaceID string, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// DocumentStorage defines the blob storage interface for uploads
type DocumentStorage interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// DocumentService handles document upload and retrieval. Processing is
// asynchronous: Upload stores the blob, records a pending document, and
// queues it for the pipeline.
type DocumentService struct {
	documents      DocumentRepositoryInterface
	storage        DocumentStorage
	queue          Enqueuer
	maxUploadBytes int64
	uuidGen        UUIDGenerator
}

// NewDocumentService creates a new DocumentService instance
func NewDocumentService(
	documents DocumentRepositoryInterface,
	storage DocumentStorage,
	queue Enqueuer,
	maxUploadBytes int64,
) *DocumentService {
	return NewDocumentServiceWithUUIDGen(documents, storage, queue, maxUploadBytes, &DefaultUUIDGenerator{})
}

// NewDocumentServiceWithUUIDGen creates a new DocumentService with custom UUID generator (for testing)
func NewDocumentServiceWithUUIDGen(
	documents DocumentRepositoryInterface,
	storage DocumentStorage,
	queue Enqueuer,
	maxUploadBytes int64,
	uuidGen UUIDGenerator,
) *DocumentService {
	return &DocumentService{
		documents:      documents,
		storage:        storage,
		queue:          queue,
		maxUploadBytes: maxUploadBytes,
		uuidGen:        uuidGen,
	}
}

// UploadInput represents the input for uploading a document
type UploadInput struct {
	WorkspaceID string
	Filename    string
	ContentType string
	Data        []byte
}

// Upload stores the document bytes, creates a pending document record,
// and queues it for processing. ErrQueueFull surfaces to the caller; the
// document stays pending and can be queued again via Reprocess.
func (s *DocumentService) Upload(ctx context.Context, input UploadInput) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Upload", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		Operation:   "upload",
	})
	defer span.End()

	if input.WorkspaceID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "workspace id is required")
	}
	filename := sanitizeFilename(input.Filename)
	if filename == "" || filename == "." || filename == ".." {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(input.Data) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document content is empty")
	}
	if s.maxUploadBytes > 0 && int64(len(input.Data)) > s.maxUploadBytes {
		return nil, domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("document exceeds the %d byte upload limit", s.maxUploadBytes))
	}

	now := time.Now().UTC()
	documentID := s.uuidGen.NewString()
	storageKey := buildStorageKey(input.WorkspaceID, documentID, filename)

	if err := s.storage.Upload(ctx, storageKey, input.ContentType, input.Data); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc := domain.NewDocument(documentID, input.WorkspaceID, filename, input.ContentType,
		storageKey, int64(len(input.Data)), now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(doc.ID); err != nil {
		return nil, err
	}

	log.Printf("Document %s uploaded as %s (%d bytes)", doc.ID, storageKey, len(input.Data))
	return doc, nil
}

// Get retrieves a document by ID, scoped to the workspace. Documents
// from other workspaces are reported as not found.
func (s *DocumentService) Get(ctx context.Context, workspaceID, documentID string) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Get", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		DocumentID:  documentID,
		Operation:   "get",
	})
	defer span.End()

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.WorkspaceID != workspaceID {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}

type ListDocumentsInput struct {
	WorkspaceID string
	Cursor      string
	Limit       int
}

type ListDocumentsOutput struct {
	Items   []*domain.Document
	Cursor  string
	HasMore bool
}

// List returns a page of the workspace's documents, newest first.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.List", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		Operation:   "list",
	})
	defer span.End()

	if input.WorkspaceID == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "workspace id is required")
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid pagination cursor", err)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	result, err := s.documents.ListByWorkspace(ctx, input.WorkspaceID, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// sanitizeFilename strips any path component from an uploaded filename.
// Browsers occasionally send full client paths, with either separator.
func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// buildStorageKey produces the object key for an uploaded document.
func buildStorageKey(workspaceID, documentID, filename string) string {
	return fmt.Sprintf("workspaces/%s/documents/%s/%s", workspaceID, documentID, filename)
}
