package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the lifecycle status of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// ProcessingStage represents the pipeline stage a processing document is in
type ProcessingStage string

const (
	StageExtracting ProcessingStage = "extracting"
	StageChunking   ProcessingStage = "chunking"
	StageEmbedding  ProcessingStage = "embedding"
	StageIndexing   ProcessingStage = "indexing"
)

// Document represents an uploaded document owned by a workspace
type Document struct {
	ID                string
	WorkspaceID       string
	Filename          string
	MediaType         string
	SizeBytes         int64
	StorageKey        string
	Status            DocumentStatus
	Stage             ProcessingStage
	FailReason        string
	ChunkCount        int
	EmbeddedCount     int
	ExtractMethod     string
	ExtractConfidence float64
	PageCount         int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewDocument creates a new Document instance in the pending state
func NewDocument(
	id, workspaceID, filename, mediaType, storageKey string,
	sizeBytes int64,
	createdAt time.Time,
) *Document {
	return &Document{
		ID:          id,
		WorkspaceID: workspaceID,
		Filename:    filename,
		MediaType:   mediaType,
		SizeBytes:   sizeBytes,
		StorageKey:  storageKey,
		Status:      DocumentStatusPending,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.WorkspaceID == "" {
		return fmt.Errorf("document WorkspaceID is required")
	}

	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}

	if d.StorageKey == "" {
		return fmt.Errorf("document StorageKey is required")
	}

	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}

	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}

	if d.Stage != "" && !isValidProcessingStage(d.Stage) {
		return fmt.Errorf("document Stage is invalid: %s", d.Stage)
	}

	if d.Stage != "" && d.Status != DocumentStatusProcessing && d.Status != DocumentStatusFailed {
		return fmt.Errorf("document Stage is only valid while processing or failed")
	}

	return nil
}

// CanTransition reports whether a document may move from its current
// status to the target status.
func (d *Document) CanTransition(target DocumentStatus) bool {
	switch d.Status {
	case DocumentStatusPending:
		return target == DocumentStatusProcessing || target == DocumentStatusFailed
	case DocumentStatusProcessing:
		return target == DocumentStatusCompleted || target == DocumentStatusFailed
	case DocumentStatusCompleted, DocumentStatusFailed:
		return target == DocumentStatusPending
	}
	return false
}

// isValidDocumentStatus checks if a DocumentStatus is valid
func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	}
	return false
}

// isValidProcessingStage checks if a ProcessingStage is valid
func isValidProcessingStage(s ProcessingStage) bool {
	switch s {
	case StageExtracting, StageChunking, StageEmbedding, StageIndexing:
		return true
	}
	return false
}
