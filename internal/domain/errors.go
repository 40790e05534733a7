package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeQueueFull        = "QUEUE_FULL"
)

// Processing pipeline error codes
const (
	ErrCodeUnsupportedFormat      = "UNSUPPORTED_FORMAT"
	ErrCodeExtractionFailed       = "EXTRACTION_FAILED"
	ErrCodeNoExtractableContent   = "NO_EXTRACTABLE_CONTENT"
	ErrCodeNoChunksProduced       = "NO_CHUNKS_PRODUCED"
	ErrCodeEmbeddingUnavailable   = "EMBEDDING_UNAVAILABLE"
	ErrCodeEmbeddingProviderError = "EMBEDDING_PROVIDER_ERROR"
	ErrCodeEmbeddingCountMismatch = "EMBEDDING_COUNT_MISMATCH"
	ErrCodeDimensionMismatch      = "DIMENSION_MISMATCH"
	ErrCodeIndexCorruption        = "INDEX_CORRUPTION"
)

// Validation errors
var (
	ErrInvalidDocumentStatus  = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidProcessingStage = NewDomainError(ErrCodeValidation, "invalid processing stage")
	ErrInvalidChunkConfig     = NewDomainError(ErrCodeValidation, "chunk overlap must be smaller than chunk size")
	ErrMissingRequiredField   = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "document chunk not found")
)

// Extraction errors
var (
	ErrUnsupportedFormat    = NewDomainError(ErrCodeUnsupportedFormat, "unsupported document format")
	ErrExtractionFailed     = NewDomainError(ErrCodeExtractionFailed, "text extraction failed")
	ErrNoExtractableContent = NewDomainError(ErrCodeNoExtractableContent, "document contains no extractable text")
)

// Chunking and embedding errors
var (
	ErrNoChunksProduced       = NewDomainError(ErrCodeNoChunksProduced, "chunking produced no chunks")
	ErrEmbeddingUnavailable   = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding provider is unavailable")
	ErrEmbeddingCountMismatch = NewDomainError(ErrCodeEmbeddingCountMismatch, "embedding count does not match input count")
	ErrDimensionMismatch      = NewDomainError(ErrCodeDimensionMismatch, "embedding dimensions do not match")
)

// Index and storage errors
var (
	ErrIndexCorruption      = NewDomainError(ErrCodeIndexCorruption, "search index rebuild failed")
	ErrStorageOperationFail = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// Operation errors
var (
	ErrDocumentNotProcessable = NewDomainError(ErrCodeInvalidOperation, "document is not in a processable state")
	ErrQueueFull              = NewDomainError(ErrCodeQueueFull, "ingestion queue is full")
)
