package domain

import "time"

// DocumentChunk represents a contiguous word window of a document's
// extracted text. Filename is denormalized so search results can cite
// their source without a join.
type DocumentChunk struct {
	ID          string
	DocumentID  string
	WorkspaceID string
	Filename    string
	ChunkIndex  int
	Content     string
	StartWord   int
	EndWord     int
	WordCount   int
	Embedding   []float32
	CreatedAt   time.Time
}
