package service

import (
	"strings"

	"github.com/zorli-ai/docvault/internal/domain"
)

// ChunkConfig controls the word window used to split extracted text.
type ChunkConfig struct {
	MaxWords     int
	OverlapWords int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxWords:     300,
		OverlapWords: 50,
	}
}

// Validate rejects window geometry that cannot make progress. Overlap
// must stay strictly below the window size or the start index would
// never advance.
func (c ChunkConfig) Validate() error {
	if c.MaxWords <= 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "chunk max words must be positive")
	}
	if c.OverlapWords < 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "chunk overlap words cannot be negative")
	}
	if c.OverlapWords >= c.MaxWords {
		return domain.ErrInvalidChunkConfig
	}
	return nil
}

// TextChunk is one window of the source text with its word offsets.
type TextChunk struct {
	Index     int
	Content   string
	StartWord int
	EndWord   int
	WordCount int
}

// ChunkText splits text into overlapping word windows. The same text
// and config always yield the same chunks. Empty or whitespace-only
// input yields no chunks.
func ChunkText(text string, cfg ChunkConfig) []TextChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if cfg.MaxWords <= 0 || cfg.OverlapWords >= cfg.MaxWords {
		cfg = DefaultChunkConfig()
	}

	step := cfg.MaxWords - cfg.OverlapWords
	chunks := make([]TextChunk, 0, (len(words)+step-1)/step)

	for start := 0; start < len(words); start += step {
		end := start + cfg.MaxWords
		if end > len(words) {
			end = len(words)
		}

		chunks = append(chunks, TextChunk{
			Index:     len(chunks),
			Content:   strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
			WordCount: end - start,
		})

		if end >= len(words) {
			break
		}
	}

	return chunks
}
