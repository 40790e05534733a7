package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i+1)
	}
	return strings.Join(words, " ")
}

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkConfig()))
	assert.Nil(t, ChunkText("   \n\t  ", DefaultChunkConfig()))
}

func TestChunkText_SingleShortChunk(t *testing.T) {
	cfg := ChunkConfig{MaxWords: 100, OverlapWords: 10}
	chunks := ChunkText("hello   world\nagain", cfg)

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "hello world again", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartWord)
	assert.Equal(t, 3, chunks[0].EndWord)
	assert.Equal(t, 3, chunks[0].WordCount)
}

func TestChunkText_OverlappingWindows(t *testing.T) {
	cfg := ChunkConfig{MaxWords: 4, OverlapWords: 1}
	chunks := ChunkText(wordText(10), cfg)

	require.Len(t, chunks, 3)

	assert.Equal(t, "w1 w2 w3 w4", chunks[0].Content)
	assert.Equal(t, "w4 w5 w6 w7", chunks[1].Content)
	assert.Equal(t, "w7 w8 w9 w10", chunks[2].Content)

	assert.Equal(t, 0, chunks[0].StartWord)
	assert.Equal(t, 4, chunks[0].EndWord)
	assert.Equal(t, 3, chunks[1].StartWord)
	assert.Equal(t, 7, chunks[1].EndWord)
	assert.Equal(t, 6, chunks[2].StartWord)
	assert.Equal(t, 10, chunks[2].EndWord)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.LessOrEqual(t, c.WordCount, cfg.MaxWords)
	}
}

func TestChunkText_ZeroOverlap(t *testing.T) {
	cfg := ChunkConfig{MaxWords: 5, OverlapWords: 0}
	chunks := ChunkText(wordText(10), cfg)

	require.Len(t, chunks, 2)
	assert.Equal(t, "w1 w2 w3 w4 w5", chunks[0].Content)
	assert.Equal(t, "w6 w7 w8 w9 w10", chunks[1].Content)
}

func TestChunkText_ShortTail(t *testing.T) {
	cfg := ChunkConfig{MaxWords: 3, OverlapWords: 1}
	chunks := ChunkText(wordText(8), cfg)

	require.Len(t, chunks, 4)
	last := chunks[len(chunks)-1]
	assert.Equal(t, "w7 w8", last.Content)
	assert.Equal(t, 2, last.WordCount)
	assert.Equal(t, 8, last.EndWord)
}

func TestChunkText_Deterministic(t *testing.T) {
	cfg := ChunkConfig{MaxWords: 7, OverlapWords: 2}
	text := wordText(53)

	first := ChunkText(text, cfg)
	second := ChunkText(text, cfg)

	assert.Equal(t, first, second)
}

func TestChunkText_OverlapIsSharedContent(t *testing.T) {
	cfg := ChunkConfig{MaxWords: 10, OverlapWords: 3}
	chunks := ChunkText(wordText(40), cfg)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Content)
		cur := strings.Fields(chunks[i].Content)
		if chunks[i-1].WordCount < cfg.MaxWords {
			continue
		}
		tail := prev[len(prev)-cfg.OverlapWords:]
		head := cur[:cfg.OverlapWords]
		assert.Equal(t, tail, head, "chunk %d should start with the tail of chunk %d", i, i-1)
	}
}

func TestChunkText_InvalidConfigFallsBackToDefaults(t *testing.T) {
	chunks := ChunkText(wordText(5), ChunkConfig{MaxWords: 0, OverlapWords: 0})
	require.Len(t, chunks, 1)
	assert.Equal(t, 5, chunks[0].WordCount)
}

func TestChunkConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ChunkConfig
		wantErr bool
	}{
		{"valid", ChunkConfig{MaxWords: 300, OverlapWords: 50}, false},
		{"valid zero overlap", ChunkConfig{MaxWords: 10, OverlapWords: 0}, false},
		{"zero max words", ChunkConfig{MaxWords: 0, OverlapWords: 0}, true},
		{"negative overlap", ChunkConfig{MaxWords: 10, OverlapWords: -1}, true},
		{"overlap equals max", ChunkConfig{MaxWords: 50, OverlapWords: 50}, true},
		{"overlap above max", ChunkConfig{MaxWords: 50, OverlapWords: 60}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
