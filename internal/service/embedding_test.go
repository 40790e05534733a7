package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zorli-ai/docvault/internal/domain"
)

// MockEmbeddingProvider mocks the embedding provider
type MockEmbeddingProvider struct {
	mock.Mock
}

func (m *MockEmbeddingProvider) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, int, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([][]float32), args.Int(1), args.Error(2)
}

func (m *MockEmbeddingProvider) IsAvailable() bool {
	args := m.Called()
	return args.Bool(0)
}

func testChunks(contents ...string) []domain.DocumentChunk {
	chunks := make([]domain.DocumentChunk, len(contents))
	for i, c := range contents {
		chunks[i] = domain.DocumentChunk{
			ID:         string(rune('a'+i)) + "-chunk",
			DocumentID: "doc-1",
			ChunkIndex: i,
			Content:    c,
		}
	}
	return chunks
}

func embeddingsOf(n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), float32(i) + 0.5, 0}
	}
	return out
}

func TestEmbeddingService_EmbedChunks_Success(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	ctx := context.Background()
	chunks := testChunks("first chunk", "second chunk", "third chunk")

	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", ctx, []string{"first chunk", "second chunk", "third chunk"}).
		Return(embeddingsOf(3), 21, nil)

	vectors, usage, err := service.EmbedChunks(ctx, chunks)

	require.NoError(t, err)
	assert.Equal(t, 21, usage)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 0.5, 0}, vectors["a-chunk"])
	assert.Equal(t, []float32{1, 1.5, 0}, vectors["b-chunk"])
	assert.Equal(t, []float32{2, 2.5, 0}, vectors["c-chunk"])
	provider.AssertExpectations(t)
}

func TestEmbeddingService_EmbedChunks_SkipsBlankChunks(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	ctx := context.Background()
	chunks := testChunks("real content", "   \n\t ", "more content")

	// Only the two non-blank chunks reach the provider.
	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", ctx, []string{"real content", "more content"}).
		Return(embeddingsOf(2), 10, nil)

	vectors, _, err := service.EmbedChunks(ctx, chunks)

	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Contains(t, vectors, "a-chunk")
	assert.NotContains(t, vectors, "b-chunk")
	assert.Contains(t, vectors, "c-chunk")
	provider.AssertExpectations(t)
}

func TestEmbeddingService_EmbedChunks_Batches(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 2, time.Millisecond)

	ctx := context.Background()
	chunks := testChunks("one", "two", "three", "four", "five")

	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", ctx, []string{"one", "two"}).Return(embeddingsOf(2), 4, nil)
	provider.On("CreateEmbeddings", ctx, []string{"three", "four"}).Return(embeddingsOf(2), 4, nil)
	provider.On("CreateEmbeddings", ctx, []string{"five"}).Return(embeddingsOf(1), 2, nil)

	vectors, usage, err := service.EmbedChunks(ctx, chunks)

	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, 10, usage)
	provider.AssertExpectations(t)
}

func TestEmbeddingService_EmbedChunks_CountMismatch(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	ctx := context.Background()
	chunks := testChunks("one", "two", "three")

	// Two vectors for three chunks: the whole operation fails, nothing
	// is returned.
	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", ctx, mock.Anything).Return(embeddingsOf(2), 6, nil)

	vectors, _, err := service.EmbedChunks(ctx, chunks)

	assert.Nil(t, vectors)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeEmbeddingCountMismatch, domainErr.Code)
	provider.AssertExpectations(t)
}

func TestEmbeddingService_EmbedChunks_ProviderError(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	ctx := context.Background()
	chunks := testChunks("one", "two")

	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", ctx, mock.Anything).
		Return(nil, 0, errors.New("rate limit exceeded"))

	vectors, _, err := service.EmbedChunks(ctx, chunks)

	assert.Nil(t, vectors)
	require.Error(t, err)

	var domainErr *domain.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, domain.ErrCodeEmbeddingProviderError, domainErr.Code)
}

func TestEmbeddingService_EmbedChunks_Unavailable(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	provider.On("IsAvailable").Return(false)

	vectors, _, err := service.EmbedChunks(context.Background(), testChunks("one"))

	assert.Nil(t, vectors)
	assert.Equal(t, domain.ErrEmbeddingUnavailable, err)
	provider.AssertNotCalled(t, "CreateEmbeddings")
}

func TestEmbeddingService_EmbedChunks_CancelledBetweenBatches(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 1, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	chunks := testChunks("one", "two")

	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", mock.Anything, []string{"one"}).
		Run(func(args mock.Arguments) { cancel() }).
		Return(embeddingsOf(1), 2, nil)

	vectors, _, err := service.EmbedChunks(ctx, chunks)

	assert.Nil(t, vectors)
	assert.ErrorIs(t, err, context.Canceled)
	provider.AssertNotCalled(t, "CreateEmbeddings", mock.Anything, []string{"two"})
}

func TestEmbeddingService_EmbedQuery_Success(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	ctx := context.Background()

	provider.On("IsAvailable").Return(true)
	provider.On("CreateEmbeddings", ctx, []string{"search terms"}).
		Return(embeddingsOf(1), 2, nil)

	vector, err := service.EmbedQuery(ctx, "search terms")

	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5, 0}, vector)
}

func TestEmbeddingService_EmbedQuery_Empty(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	provider.On("IsAvailable").Return(true)

	vector, err := service.EmbedQuery(context.Background(), "   ")

	assert.Nil(t, vector)
	assert.Error(t, err)
	provider.AssertNotCalled(t, "CreateEmbeddings")
}

func TestEmbeddingService_Available(t *testing.T) {
	provider := new(MockEmbeddingProvider)
	service := NewEmbeddingService(provider, 10, 0)

	provider.On("IsAvailable").Return(true).Once()
	assert.True(t, service.Available())

	provider.On("IsAvailable").Return(false).Once()
	assert.False(t, service.Available())
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	service := NewEmbeddingService(new(MockEmbeddingProvider), 0, -1)

	assert.Equal(t, defaultEmbedBatchSize, service.batchSize)
	assert.Equal(t, defaultEmbedDelay, service.batchDelay)
}
