package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from text-embedding-3-small
	DefaultEmbeddingDimensions = 1536
)

var (
	// ErrEmptyText is returned when a text in the batch is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrNoInput is returned when the batch contains no texts
	ErrNoInput = errors.New("no texts to embed")
	// ErrWrongDimensions is returned when an embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when the OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrCountMismatch is returned when the API returns a different number of vectors than requested
	ErrCountMismatch = errors.New("embedding count does not match input count")
)

// EmbeddingAPI defines the interface for batch embedding generation.
// The returned usage is the prompt token count reported by the provider.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, int, error)
}

// Client wraps the OpenAI API client
type Client struct {
	api        EmbeddingAPI
	dimensions int
	available  bool
}

type OpenAIAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIAdapter(apiKey, baseURL string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIAdapter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// CreateEmbeddings sends one batch request to the OpenAI API. Response
// vectors come back ordered by their Index field, which the API does
// not guarantee matches request order.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, int, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, 0, err
	}

	data := make([]openai.Embedding, len(resp.Data))
	copy(data, resp.Data)
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, 0, len(data))
	for _, d := range data {
		vectors = append(vectors, d.Embedding)
	}

	return vectors, resp.Usage.PromptTokens, nil
}

type Config struct {
	APIKey              string
	BaseURL             string
	EmbeddingModel      string
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit
// configuration. A client without an API key is still constructible;
// it reports unavailable and refuses to embed, which lets the caller
// run in lexical-only mode.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{
		api:        NewOpenAIAdapter(cfg.APIKey, cfg.BaseURL, openai.EmbeddingModel(cfg.EmbeddingModel)),
		dimensions: dimensions,
		available:  cfg.APIKey != "",
	}
}

// NewClientFromEnv creates a new OpenAI client using the OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// IsAvailable reports whether the client is configured to reach the provider.
func (c *Client) IsAvailable() bool {
	return c.available
}

// CreateEmbeddings generates embeddings for a batch of texts. Exactly
// one vector per input text is returned, in input order, or the call
// fails as a whole.
func (c *Client) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, int, error) {
	if !c.available {
		return nil, 0, ErrNoAPIKey
	}
	if len(texts) == 0 {
		return nil, 0, ErrNoInput
	}
	for _, text := range texts {
		if text == "" {
			return nil, 0, ErrEmptyText
		}
	}

	vectors, usage, err := c.api.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create embeddings: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, 0, fmt.Errorf("%w: got %d for %d texts", ErrCountMismatch, len(vectors), len(texts))
	}

	expected := c.dimensions
	if expected <= 0 {
		expected = DefaultEmbeddingDimensions
	}
	for i, v := range vectors {
		if len(v) != expected {
			return nil, 0, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrWrongDimensions, i, len(v), expected)
		}
	}

	return vectors, usage, nil
}
