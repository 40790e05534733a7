package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"docvault-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDims  int    `envconfig:"EMBEDDING_DIMS" default:"1536"`

	SentryDSN         string `envconfig:"SENTRY_DSN"`
	SentryEnvironment string `envconfig:"SENTRY_ENVIRONMENT" default:"development"`

	// Ingestion pipeline
	ChunkMaxWords        int    `envconfig:"CHUNK_MAX_WORDS" default:"300"`
	ChunkOverlapWords    int    `envconfig:"CHUNK_OVERLAP_WORDS" default:"50"`
	EmbedBatchSize       int    `envconfig:"EMBED_BATCH_SIZE" default:"100"`
	EmbedBatchDelayMS    int    `envconfig:"EMBED_BATCH_DELAY_MS" default:"200"`
	RequireEmbeddings    bool   `envconfig:"REQUIRE_EMBEDDINGS" default:"false"`
	MaxPDFPages          int    `envconfig:"MAX_PDF_PAGES" default:"50"`
	OCRLanguage          string `envconfig:"OCR_LANGUAGE" default:"eng"`
	OCRMinImageWidth     int    `envconfig:"OCR_MIN_IMAGE_WIDTH" default:"1200"`
	PresentationMinChars int    `envconfig:"PRESENTATION_MIN_CHARS" default:"20"`

	// Search
	VectorMinSim      float64 `envconfig:"VECTOR_MIN_SIM" default:"0.45"`
	VectorBypassSim   float64 `envconfig:"VECTOR_BYPASS_SIM" default:"0.70"`
	VectorWeight      float64 `envconfig:"VECTOR_WEIGHT" default:"0.7"`
	KeywordWeight     float64 `envconfig:"KEYWORD_WEIGHT" default:"0.3"`
	KeywordOnlyWeight float64 `envconfig:"KEYWORD_ONLY_WEIGHT" default:"0.55"`
	StrictGateRatio   float64 `envconfig:"STRICT_GATE_RATIO" default:"0.6"`
	RelaxedGateRatio  float64 `envconfig:"RELAXED_GATE_RATIO" default:"0.5"`
	CandidateCap      int     `envconfig:"CANDIDATE_CAP" default:"200"`

	// Queue
	WorkerCount       int `envconfig:"WORKER_COUNT" default:"4"`
	QueueCapacity     int `envconfig:"QUEUE_CAPACITY" default:"256"`
	ProcessTimeoutSec int `envconfig:"PROCESS_TIMEOUT_SEC" default:"600"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"33554432"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("DOCVAULT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate rejects configurations that would misbehave at runtime.
// Chunk geometry in particular is checked here so a bad overlap fails
// the process at startup instead of producing a stalled chunker.
func (c *Config) Validate() error {
	if c.ChunkMaxWords <= 0 {
		return fmt.Errorf("chunk max words must be positive, got %d", c.ChunkMaxWords)
	}
	if c.ChunkOverlapWords < 0 {
		return fmt.Errorf("chunk overlap words cannot be negative, got %d", c.ChunkOverlapWords)
	}
	if c.ChunkOverlapWords >= c.ChunkMaxWords {
		return fmt.Errorf("chunk overlap words (%d) must be smaller than chunk max words (%d)",
			c.ChunkOverlapWords, c.ChunkMaxWords)
	}
	if c.EmbedBatchSize <= 0 {
		return fmt.Errorf("embed batch size must be positive, got %d", c.EmbedBatchSize)
	}
	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("embedding dims must be positive, got %d", c.EmbeddingDims)
	}
	if c.MaxPDFPages <= 0 {
		return fmt.Errorf("max pdf pages must be positive, got %d", c.MaxPDFPages)
	}
	if c.VectorMinSim < 0 || c.VectorMinSim > 1 {
		return fmt.Errorf("vector min similarity must be in [0,1], got %g", c.VectorMinSim)
	}
	if c.VectorBypassSim < c.VectorMinSim || c.VectorBypassSim > 1 {
		return fmt.Errorf("vector bypass similarity must be in [min,1], got %g", c.VectorBypassSim)
	}
	if c.VectorWeight < 0 || c.KeywordWeight < 0 || c.KeywordOnlyWeight < 0 {
		return fmt.Errorf("search weights cannot be negative")
	}
	if c.StrictGateRatio < 0 || c.StrictGateRatio > 1 {
		return fmt.Errorf("strict gate ratio must be in [0,1], got %g", c.StrictGateRatio)
	}
	if c.RelaxedGateRatio < 0 || c.RelaxedGateRatio > 1 {
		return fmt.Errorf("relaxed gate ratio must be in [0,1], got %g", c.RelaxedGateRatio)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker count must be positive, got %d", c.WorkerCount)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("queue capacity must be positive, got %d", c.QueueCapacity)
	}
	if c.ProcessTimeoutSec <= 0 {
		return fmt.Errorf("process timeout must be positive, got %d", c.ProcessTimeoutSec)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}
