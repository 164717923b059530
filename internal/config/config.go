package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Vector store backends.
const (
	BackendPgvector = "pgvector"
	BackendMilvus   = "milvus"
	BackendMemory   = "memory"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Raw uploads go to S3 when configured, otherwise under MediaRoot.
	MediaRoot   string `envconfig:"MEDIA_ROOT" default:"./media"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"scandoq-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	LLMAPIKey       string `envconfig:"LLM_API_KEY"`
	LLMBaseURL      string `envconfig:"LLM_BASE_URL"`
	ChatModel       string `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	ExtractionModel string `envconfig:"EXTRACTION_MODEL" default:"gemini-2.5-flash"`
	EmbeddingModel  string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-004"`
	EmbeddingDims   int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`

	EmbeddingDocumentPrefix string `envconfig:"EMBEDDING_DOCUMENT_PREFIX"`
	EmbeddingQueryPrefix    string `envconfig:"EMBEDDING_QUERY_PREFIX"`

	EmbedConcurrency   int     `envconfig:"EMBED_CONCURRENCY" default:"4"`
	EmbedRatePerSecond float64 `envconfig:"EMBED_RATE_PER_SECOND" default:"0"`

	EmbedTimeout    time.Duration `envconfig:"EMBED_TIMEOUT" default:"30s"`
	GenerateTimeout time.Duration `envconfig:"GENERATE_TIMEOUT" default:"60s"`
	ExtractTimeout  time.Duration `envconfig:"EXTRACT_TIMEOUT" default:"120s"`
	StoreTimeout    time.Duration `envconfig:"STORE_TIMEOUT" default:"30s"`

	VectorBackend    string `envconfig:"VECTOR_BACKEND" default:"pgvector"`
	MilvusAddress    string `envconfig:"MILVUS_ADDRESS"`
	MilvusCollection string `envconfig:"MILVUS_COLLECTION" default:"document_chunks"`

	RetrievalTopK int `envconfig:"RETRIEVAL_TOP_K" default:"5"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SCANDOQ", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.VectorBackend {
	case BackendPgvector, BackendMemory:
	case BackendMilvus:
		if c.MilvusAddress == "" {
			return fmt.Errorf("SCANDOQ_MILVUS_ADDRESS is required for the milvus backend")
		}
	default:
		return fmt.Errorf("unknown vector backend %q", c.VectorBackend)
	}

	if c.EmbeddingDims <= 0 {
		return fmt.Errorf("SCANDOQ_EMBEDDING_DIMENSIONS must be positive")
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = 1
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = 5
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasLLM() bool {
	return c.LLMAPIKey != ""
}

func (c *Config) HasMilvus() bool {
	return c.VectorBackend == BackendMilvus && c.MilvusAddress != ""
}
