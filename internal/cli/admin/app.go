package admin

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adaptivenexus/scandoq-chatboat/internal/config"
	"github.com/adaptivenexus/scandoq-chatboat/internal/database"
	"github.com/adaptivenexus/scandoq-chatboat/internal/openai"
	"github.com/adaptivenexus/scandoq-chatboat/internal/repository"
	"github.com/adaptivenexus/scandoq-chatboat/internal/service"
	"github.com/adaptivenexus/scandoq-chatboat/internal/storage"
	"github.com/adaptivenexus/scandoq-chatboat/internal/telemetry"
	"github.com/adaptivenexus/scandoq-chatboat/internal/vectorstore"
)

// app is the wired object graph shared by serve, ingest and ask.
type app struct {
	cfg         *config.Config
	pool        *pgxpool.Pool
	documents   *repository.DocumentRepository
	jobs        *repository.IngestionJobRepository
	pipeline    *service.Pipeline
	documentSvc *service.DocumentService

	closers []func()
}

type appOptions struct {
	migrate bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	pool, err := database.NewPool(ctx, database.Config{
		URL:            cfg.DatabaseURL,
		MaxConns:       int32(8 + 2*cfg.EmbedConcurrency),
		ConnectTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	log.Println("connected to database")

	if opts.migrate {
		if err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsSource); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a.documents = repository.NewDocumentRepository(pool)
	a.jobs = repository.NewIngestionJobRepository(pool)

	files, err := newFileStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := a.newVectorStore(ctx)
	if err != nil {
		return nil, err
	}

	var (
		embeddingClient service.EmbeddingClient
		transcriber     service.TextTranscriber
		chatModel       service.ChatModel
	)
	if cfg.HasLLM() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.LLMAPIKey,
			BaseURL:             cfg.LLMBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDims,
			ChatModel:           cfg.ChatModel,
			ExtractionModel:     cfg.ExtractionModel,
			DocumentPrefix:      cfg.EmbeddingDocumentPrefix,
			QueryPrefix:         cfg.EmbeddingQueryPrefix,
		})
		if cfg.VectorBackend == config.BackendPgvector && client.Dimensions() != repository.ChunkEmbeddingDimensions {
			return nil, fmt.Errorf("SCANDOQ_EMBEDDING_DIMENSIONS is %d but the pgvector chunk column holds %d",
				client.Dimensions(), repository.ChunkEmbeddingDimensions)
		}
		embeddingClient, transcriber, chatModel = client, client, client
	} else {
		log.Println("SCANDOQ_LLM_API_KEY not set: ingestion fails with CREDENTIAL_MISSING and answers report the missing key")
	}

	embeddings := service.NewEmbeddingService(embeddingClient, service.EmbeddingOptions{
		Timeout:       cfg.EmbedTimeout,
		RatePerSecond: cfg.EmbedRatePerSecond,
	})

	a.pipeline = service.NewPipeline(service.PipelineDeps{
		Documents: a.documents,
		Files:     files,
		Extractor: service.NewExtractionService(transcriber, cfg.ExtractTimeout),
		Chunker:   service.NewChunker(service.DefaultChunkConfig()),
		Embedder:  embeddings,
		Store:     store,
		Locker:    repository.NewAdvisoryLocker(pool),
		Retriever: service.NewRetrievalService(embeddings, store, cfg.RetrievalTopK, cfg.StoreTimeout),
		Generator: service.NewGenerationService(chatModel, cfg.GenerateTimeout),
	}, service.PipelineConfig{
		EmbedConcurrency: cfg.EmbedConcurrency,
		StoreTimeout:     cfg.StoreTimeout,
		TopK:             cfg.RetrievalTopK,
	})
	// Pending vector cleanups must finish before the store closes.
	a.closers = append(a.closers, a.pipeline.Wait)

	a.documentSvc = service.NewDocumentService(a.documents, repository.NewTxRunner(pool), files, a.pipeline)

	return a, nil
}

func newFileStore(ctx context.Context, cfg *config.Config) (service.FileStore, error) {
	if !cfg.HasS3() {
		local, err := storage.NewLocalStore(cfg.MediaRoot)
		if err != nil {
			return nil, err
		}
		log.Printf("storing documents under %s", cfg.MediaRoot)
		return local, nil
	}

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
	return s3Client, nil
}

func (a *app) newVectorStore(ctx context.Context) (service.VectorStore, error) {
	switch a.cfg.VectorBackend {
	case config.BackendMilvus:
		store, err := vectorstore.NewMilvusStore(ctx, vectorstore.MilvusConfig{
			Address:    a.cfg.MilvusAddress,
			Collection: a.cfg.MilvusCollection,
			Dimensions: a.cfg.EmbeddingDims,
		}, a.documents)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(context.Background()); err != nil {
				log.Printf("milvus: close failed: %v", err)
			}
		})
		log.Printf("vector store: milvus collection %s at %s", a.cfg.MilvusCollection, a.cfg.MilvusAddress)
		return store, nil
	case config.BackendMemory:
		log.Println("vector store: in-memory (vectors are lost on restart)")
		return vectorstore.NewMemoryStore(), nil
	default:
		log.Println("vector store: pgvector")
		return repository.NewDocumentChunkRepository(a.pool), nil
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// initTelemetry starts Sentry when a DSN is configured and returns the flush
// function.
func initTelemetry(cfg *config.Config) func() {
	if cfg.SentryDSN == "" {
		return func() {}
	}

	// 10% sampling in production, everything in development.
	sampleRate := 0.1
	if cfg.Environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}
