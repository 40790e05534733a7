package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zorli-ai/docvault/internal/api/handlers"
	"github.com/zorli-ai/docvault/internal/config"
	"github.com/zorli-ai/docvault/internal/database"
	"github.com/zorli-ai/docvault/internal/extract"
	"github.com/zorli-ai/docvault/internal/index"
	"github.com/zorli-ai/docvault/internal/jobs"
	"github.com/zorli-ai/docvault/internal/openai"
	"github.com/zorli-ai/docvault/internal/repository"
	"github.com/zorli-ai/docvault/internal/server"
	"github.com/zorli-ai/docvault/internal/service"
	"github.com/zorli-ai/docvault/internal/storage"
	"github.com/zorli-ai/docvault/internal/telemetry"
)

// multipartOverheadBytes is headroom on top of the document size limit
// for multipart boundaries and part headers, so a file at exactly the
// limit is rejected by the upload validation rather than the transport.
const multipartOverheadBytes = 1 << 20

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docvault API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if cfg.HasSentry() {
		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if cfg.SentryEnvironment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	// The pipeline stores every upload before processing it, so object
	// storage is not optional the way the embedding provider is.
	if !cfg.HasS3() {
		return fmt.Errorf("object storage is not configured: set S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY")
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
		return fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)

	searchIndex := index.New(index.Config{
		Dimensions:        cfg.EmbeddingDims,
		VectorMinSim:      cfg.VectorMinSim,
		VectorBypassSim:   cfg.VectorBypassSim,
		VectorWeight:      cfg.VectorWeight,
		KeywordWeight:     cfg.KeywordWeight,
		KeywordOnlyWeight: cfg.KeywordOnlyWeight,
		StrictGateRatio:   cfg.StrictGateRatio,
		RelaxedGateRatio:  cfg.RelaxedGateRatio,
		CandidateCap:      cfg.CandidateCap,
	})

	// A keyless client reports unavailable and the service runs in
	// lexical-only mode instead of refusing to start.
	embeddingClient := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDims,
	})
	embeddingSvc := service.NewEmbeddingService(embeddingClient,
		cfg.EmbedBatchSize, time.Duration(cfg.EmbedBatchDelayMS)*time.Millisecond)
	if embeddingSvc.Available() {
		log.Printf("embedding provider ready (model %s)", cfg.EmbeddingModel)
	} else {
		log.Println("no embedding provider configured, running in lexical-only mode")
	}

	extractor := extract.NewExtractor(
		extract.NewFitzRenderer(),
		extract.NewTesseractEngine(cfg.OCRLanguage),
		extract.Options{
			MaxPDFPages:          cfg.MaxPDFPages,
			MinImageWidth:        cfg.OCRMinImageWidth,
			PresentationMinChars: cfg.PresentationMinChars,
		},
	)

	// The dispatcher and the ingestion service reference each other: the
	// dispatcher runs Process, Reprocess enqueues through the dispatcher.
	// ProcessorFunc closes over the service variable to break the cycle.
	var ingestionSvc *service.IngestionService
	dispatcher, err := jobs.NewDispatcher(
		jobs.ProcessorFunc(func(ctx context.Context, documentID string) error {
			return ingestionSvc.Process(ctx, documentID)
		}),
		documentRepo,
		jobs.DispatcherConfig{
			WorkerCount:    cfg.WorkerCount,
			QueueCapacity:  cfg.QueueCapacity,
			ProcessTimeout: time.Duration(cfg.ProcessTimeoutSec) * time.Second,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	ingestionSvc = service.NewIngestionService(documentRepo, chunkRepo, s3Client,
		extractor, embeddingSvc, searchIndex, dispatcher,
		service.IngestionConfig{
			ChunkConfig: service.ChunkConfig{
				MaxWords:     cfg.ChunkMaxWords,
				OverlapWords: cfg.ChunkOverlapWords,
			},
			RequireEmbeddings: cfg.RequireEmbeddings,
		})

	documentSvc := service.NewDocumentService(documentRepo, s3Client, dispatcher, cfg.MaxUploadBytes)
	retrievalSvc := service.NewRetrievalService(searchIndex, embeddingSvc, chunkRepo)

	// The index is a cache over the chunk store; rebuild it before the
	// server starts answering searches.
	if _, err := retrievalSvc.RebuildIndex(ctx); err != nil {
		return fmt.Errorf("failed to rebuild search index: %w", err)
	}

	if _, err := dispatcher.RequeuePending(ctx); err != nil {
		return fmt.Errorf("failed to requeue pending documents: %w", err)
	}
	go dispatcher.Start(ctx)

	documentHandler := handlers.NewDocumentHandler(documentSvc, ingestionSvc)
	searchHandler := handlers.NewSearchHandler(retrievalSvc)
	healthHandler := handlers.NewHealthHandler(pool, embeddingSvc, searchIndex, documentRepo)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: documentHandler,
		SearchHandler:   searchHandler,
		HealthHandler:   healthHandler,
		MaxBodyBytes:    cfg.MaxUploadBytes + multipartOverheadBytes,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop intake first. The dispatcher then drains in-flight work;
	// documents still queued stay pending and are requeued on next boot.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	dispatcher.Stop()

	log.Println("server exited")
	return nil
}
