package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/api"
	"github.com/dvloznov/spendlens/internal/api/handlers"
	"github.com/dvloznov/spendlens/internal/archive"
	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/classify"
	"github.com/dvloznov/spendlens/internal/config"
	"github.com/dvloznov/spendlens/internal/extract"
	"github.com/dvloznov/spendlens/internal/jobs"
	"github.com/dvloznov/spendlens/internal/jobs/inmemory"
	"github.com/dvloznov/spendlens/internal/logger"
	"github.com/dvloznov/spendlens/internal/service"
	"github.com/dvloznov/spendlens/internal/store"
	bqstore "github.com/dvloznov/spendlens/internal/store/bigquery"
	memstore "github.com/dvloznov/spendlens/internal/store/inmemory"
	"github.com/dvloznov/spendlens/internal/store/sqlite"
)

func main() {
	envFile := flag.String("env", "", "Path to .env file (optional)")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Local store: SQLite when a path is configured, in-memory otherwise.
	local, cleanup, err := openLocalStore(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	// Categorization pipeline
	classifier := newClassifier(cfg, log)
	pipeline := categorize.NewPipeline(classifier, log)
	svc := service.New(local, pipeline, log)

	// Statement archive and extraction service
	var archiveSvc archive.Service
	if cfg.GCS.Bucket != "" {
		archiveSvc = archive.NewGCSArchive(cfg.GCS.Bucket)
	} else {
		log.Warn().Msg("No GCS bucket configured - statement uploads will be disabled")
	}
	extractor := extract.NewClient(cfg.Extractor.BaseURL, log)

	// Job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 2, jobStore)

	ingestor := jobs.NewIngestor(archiveSvc, extractor, svc, log)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, ingestor.Handle); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	// Remote store factory for login
	var remotes handlers.RemoteStoreFactory
	if cfg.RemoteEnabled() {
		client, err := bq.NewClient(ctx, cfg.BigQuery.ProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer client.Close()

		remotes = func(ctx context.Context, userID string) (store.Store, error) {
			return bqstore.NewStore(client, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID, userID)
		}
	}

	handler := api.NewRouter(api.Handlers{
		Transactions: handlers.NewTransactionsHandler(svc, log),
		Categories:   handlers.NewCategoriesHandler(svc, log),
		AccountTypes: handlers.NewAccountTypesHandler(svc, log),
		Vendors:      handlers.NewVendorsHandler(svc, log),
		Engine:       handlers.NewEngineHandler(svc, log),
		Session:      handlers.NewSessionHandler(svc, remotes, log),
		Statements:   handlers.NewStatementsHandler(archiveSvc, jobQueue, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}, log)

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.HTTP.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}

// openLocalStore picks the local persistence backend from configuration.
func openLocalStore(cfg *config.Config, log zerolog.Logger) (store.Store, func(), error) {
	if cfg.Store.SQLitePath == "" {
		log.Info().Msg("Using in-memory local store")
		return memstore.NewStore(), func() {}, nil
	}

	db, err := sqlite.Open(cfg.Store.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Str("path", cfg.Store.SQLitePath).Msg("Using SQLite local store")
	return db, func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close SQLite store")
		}
	}, nil
}

// newClassifier picks the AI backend from configuration.
func newClassifier(cfg *config.Config, log zerolog.Logger) categorize.Classifier {
	switch cfg.Classifier.Provider {
	case config.ProviderClaude:
		log.Info().Msg("Using Claude classifier")
		return classify.NewClaude(cfg.Classifier.AnthropicAPIKey, cfg.Classifier.ClaudeModel, log)
	case config.ProviderNone:
		log.Info().Msg("AI categorization disabled")
		return classify.Null{}
	default:
		log.Info().Msg("Using Gemini classifier")
		return classify.NewGemini(cfg.Classifier.GeminiModel, log)
	}
}
