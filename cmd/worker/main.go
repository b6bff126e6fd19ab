// The worker runs the statement ingestion pipeline standalone: it consumes
// ingestion jobs from the in-memory queue without serving the HTTP API.
// In production the queue would be replaced with Cloud Tasks or Pub/Sub.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/spendlens/internal/archive"
	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/classify"
	"github.com/dvloznov/spendlens/internal/config"
	"github.com/dvloznov/spendlens/internal/extract"
	"github.com/dvloznov/spendlens/internal/jobs"
	"github.com/dvloznov/spendlens/internal/jobs/inmemory"
	"github.com/dvloznov/spendlens/internal/logger"
	"github.com/dvloznov/spendlens/internal/service"
	memstore "github.com/dvloznov/spendlens/internal/store/inmemory"
	"github.com/dvloznov/spendlens/internal/store/sqlite"
)

func main() {
	envFile := flag.String("env", "", "Path to .env file (optional)")
	workers := flag.Int("workers", 2, "Number of concurrent job workers")
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	if cfg.GCS.Bucket == "" {
		log.Fatal().Msg("GCS_BUCKET is required to fetch statement documents")
	}

	// The worker needs the same engine the API uses so inserted transactions
	// land in the shared SQLite database.
	var svc *service.Service
	var classifier categorize.Classifier
	switch cfg.Classifier.Provider {
	case config.ProviderClaude:
		classifier = classify.NewClaude(cfg.Classifier.AnthropicAPIKey, cfg.Classifier.ClaudeModel, log)
	case config.ProviderNone:
		classifier = classify.Null{}
	default:
		classifier = classify.NewGemini(cfg.Classifier.GeminiModel, log)
	}
	pipeline := categorize.NewPipeline(classifier, log)

	if cfg.Store.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite store")
		}
		defer db.Close()
		svc = service.New(db, pipeline, log)
	} else {
		log.Warn().Msg("No SQLite path configured - ingested transactions will not be persisted")
		svc = service.New(memstore.NewStore(), pipeline, log)
	}

	archiveSvc := archive.NewGCSArchive(cfg.GCS.Bucket)
	extractor := extract.NewClient(cfg.Extractor.BaseURL, log)
	ingestor := jobs.NewIngestor(archiveSvc, extractor, svc, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, *workers, jobStore)

	log.Info().Int("workers", *workers).Msg("Starting worker service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := jobQueue.Start(ctx, ingestor.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
