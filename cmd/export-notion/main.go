// export-notion mirrors the local dataset into Notion: categories first so
// transaction pages can link to them, then transactions.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/classify"
	"github.com/dvloznov/spendlens/internal/config"
	"github.com/dvloznov/spendlens/internal/logger"
	"github.com/dvloznov/spendlens/internal/notionexport"
	"github.com/dvloznov/spendlens/internal/service"
	memstore "github.com/dvloznov/spendlens/internal/store/inmemory"
	"github.com/dvloznov/spendlens/internal/store/sqlite"
)

func main() {
	log := logger.New()

	envFile := flag.String("env", "", "Path to .env file (optional)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without exporting")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if cfg.Notion.Token == "" {
		log.Fatal().Msg("Error: NOTION_TOKEN is required")
	}

	// The exporter only reads, so the classifier is never called.
	pipeline := categorize.NewPipeline(classify.Null{}, log)

	var svc *service.Service
	if cfg.Store.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open SQLite store")
		}
		defer db.Close()
		svc = service.New(db, pipeline, log)
	} else {
		log.Warn().Msg("No SQLite path configured - exporting an empty in-memory dataset")
		svc = service.New(memstore.NewStore(), pipeline, log)
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	log.Info().
		Bool("dry_run", *dryRun).
		Msg("Starting Notion export")

	notionClient := notionexport.NewNotionClient(cfg.Notion.Token)

	categoryPageIDs, catResult, err := notionexport.ExportCategories(ctx, svc, notionClient, cfg.Notion.CategoriesDBID, *dryRun, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Category export failed")
	}

	txResult, err := notionexport.ExportTransactions(ctx, svc, notionClient, cfg.Notion.TransactionsDBID, categoryPageIDs, *dryRun, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Transaction export failed")
	}

	fmt.Println("Export completed successfully.")
	fmt.Printf("  categories:   %d created, %d deleted, %d skipped\n", catResult.Created, catResult.Deleted, catResult.Skipped)
	fmt.Printf("  transactions: %d created, %d deleted, %d skipped\n", txResult.Created, txResult.Deleted, txResult.Skipped)
}
