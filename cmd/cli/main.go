package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/spendlens/internal/categorize"
	"github.com/dvloznov/spendlens/internal/classify"
	"github.com/dvloznov/spendlens/internal/config"
	"github.com/dvloznov/spendlens/internal/extract"
	"github.com/dvloznov/spendlens/internal/logger"
	"github.com/dvloznov/spendlens/internal/service"
	"github.com/dvloznov/spendlens/internal/store"
	bqstore "github.com/dvloznov/spendlens/internal/store/bigquery"
	memstore "github.com/dvloznov/spendlens/internal/store/inmemory"
	"github.com/dvloznov/spendlens/internal/store/sqlite"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(log)
	case "duplicates":
		runDuplicates(log)
	case "recurring":
		runRecurring(log)
	case "categorize":
		runCategorize(log)
	case "vendors":
		runVendors(log)
	case "login":
		runLogin(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("SpendLens CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest      Extract a local bank statement PDF and add its transactions")
	fmt.Println("  duplicates  Scan the dataset for likely duplicate transactions")
	fmt.Println("  recurring   Scan the dataset for recurring charges")
	fmt.Println("  categorize  Auto-categorize unassigned transactions")
	fmt.Println("  vendors     Import vendor-to-category mappings from a YAML file")
	fmt.Println("  login       Merge the local dataset into the remote BigQuery store")
	fmt.Println("  help        Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// buildService assembles the engine over the configured local store, the
// same way the API server does.
func buildService(cfg *config.Config, log zerolog.Logger) (*service.Service, func(), error) {
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

	if cfg.Store.SQLitePath == "" {
		return service.New(memstore.NewStore(), pipeline, log), func() {}, nil
	}

	db, err := sqlite.Open(cfg.Store.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return service.New(db, pipeline, log), func() { db.Close() }, nil
}

func loadConfig(fs *flag.FlagSet, log zerolog.Logger) *config.Config {
	envFile := fs.Lookup("env")
	path := ""
	if envFile != nil {
		path = envFile.Value.String()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg
}

func runIngest(log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to the statement PDF")
	autoCategorize := fs.Bool("categorize", false, "Auto-categorize after ingesting")
	fs.String("env", "", "Path to .env file (optional)")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Error: --file is required")
	}

	cfg := loadConfig(fs, log)
	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	extractor := extract.NewClient(cfg.Extractor.BaseURL, log)
	stmt, err := extractor.ParseDocument(ctx, filepath.Base(*filePath), data)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	txns := extract.Transactions(stmt, log)
	result, err := svc.AddTransactions(ctx, txns)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to add transactions")
	}

	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s statement from %s (%s)\n", green("Ingested"), stmt.BankName, stmt.StatementMonth)
	fmt.Printf("  extracted: %d\n", len(stmt.Transactions))
	fmt.Printf("  added:     %d\n", len(result.Added))
	if len(result.Duplicates) > 0 {
		fmt.Printf("  %s:   %d\n", yellow("skipped"), len(result.Duplicates))
		for _, g := range result.Duplicates {
			for _, d := range g.Duplicates {
				fmt.Printf("    - %s %s (%s)\n", d.Date, d.Description, g.Reason)
			}
		}
	}

	if *autoCategorize {
		catResult, err := svc.AutoCategorize(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Auto-categorization degraded")
		}
		if catResult != nil {
			fmt.Printf("  categorized: %d (learned %d vendors)\n", catResult.Assigned, catResult.LearnedVendors)
		}
	}
}

func runDuplicates(log zerolog.Logger) {
	fs := flag.NewFlagSet("duplicates", flag.ExitOnError)
	fs.String("env", "", "Path to .env file (optional)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(fs, log)
	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	ctx := context.Background()
	groups, err := svc.Duplicates(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Duplicate scan failed")
	}

	if len(groups) == 0 {
		fmt.Println("No duplicates found.")
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for i, g := range groups {
		fmt.Printf("\n%s %s  %s  %s\n", bold(fmt.Sprintf("%d.", i+1)), g.Original.Date, g.Original.Description, g.Original.Amount.StringFixed(2))
		for _, d := range g.Duplicates {
			fmt.Printf("   %s %s  %s  %s\n", red("dup"), d.Date, d.Description, d.Amount.StringFixed(2))
		}
		fmt.Printf("   reason: %s\n", g.Reason)
	}
	fmt.Printf("\n%d duplicate group(s)\n", len(groups))
}

func runRecurring(log zerolog.Logger) {
	fs := flag.NewFlagSet("recurring", flag.ExitOnError)
	fs.String("env", "", "Path to .env file (optional)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(fs, log)
	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	patterns, err := svc.Recurring(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Recurring scan failed")
	}

	if len(patterns) == 0 {
		fmt.Println("No recurring charges found.")
		return
	}

	cyan := color.New(color.FgCyan).SprintFunc()
	for _, p := range patterns {
		fmt.Printf("%s  %s  avg %s  x%d\n", cyan(p.Frequency), p.Description, p.AvgAmount.StringFixed(2), p.Count)
	}
}

func runCategorize(log zerolog.Logger) {
	fs := flag.NewFlagSet("categorize", flag.ExitOnError)
	fs.String("env", "", "Path to .env file (optional)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(fs, log)
	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := svc.AutoCategorize(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Auto-categorization degraded")
	}
	if result == nil {
		os.Exit(1)
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s %d transaction(s), learned %d vendor mapping(s)\n", green("Categorized"), result.Assigned, result.LearnedVendors)
	for _, r := range result.Results {
		fmt.Printf("  %-24s %.2f  (%s)\n", r.Category, r.Confidence, r.Source)
	}
}

// vendorsFile is the YAML import format: category names keyed by vendor.
type vendorsFile struct {
	Vendors map[string]string `yaml:"vendors"`
}

func runVendors(log zerolog.Logger) {
	fs := flag.NewFlagSet("vendors", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to a vendors YAML file to import")
	fs.String("env", "", "Path to .env file (optional)")
	fs.Parse(os.Args[2:])

	cfg := loadConfig(fs, log)
	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	ctx := context.Background()

	if *filePath == "" {
		vendors, err := svc.Vendors(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list vendors")
		}
		for vendor, category := range vendors {
			fmt.Printf("%-32s %s\n", vendor, category)
		}
		return
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read vendors file")
	}

	var file vendorsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse vendors file")
	}

	var imported int
	for vendor, category := range file.Vendors {
		if err := svc.PutVendor(ctx, vendor, category); err != nil {
			log.Warn().Err(err).Str("vendor", vendor).Msg("Failed to import vendor mapping")
			continue
		}
		imported++
	}

	fmt.Printf("Imported %d vendor mapping(s)\n", imported)
}

func runLogin(log zerolog.Logger) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	userID := fs.String("user", "", "User ID owning the remote dataset")
	fs.String("env", "", "Path to .env file (optional)")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg := loadConfig(fs, log)
	if !cfg.RemoteEnabled() {
		log.Fatal().Msg("BIGQUERY_PROJECT_ID is required for login")
	}

	svc, cleanup, err := buildService(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open local store")
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	client, err := bq.NewClient(ctx, cfg.BigQuery.ProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	var remote store.Store
	remote, err = bqstore.NewStore(client, cfg.BigQuery.ProjectID, cfg.BigQuery.DatasetID, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open remote store")
	}

	summary, err := svc.Login(ctx, remote)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s local dataset into remote store\n", green("Merged"))
	fmt.Printf("  categories:    %d\n", summary.CategoriesInserted)
	fmt.Printf("  account types: %d\n", summary.AccountTypesInserted)
	fmt.Printf("  vendors:       %d\n", summary.VendorsInserted)
	fmt.Printf("  transactions:  %d inserted, %d skipped as duplicates\n", summary.TransactionsInserted, summary.TransactionsSkipped)
}
