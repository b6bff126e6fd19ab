package jobs

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/extract"
	"github.com/dvloznov/spendlens/internal/service"
)

// Fetcher retrieves archived document bytes. archive.GCSArchive satisfies
// it.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// Parser extracts transaction candidates from a document.
// extract.Client satisfies it.
type Parser interface {
	ParseDocument(ctx context.Context, filename string, pdf []byte) (*extract.Statement, error)
}

// Engine is the slice of the application service ingestion needs.
type Engine interface {
	AddTransactions(ctx context.Context, txns []domain.Transaction) (*service.AddResult, error)
	AutoCategorize(ctx context.Context) (*service.CategorizeResult, error)
}

// Ingestor handles IngestStatementJob: fetch, extract, convert, dedupe,
// insert, optionally categorize.
type Ingestor struct {
	fetcher Fetcher
	parser  Parser
	engine  Engine
	log     zerolog.Logger
}

func NewIngestor(fetcher Fetcher, parser Parser, engine Engine, log zerolog.Logger) *Ingestor {
	return &Ingestor{fetcher: fetcher, parser: parser, engine: engine, log: log}
}

// Handle implements JobHandler for statement ingestion. It fills job.Result
// on success.
func (in *Ingestor) Handle(ctx context.Context, job Job) error {
	stmt, ok := job.(*IngestStatementJob)
	if !ok {
		return fmt.Errorf("Handle: unexpected job type %s", job.GetType())
	}

	data, err := in.fetcher.Fetch(ctx, stmt.DocumentURI)
	if err != nil {
		return fmt.Errorf("Handle: fetch document: %w", err)
	}

	parsed, err := in.parser.ParseDocument(ctx, stmt.Filename, data)
	if err != nil {
		return fmt.Errorf("Handle: extract document: %w", err)
	}

	txns := extract.Transactions(parsed, in.log)
	added, err := in.engine.AddTransactions(ctx, txns)
	if err != nil {
		return fmt.Errorf("Handle: insert transactions: %w", err)
	}

	result := &IngestResult{
		Bank:           parsed.BankName,
		StatementMonth: parsed.StatementMonth,
		Extracted:      len(txns),
		Added:          len(added.Added),
		Duplicates:     len(added.Duplicates),
	}
	stmt.Result = result

	if stmt.AutoCategorize && len(added.Added) > 0 {
		cat, err := in.engine.AutoCategorize(ctx)
		if cat != nil {
			result.Categorized = cat.Assigned
			result.LearnedVendors = cat.LearnedVendors
		}
		if err != nil {
			// The batch is already persisted; a classifier failure leaves
			// the residue Unassigned and fails the job for retry.
			return fmt.Errorf("Handle: categorize: %w", err)
		}
	}

	in.log.Info().
		Str("job_id", stmt.JobID).
		Str("bank", result.Bank).
		Int("added", result.Added).
		Int("duplicates", result.Duplicates).
		Msg("Statement ingested")
	return nil
}
