package notionexport

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/domain"
)

// BatchSize defines the number of transactions to process in a single batch
const BatchSize = 100

// Result counts what one export pass did per database.
type Result struct {
	Deleted int `json:"deleted"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Source is the read surface the exporter pulls from.
type Source interface {
	Transactions(ctx context.Context) ([]domain.Transaction, error)
	Categories(ctx context.Context) ([]domain.Category, error)
}

// ExportCategories mirrors the category list into the Notion categories
// database: stale pages are archived, missing categories are created,
// existing ones are left alone. Returns a category-name to page-ID map for
// building transaction relations.
func ExportCategories(ctx context.Context, src Source, notionClient NotionService, notionDBID string, dryRun bool, log zerolog.Logger) (map[string]string, *Result, error) {
	log.Info().
		Bool("dry_run", dryRun).
		Msg("Starting categories export to Notion")

	categories, err := src.Categories(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ExportCategories: list categories: %w", err)
	}

	validNames := make(map[string]bool, len(categories))
	for _, cat := range categories {
		validNames[cat.Name] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, nil, fmt.Errorf("ExportCategories: query Notion pages: %w", err)
	}

	log.Info().
		Int("category_count", len(categories)).
		Int("notion_page_count", len(notionPages)).
		Msg("Retrieved categories and existing Notion pages")

	result := &Result{}
	categoryPageIDs := make(map[string]string)

	// Archive stale pages; remember page IDs for categories already present.
	for _, page := range notionPages {
		name := extractCategoryName(page)
		if name != "" && validNames[name] {
			categoryPageIDs[name] = string(page.ID)
			continue
		}

		if dryRun {
			log.Info().
				Str("category", name).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would delete stale Notion page")
			result.Deleted++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("category", name).
				Str("page_id", string(page.ID)).
				Msg("Failed to delete stale Notion page")
			continue
		}
		result.Deleted++
	}

	for _, cat := range categories {
		if _, ok := categoryPageIDs[cat.Name]; ok {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().
				Str("category", cat.Name).
				Msg("[DRY RUN] Would create Notion page for category")
			result.Created++
			continue
		}

		props := CategoryToNotionProperties(&cat)
		page, err := notionClient.CreatePage(ctx, notionDBID, props)
		if err != nil {
			log.Warn().
				Err(err).
				Str("category", cat.Name).
				Msg("Failed to create Notion page for category")
			continue
		}

		categoryPageIDs[cat.Name] = string(page.ID)
		result.Created++
	}

	log.Info().
		Int("deleted", result.Deleted).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("total", len(categories)).
		Msg("Categories export completed")

	return categoryPageIDs, result, nil
}

// ExportTransactions mirrors the transaction list into the Notion
// transactions database. The Transaction ID property on each page tracks
// which dataset row it came from, so repeated runs are idempotent: pages
// whose transaction no longer exists are archived, transactions without a
// page are created, everything else is skipped.
// categoryPageIDs maps category name to Notion page ID for relations.
func ExportTransactions(ctx context.Context, src Source, notionClient NotionService, notionDBID string, categoryPageIDs map[string]string, dryRun bool, log zerolog.Logger) (*Result, error) {
	log.Info().
		Bool("dry_run", dryRun).
		Int("category_mappings", len(categoryPageIDs)).
		Msg("Starting transaction export to Notion")

	transactions, err := src.Transactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ExportTransactions: list transactions: %w", err)
	}

	validIDs := make(map[string]bool, len(transactions))
	for _, tx := range transactions {
		validIDs[tx.ID] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return nil, fmt.Errorf("ExportTransactions: query Notion pages: %w", err)
	}

	log.Info().
		Int("transaction_count", len(transactions)).
		Int("notion_page_count", len(notionPages)).
		Msg("Retrieved transactions and existing Notion pages")

	result := &Result{}

	// Archive pages without a Transaction ID or whose transaction is gone.
	existingIDs := make(map[string]bool)
	for _, page := range notionPages {
		txID := extractTransactionID(page)
		if txID != "" && validIDs[txID] {
			existingIDs[txID] = true
			continue
		}

		if dryRun {
			log.Info().
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would delete stale Notion page")
			result.Deleted++
			continue
		}
		if err := notionClient.DeletePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("transaction_id", txID).
				Str("page_id", string(page.ID)).
				Msg("Failed to delete stale Notion page")
			continue
		}
		result.Deleted++
	}

	// Create missing pages in batches.
	for i := 0; i < len(transactions); i += BatchSize {
		end := i + BatchSize
		if end > len(transactions) {
			end = len(transactions)
		}

		batch := transactions[i:end]
		log.Debug().
			Int("batch_start", i).
			Int("batch_size", len(batch)).
			Msg("Processing batch")

		for _, tx := range batch {
			if existingIDs[tx.ID] {
				result.Skipped++
				continue
			}

			if dryRun {
				log.Info().
					Str("transaction_id", tx.ID).
					Msg("[DRY RUN] Would create new Notion page")
				result.Created++
				continue
			}

			props := TransactionToNotionProperties(&tx, categoryPageIDs)
			if _, err := notionClient.CreatePage(ctx, notionDBID, props); err != nil {
				log.Warn().
					Err(err).
					Str("transaction_id", tx.ID).
					Msg("Failed to create Notion page")
				continue
			}
			result.Created++
		}
	}

	log.Info().
		Int("deleted", result.Deleted).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Int("total", len(transactions)).
		Msg("Transaction export completed")

	return result, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: 100,
		}

		// Only set StartCursor if we have a cursor value
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
