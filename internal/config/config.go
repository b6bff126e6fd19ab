// Package config loads application configuration from environment variables
// and optional .env files.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Classifier provider names accepted in SPENDLENS_CLASSIFIER.
const (
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
	ProviderNone   = "none"
)

// Config represents the application configuration.
type Config struct {
	HTTP       HTTPConfig
	Store      StoreConfig
	Extractor  ExtractorConfig
	GCS        GCSConfig
	BigQuery   BigQueryConfig
	Classifier ClassifierConfig
	Notion     NotionConfig
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Port string
}

// StoreConfig configures local persistence. An empty SQLitePath selects the
// in-memory store.
type StoreConfig struct {
	SQLitePath string
}

// ExtractorConfig points at the PDF extraction service.
type ExtractorConfig struct {
	BaseURL string
}

// GCSConfig configures the statement archive bucket.
type GCSConfig struct {
	Bucket string
}

// BigQueryConfig configures the remote per-user store.
type BigQueryConfig struct {
	ProjectID string
	DatasetID string
}

// ClassifierConfig selects and configures the AI categorization backend.
type ClassifierConfig struct {
	Provider        string
	GeminiModel     string
	ClaudeModel     string
	AnthropicAPIKey string
}

// NotionConfig configures the Notion export databases.
type NotionConfig struct {
	Token            string
	TransactionsDBID string
	CategoriesDBID   string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("Load: .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	cfg := &Config{
		HTTP: HTTPConfig{
			Port: getEnvOrDefault("SPENDLENS_PORT", "8080"),
		},
		Store: StoreConfig{
			SQLitePath: os.Getenv("SPENDLENS_SQLITE_PATH"),
		},
		Extractor: ExtractorConfig{
			BaseURL: getEnvOrDefault("SPENDLENS_EXTRACTOR_URL", "http://localhost:5000"),
		},
		GCS: GCSConfig{
			Bucket: os.Getenv("GCS_BUCKET"),
		},
		BigQuery: BigQueryConfig{
			ProjectID: os.Getenv("BIGQUERY_PROJECT_ID"),
			DatasetID: getEnvOrDefault("BIGQUERY_DATASET_ID", "spendlens"),
		},
		Classifier: ClassifierConfig{
			Provider:        getEnvOrDefault("SPENDLENS_CLASSIFIER", ProviderGemini),
			GeminiModel:     os.Getenv("GEMINI_MODEL"),
			ClaudeModel:     os.Getenv("CLAUDE_MODEL"),
			AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		},
		Notion: NotionConfig{
			Token:            os.Getenv("NOTION_TOKEN"),
			TransactionsDBID: os.Getenv("NOTION_TRANSACTIONS_DB_ID"),
			CategoriesDBID:   os.Getenv("NOTION_CATEGORIES_DB_ID"),
		},
	}

	return cfg, nil
}

// Validate checks the combinations the loaded values must satisfy. Required
// fields depend on which backends are enabled, so validation happens after
// Load rather than inside it.
func (c *Config) Validate() error {
	switch c.Classifier.Provider {
	case ProviderGemini, ProviderNone:
	case ProviderClaude:
		if c.Classifier.AnthropicAPIKey == "" {
			return fmt.Errorf("Validate: ANTHROPIC_API_KEY is required when SPENDLENS_CLASSIFIER=claude")
		}
	default:
		return fmt.Errorf("Validate: unknown classifier provider %q", c.Classifier.Provider)
	}

	if c.BigQuery.ProjectID != "" && c.BigQuery.DatasetID == "" {
		return fmt.Errorf("Validate: BIGQUERY_DATASET_ID is required when BIGQUERY_PROJECT_ID is set")
	}

	if c.Notion.Token != "" && (c.Notion.TransactionsDBID == "" || c.Notion.CategoriesDBID == "") {
		return fmt.Errorf("Validate: NOTION_TRANSACTIONS_DB_ID and NOTION_CATEGORIES_DB_ID are required when NOTION_TOKEN is set")
	}

	return nil
}

// RemoteEnabled reports whether a BigQuery remote store is configured.
func (c *Config) RemoteEnabled() bool {
	return c.BigQuery.ProjectID != ""
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
