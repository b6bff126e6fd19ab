package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.HTTP.Port)
	}
	if cfg.Classifier.Provider != ProviderGemini {
		t.Errorf("Provider = %q, want %q", cfg.Classifier.Provider, ProviderGemini)
	}
	if cfg.Extractor.BaseURL != "http://localhost:5000" {
		t.Errorf("Extractor.BaseURL = %q", cfg.Extractor.BaseURL)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("SPENDLENS_PORT", "9090")
	t.Setenv("SPENDLENS_SQLITE_PATH", "/tmp/spendlens.db")
	t.Setenv("BIGQUERY_PROJECT_ID", "my-project")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.HTTP.Port)
	}
	if cfg.Store.SQLitePath != "/tmp/spendlens.db" {
		t.Errorf("SQLitePath = %q", cfg.Store.SQLitePath)
	}
	if !cfg.RemoteEnabled() {
		t.Error("RemoteEnabled = false, want true")
	}
	if cfg.BigQuery.DatasetID != "spendlens" {
		t.Errorf("DatasetID = %q, want default spendlens", cfg.BigQuery.DatasetID)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "defaults pass",
			mutate: func(c *Config) {},
		},
		{
			name: "claude without key",
			mutate: func(c *Config) {
				c.Classifier.Provider = ProviderClaude
			},
			wantErr: true,
		},
		{
			name: "claude with key",
			mutate: func(c *Config) {
				c.Classifier.Provider = ProviderClaude
				c.Classifier.AnthropicAPIKey = "sk-test"
			},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Classifier.Provider = "oracle"
			},
			wantErr: true,
		},
		{
			name: "bigquery without dataset",
			mutate: func(c *Config) {
				c.BigQuery.ProjectID = "p"
				c.BigQuery.DatasetID = ""
			},
			wantErr: true,
		},
		{
			name: "notion token without databases",
			mutate: func(c *Config) {
				c.Notion.Token = "secret"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Classifier: ClassifierConfig{Provider: ProviderGemini},
				BigQuery:   BigQueryConfig{DatasetID: "spendlens"},
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
