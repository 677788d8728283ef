// Package config loads runtime configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultMaxCSVBytes caps uploaded statement size at 5 MiB.
const DefaultMaxCSVBytes = 5 << 20

type Config struct {
	// HTTP
	Port string

	// BigQuery
	ProjectID string
	DatasetID string

	// GCS archive for uploaded CSV originals. Empty disables archiving.
	GCSBucket string

	// Plaid
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	// Notion export
	NotionToken      string
	NotionDatabaseID string

	// Gemini category suggestions. Empty model disables the suggester.
	GeminiModel string

	MaxCSVBytes int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getenv("PORT", "8080"),
		ProjectID:        os.Getenv("GCP_PROJECT_ID"),
		DatasetID:        getenv("BQ_DATASET", "pennyledger"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		PlaidClientID:    os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:      os.Getenv("PLAID_SECRET"),
		PlaidEnv:         getenv("PLAID_ENV", "sandbox"),
		NotionToken:      os.Getenv("NOTION_TOKEN"),
		NotionDatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		MaxCSVBytes:      DefaultMaxCSVBytes,
	}

	if v := os.Getenv("MAX_CSV_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("Load: invalid MAX_CSV_BYTES %q", v)
		}
		cfg.MaxCSVBytes = n
	}

	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("Load: GCP_PROJECT_ID is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
