// Command export-notion mirrors the detected recurring charges into a Notion
// database.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/dvloznov/pennyledger/internal/config"
	infraBQ "github.com/dvloznov/pennyledger/internal/infra/bigquery"
	"github.com/dvloznov/pennyledger/internal/logger"
	"github.com/dvloznov/pennyledger/internal/notionexport"
)

func main() {
	var (
		activeOnly = flag.Bool("active-only", true, "export only active recurring charges")
		timeout    = flag.Duration("timeout", 5*time.Minute, "overall timeout")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
		log.Fatal().Msg("NOTION_TOKEN and NOTION_DATABASE_ID are required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create store")
	}
	defer store.Close()

	charges, err := store.ListRecurringTransactions(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list recurring charges")
	}
	if *activeOnly {
		filtered := charges[:0]
		for _, c := range charges {
			if c.IsActive {
				filtered = append(filtered, c)
			}
		}
		charges = filtered
	}

	client := notionexport.NewClient(cfg.NotionToken)
	result, err := notionexport.Export(ctx, client, cfg.NotionDatabaseID, charges, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Msg("Export finished")
}
