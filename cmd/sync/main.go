// Command sync pulls transaction changes from the aggregation provider for
// one account and runs a recurring scan over the result.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/dvloznov/pennyledger/internal/classify"
	"github.com/dvloznov/pennyledger/internal/config"
	infraBQ "github.com/dvloznov/pennyledger/internal/infra/bigquery"
	"github.com/dvloznov/pennyledger/internal/ingest"
	"github.com/dvloznov/pennyledger/internal/logger"
	"github.com/dvloznov/pennyledger/internal/plaidsync"
)

func main() {
	var (
		accountID   = flag.String("account", "", "account ID to sync")
		accessToken = flag.String("access-token", "", "provider access token for the account")
		scan        = flag.Bool("scan", true, "run a recurring scan after the sync")
		timeout     = flag.Duration("timeout", 10*time.Minute, "overall timeout")
	)
	flag.Parse()

	log := logger.New()
	if *accountID == "" || *accessToken == "" {
		log.Fatal().Msg("-account and -access-token are required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create store")
	}
	defer store.Close()

	svc := ingest.NewService(store, plaidsync.New(), nil, classify.DefaultRuleset(), log)

	result, err := svc.SyncAccount(ctx, *accountID, *accessToken)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
	log.Info().
		Int("added", result.Added).
		Int("modified", result.Modified).
		Int("removed", result.Removed).
		Bool("consent_required", result.ConsentRequired).
		Msg("Sync finished")

	if !*scan || result.ConsentRequired {
		return
	}
	scanResult, err := svc.ScanRecurring(ctx, *accountID)
	if err != nil {
		log.Fatal().Err(err).Msg("Recurring scan failed")
	}
	log.Info().
		Int("detected", scanResult.Detected).
		Int("deactivated", scanResult.Deactivated).
		Msg("Recurring scan finished")
}
