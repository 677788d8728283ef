package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/pennyledger/internal/api/handlers"
	"github.com/dvloznov/pennyledger/internal/api/middleware"
	"github.com/dvloznov/pennyledger/internal/classify"
	"github.com/dvloznov/pennyledger/internal/config"
	"github.com/dvloznov/pennyledger/internal/gcsarchive"
	infraBQ "github.com/dvloznov/pennyledger/internal/infra/bigquery"
	"github.com/dvloznov/pennyledger/internal/ingest"
	"github.com/dvloznov/pennyledger/internal/jobs"
	"github.com/dvloznov/pennyledger/internal/jobs/inmemory"
	"github.com/dvloznov/pennyledger/internal/logger"
	"github.com/dvloznov/pennyledger/internal/plaidsync"
	"github.com/dvloznov/pennyledger/internal/suggest"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	store, err := infraBQ.NewStore(ctx, cfg.ProjectID, cfg.DatasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create store")
	}
	defer store.Close()

	var archiver ingest.Archiver
	if cfg.GCSBucket != "" {
		gcsArchiver, err := gcsarchive.New(ctx, cfg.GCSBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create GCS archiver")
		}
		defer gcsArchiver.Close()
		archiver = gcsArchiver
	} else {
		log.Warn().Msg("No GCS bucket configured - uploaded CSVs will not be archived")
	}

	var provider ingest.Provider
	if cfg.PlaidClientID != "" {
		provider = plaidsync.New()
	} else {
		log.Warn().Msg("No Plaid credentials configured - provider sync is disabled")
	}

	svc := ingest.NewService(store, provider, archiver, classify.DefaultRuleset(), log)

	var suggester *suggest.Suggester
	if cfg.GeminiModel != "" {
		suggester, err = suggest.New(ctx, cfg.GeminiModel)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create suggester")
		}
	}

	// Background work: provider syncs and recurring scans run off the
	// request path through the in-memory queue.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job *jobs.IngestJob) error {
		jobLog := log.With().
			Str("job_id", job.JobID).
			Str("type", string(job.Type)).
			Str("account_id", job.AccountID).
			Logger()
		ctx = logger.WithContext(ctx, jobLog)

		switch job.Type {
		case jobs.JobTypeSyncAccount:
			result, err := svc.SyncAccount(ctx, job.AccountID, job.AccessToken)
			if err != nil {
				return err
			}
			// Freshly synced history may change the recurring set.
			if result.Added > 0 || result.Modified > 0 || result.Removed > 0 {
				return jobQueue.Publish(ctx, &jobs.IngestJob{
					Type:      jobs.JobTypeRecurringScan,
					AccountID: job.AccountID,
				})
			}
			return nil
		case jobs.JobTypeRecurringScan:
			_, err := svc.ScanRecurring(ctx, job.AccountID)
			return err
		default:
			return fmt.Errorf("unexpected job type: %s", job.Type)
		}
	}

	go func() {
		log.Info().Msg("Starting job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	importsHandler := handlers.NewImportsHandler(svc, jobQueue, log)
	transactionsHandler := handlers.NewTransactionsHandler(store, svc, log)
	categoriesHandler := handlers.NewCategoriesHandler(store, log)
	recurringHandler := handlers.NewRecurringHandler(store, jobQueue, log)
	syncHandler := handlers.NewSyncHandler(jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)
	suggestionsHandler := handlers.NewSuggestionsHandler(store, suggester, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/imports/preview", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.PreviewCSV(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/imports", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			importsHandler.ImportCSV(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.ListTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			txID := handlers.PathSuffix(r, "/api/transactions/")
			if txID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
				return
			}
			transactionsHandler.EditTransaction(w, r, txID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			categoriesHandler.ListCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			recurringHandler.ListRecurring(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring/scan", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			recurringHandler.EnqueueScan(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			syncHandler.EnqueueSync(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/suggestions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			suggestionsHandler.SuggestCategories(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := handlers.PathSuffix(r, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(
					middleware.MaxBody(cfg.MaxCSVBytes)(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
