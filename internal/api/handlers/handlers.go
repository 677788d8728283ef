// Package handlers implements the HTTP API: CSV preview/import, transaction
// listing and correction, provider sync, recurring charges, categories, and
// background job status.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/pennyledger/internal/api/middleware"
	"github.com/dvloznov/pennyledger/internal/csvimport"
	"github.com/dvloznov/pennyledger/internal/domain"
	"github.com/dvloznov/pennyledger/internal/ingest"
	"github.com/dvloznov/pennyledger/internal/jobs"
	"github.com/dvloznov/pennyledger/internal/suggest"
)

// transactionJSON is the wire shape of a stored transaction.
type transactionJSON struct {
	ID                  string                 `json:"id"`
	AccountID           string                 `json:"accountId"`
	Date                civil.Date             `json:"date"`
	Description         string                 `json:"description"`
	Amount              float64                `json:"amount"`
	ExtendedDetails     string                 `json:"extendedDetails,omitempty"`
	MerchantDisplayName string                 `json:"merchantDisplayName"`
	CategoryID          string                 `json:"categoryId,omitempty"`
	Type                domain.TransactionType `json:"transactionType"`
	NeedsReview         bool                   `json:"needsReview"`
	IsRecurring         bool                   `json:"isRecurring"`
	Pending             bool                   `json:"pending"`
	CSVImportID         string                 `json:"csvImportId,omitempty"`
}

func toTransactionJSON(tx domain.Transaction) transactionJSON {
	return transactionJSON{
		ID:                  tx.ID,
		AccountID:           tx.AccountID,
		Date:                tx.Date,
		Description:         tx.Description,
		Amount:              tx.Amount,
		ExtendedDetails:     tx.ExtendedDetails,
		MerchantDisplayName: tx.MerchantDisplayName,
		CategoryID:          tx.CategoryID,
		Type:                tx.Type,
		NeedsReview:         tx.NeedsReview,
		IsRecurring:         tx.IsRecurring,
		Pending:             tx.Pending,
		CSVImportID:         tx.CSVImportID,
	}
}

// ImportsHandler handles CSV preview and import uploads.
type ImportsHandler struct {
	svc       *ingest.Service
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewImportsHandler(svc *ingest.Service, publisher jobs.Publisher, log zerolog.Logger) *ImportsHandler {
	return &ImportsHandler{svc: svc, publisher: publisher, log: log}
}

// readUpload pulls the CSV bytes and form fields out of a multipart upload.
func readUpload(r *http.Request) (accountID, fileName string, data []byte, err error) {
	if err := r.ParseMultipartForm(32 << 10); err != nil {
		return "", "", nil, err
	}
	accountID = r.FormValue("accountId")

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		return "", "", nil, err
	}
	return accountID, header.Filename, data, nil
}

// writeCSVError maps the importer's typed errors onto HTTP statuses.
func writeCSVError(w http.ResponseWriter, err error) {
	var (
		unrecognized *csvimport.UnrecognizedFormatError
		empty        *csvimport.EmptyFileError
		tooLarge     *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
	case errors.As(err, &unrecognized):
		middleware.WriteError(w, http.StatusBadRequest, unrecognized.Error())
	case errors.As(err, &empty):
		middleware.WriteError(w, http.StatusBadRequest, empty.Error())
	default:
		middleware.WriteError(w, http.StatusInternalServerError, "Import failed")
	}
}

// PreviewCSV handles POST /api/imports/preview.
func (h *ImportsHandler) PreviewCSV(w http.ResponseWriter, r *http.Request) {
	accountID, _, data, err := readUpload(r)
	if err != nil {
		h.log.Warn().Err(err).Msg("reading CSV upload failed")
		writeCSVError(w, err)
		return
	}
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	preview, err := h.svc.PreviewCSV(r.Context(), accountID, data)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("CSV preview failed")
		writeCSVError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, preview)
}

// ImportCSV handles POST /api/imports.
func (h *ImportsHandler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	accountID, fileName, data, err := readUpload(r)
	if err != nil {
		h.log.Warn().Err(err).Msg("reading CSV upload failed")
		writeCSVError(w, err)
		return
	}
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}
	skipDuplicates := r.FormValue("skipDuplicates") != "false"

	result, err := h.svc.ImportCSV(r.Context(), accountID, fileName, data, skipDuplicates)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("CSV import failed")
		writeCSVError(w, err)
		return
	}
	if result.Imported > 0 && h.publisher != nil {
		job := &jobs.IngestJob{Type: jobs.JobTypeRecurringScan, AccountID: accountID}
		if err := h.publisher.Publish(r.Context(), job); err != nil {
			h.log.Warn().Err(err).Str("account_id", accountID).Msg("scheduling recurring scan after import failed")
		}
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// TransactionsHandler serves stored transactions and user corrections.
type TransactionsHandler struct {
	store ingest.Store
	svc   *ingest.Service
	log   zerolog.Logger
}

func NewTransactionsHandler(store ingest.Store, svc *ingest.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, svc: svc, log: log}
}

// ListTransactions handles GET /api/transactions?accountId=...
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	txs, err := h.store.ListTransactions(r.Context(), accountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", accountID).Msg("listing transactions failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	out := make([]transactionJSON, 0, len(txs))
	needsReview := r.URL.Query().Get("needsReview") == "true"
	for _, tx := range txs {
		if needsReview && !tx.NeedsReview {
			continue
		}
		out = append(out, toTransactionJSON(tx))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": out,
		"count":        len(out),
	})
}

// EditTransaction handles PATCH /api/transactions/{id}.
func (h *TransactionsHandler) EditTransaction(w http.ResponseWriter, r *http.Request, txID string) {
	var req struct {
		MerchantDisplayName *string `json:"merchantDisplayName"`
		CategoryID          *string `json:"categoryId"`
		TransactionType     *string `json:"transactionType"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	edit := ingest.UserEdit{
		MerchantDisplayName: req.MerchantDisplayName,
		CategoryID:          req.CategoryID,
	}
	if req.TransactionType != nil {
		typ := domain.TransactionType(*req.TransactionType)
		switch typ {
		case domain.TypeExpense, domain.TypeIncome, domain.TypeReturn, domain.TypeTransfer, domain.TypeInvestment:
			edit.Type = &typ
		default:
			middleware.WriteError(w, http.StatusBadRequest, "Invalid transaction type")
			return
		}
	}

	if err := h.svc.ApplyUserEdit(r.Context(), txID, edit); err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("applying edit failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to apply edit")
		return
	}

	tx, err := h.store.GetTransaction(r.Context(), txID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toTransactionJSON(tx))
}

// CategoriesHandler serves the category taxonomy.
type CategoriesHandler struct {
	store ingest.Store
	log   zerolog.Logger
}

func NewCategoriesHandler(store ingest.Store, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{store: store, log: log}
}

// ListCategories handles GET /api/categories.
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("listing categories failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	type categoryJSON struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]categoryJSON, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryJSON{ID: c.ID, Name: c.Name})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": out})
}

// RecurringHandler serves recurring charges and triggers scans.
type RecurringHandler struct {
	store     ingest.Store
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewRecurringHandler(store ingest.Store, publisher jobs.Publisher, log zerolog.Logger) *RecurringHandler {
	return &RecurringHandler{store: store, publisher: publisher, log: log}
}

// ListRecurring handles GET /api/recurring.
func (h *RecurringHandler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	charges, err := h.store.ListRecurringTransactions(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("listing recurring charges failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list recurring charges")
		return
	}

	type recurringJSON struct {
		MerchantDisplayName string     `json:"merchantDisplayName"`
		AverageAmount       float64    `json:"averageAmount"`
		Frequency           string     `json:"frequency"`
		LastSeenDate        civil.Date `json:"lastSeenDate"`
		IsActive            bool       `json:"isActive"`
	}
	out := make([]recurringJSON, 0, len(charges))
	for _, c := range charges {
		out = append(out, recurringJSON{
			MerchantDisplayName: c.MerchantDisplayName,
			AverageAmount:       c.AverageAmount,
			Frequency:           string(c.Frequency),
			LastSeenDate:        c.LastSeenDate,
			IsActive:            c.IsActive,
		})
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"recurring": out})
}

// EnqueueScan handles POST /api/recurring/scan.
func (h *RecurringHandler) EnqueueScan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID string `json:"accountId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	job := &jobs.IngestJob{Type: jobs.JobTypeRecurringScan, AccountID: req.AccountID}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("enqueueing recurring scan failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue scan")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"jobId": job.JobID})
}

// SyncHandler triggers provider syncs.
type SyncHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

func NewSyncHandler(publisher jobs.Publisher, log zerolog.Logger) *SyncHandler {
	return &SyncHandler{publisher: publisher, log: log}
}

// EnqueueSync handles POST /api/sync.
func (h *SyncHandler) EnqueueSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID   string `json:"accountId"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.AccessToken == "" {
		middleware.WriteError(w, http.StatusBadRequest, "accountId and accessToken are required")
		return
	}

	job := &jobs.IngestJob{
		Type:        jobs.JobTypeSyncAccount,
		AccountID:   req.AccountID,
		AccessToken: req.AccessToken,
	}
	if err := h.publisher.Publish(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("enqueueing sync failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue sync")
		return
	}
	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{"jobId": job.JobID})
}

// JobsHandler reports background job status.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobs.JobFilter{
		AccountID: r.URL.Query().Get("accountId"),
		Status:    jobs.JobStatus(r.URL.Query().Get("status")),
		Limit:     50,
	}
	list, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("listing jobs failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

// SuggestionsHandler serves model-generated category suggestions for the
// review queue.
type SuggestionsHandler struct {
	store     ingest.Store
	suggester *suggest.Suggester
	log       zerolog.Logger
}

func NewSuggestionsHandler(store ingest.Store, suggester *suggest.Suggester, log zerolog.Logger) *SuggestionsHandler {
	return &SuggestionsHandler{store: store, suggester: suggester, log: log}
}

// SuggestCategories handles POST /api/suggestions.
func (h *SuggestionsHandler) SuggestCategories(w http.ResponseWriter, r *http.Request) {
	if h.suggester == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Suggestions are not configured")
		return
	}

	var req struct {
		AccountID string `json:"accountId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "accountId is required")
		return
	}

	txs, err := h.store.ListTransactions(r.Context(), req.AccountID)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("listing transactions failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	var review []domain.Transaction
	for _, tx := range txs {
		if tx.NeedsReview {
			review = append(review, tx)
		}
	}
	if len(review) == 0 {
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": []suggest.Suggestion{}})
		return
	}

	cats, err := h.store.ListCategories(r.Context())
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
		return
	}

	suggestions, err := h.suggester.SuggestCategories(r.Context(), review, cats)
	if err != nil {
		h.log.Error().Err(err).Str("account_id", req.AccountID).Msg("category suggestion failed")
		middleware.WriteError(w, http.StatusBadGateway, "Suggestion request failed")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// PathSuffix extracts the trailing path element after prefix, e.g. the ID in
// /api/transactions/{id}.
func PathSuffix(r *http.Request, prefix string) string {
	return strings.TrimPrefix(r.URL.Path, prefix)
}
