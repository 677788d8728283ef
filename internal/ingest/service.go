// Package ingest orchestrates transaction intake: CSV preview/import,
// provider sync, recurring detection, and user corrections. Each operation
// runs the same deterministic pipeline over its rows: normalize merchant,
// classify category and type, dedupe, persist.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/pennyledger/internal/classify"
	"github.com/dvloznov/pennyledger/internal/csvimport"
	"github.com/dvloznov/pennyledger/internal/dedup"
	"github.com/dvloznov/pennyledger/internal/domain"
	"github.com/dvloznov/pennyledger/internal/recurring"
)

// maxReportedRowErrors caps how many per-row failures an import response
// carries back to the caller; the rest are only counted.
const maxReportedRowErrors = 10

// Auto-assigned category names per transaction type.
const (
	incomeCategoryName     = "Income"
	investmentCategoryName = "Investments"
)

// Service wires the classification pipeline to a Store and, optionally, a
// Provider and an Archiver.
type Service struct {
	store    Store
	provider Provider
	archiver Archiver
	rules    *classify.Ruleset
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(store Store, provider Provider, archiver Archiver, rules *classify.Ruleset, log zerolog.Logger) *Service {
	if rules == nil {
		rules = classify.DefaultRuleset()
	}
	return &Service{store: store, provider: provider, archiver: archiver, rules: rules, log: log, now: time.Now}
}

// ParsedTransaction is one CSV row after classification, as shown to the user
// before they confirm an import.
type ParsedTransaction struct {
	Date                civil.Date             `json:"date"`
	Description         string                 `json:"description"`
	Amount              float64                `json:"amount"`
	ExtendedDetails     string                 `json:"extendedDetails,omitempty"`
	MerchantDisplayName string                 `json:"merchantDisplayName"`
	TransactionType     domain.TransactionType `json:"transactionType"`
	CategoryName        string                 `json:"categoryName,omitempty"`
	NeedsReview         bool                   `json:"needsReview"`
	Hash                string                 `json:"hash"`
	IsDuplicate         bool                   `json:"isDuplicate"`
}

// PreviewResult is the classified, deduped view of an uploaded CSV. Nothing
// is persisted by a preview.
type PreviewResult struct {
	Transactions   []ParsedTransaction `json:"transactions"`
	DuplicateCount int                 `json:"duplicateCount"`
	NewCount       int                 `json:"newCount"`
}

// ImportResult reports what an import actually persisted.
type ImportResult struct {
	ImportID string   `json:"importId,omitempty"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// SyncResult reports one provider sync run. Skipped counts records whose
// store write failed; those failures never abort the rest of the page.
type SyncResult struct {
	Added           int      `json:"added"`
	Modified        int      `json:"modified"`
	Removed         int      `json:"removed"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors,omitempty"`
	Cursor          string   `json:"cursor"`
	ConsentRequired bool     `json:"consentRequired,omitempty"`
}

// RecurringScanResult reports one recurring-detection pass.
type RecurringScanResult struct {
	Detected    int `json:"detected"`
	Deactivated int `json:"deactivated"`
}

// PreviewCSV parses and classifies an uploaded statement without writing
// anything. Duplicate flags are computed against the account's stored
// transactions and against earlier rows of the same file.
func (s *Service) PreviewCSV(ctx context.Context, accountID string, data []byte) (*PreviewResult, error) {
	rows, _, err := csvimport.ParseStatement(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	env, err := s.loadPipelineEnv(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("PreviewCSV: %w", err)
	}

	result := &PreviewResult{Transactions: make([]ParsedTransaction, 0, len(rows))}
	for _, row := range rows {
		tx := s.classifyRow(env, accountID, row)
		cand := candidateFor(row, tx)
		dup := env.detector.IsDuplicate(cand)
		if dup {
			result.DuplicateCount++
		} else {
			result.NewCount++
			env.detector.Accept(cand)
		}
		result.Transactions = append(result.Transactions, ParsedTransaction{
			Date:                tx.Date,
			Description:         tx.Description,
			Amount:              tx.Amount,
			ExtendedDetails:     tx.ExtendedDetails,
			MerchantDisplayName: tx.MerchantDisplayName,
			TransactionType:     tx.Type,
			CategoryName:        env.categoryName(tx.CategoryID),
			NeedsReview:         tx.NeedsReview,
			Hash:                dedup.ContentHash(tx.Date, tx.Description, tx.Amount),
			IsDuplicate:         dup,
		})
	}
	return result, nil
}

// ImportCSV persists the rows of an uploaded statement. Rows are processed in
// file order; with skipDuplicates set, rows already present are skipped and
// counted. Row-level parse or insert failures skip only that row. The import
// batch record is removed again when no rows survive.
func (s *Service) ImportCSV(ctx context.Context, accountID, fileName string, data []byte, skipDuplicates bool) (*ImportResult, error) {
	rows, rowErrs, err := csvimport.ParseStatement(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	env, err := s.loadPipelineEnv(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ImportCSV: %w", err)
	}

	archiveURI := ""
	if s.archiver != nil {
		archiveURI, err = s.archiver.Archive(ctx, accountID, fileName, data)
		if err != nil {
			// The import is still valid without the archived original.
			s.log.Warn().Err(err).Str("file", fileName).Msg("archiving uploaded CSV failed")
			archiveURI = ""
		}
	}

	importID := uuid.NewString()
	batch := domain.CSVImportBatch{
		ID:         importID,
		AccountID:  accountID,
		FileName:   fileName,
		ArchiveURI: archiveURI,
	}
	if err := s.store.CreateCSVImport(ctx, batch); err != nil {
		return nil, fmt.Errorf("ImportCSV: creating import batch: %w", err)
	}

	result := &ImportResult{ImportID: importID}
	var errCount int
	addErr := func(msg string) {
		errCount++
		if len(result.Errors) < maxReportedRowErrors {
			result.Errors = append(result.Errors, msg)
		}
	}
	for _, re := range rowErrs {
		addErr(re.Error())
	}

	for i, row := range rows {
		tx := s.classifyRow(env, accountID, row)
		cand := candidateFor(row, tx)
		if env.detector.IsDuplicate(cand) && skipDuplicates {
			result.Skipped++
			continue
		}
		tx.ID = uuid.NewString()
		tx.CSVImportID = importID
		if err := s.store.InsertTransaction(ctx, tx); err != nil {
			addErr(fmt.Sprintf("Row %d: storing transaction: %v", i+1, err))
			continue
		}
		env.detector.Accept(cand)
		result.Imported++
	}

	if result.Imported == 0 {
		if err := s.store.DeleteCSVImport(ctx, importID); err != nil {
			s.log.Warn().Err(err).Str("import_id", importID).Msg("removing empty import batch failed")
		}
		result.ImportID = ""
	} else if err := s.store.UpdateCSVImportCount(ctx, importID, result.Imported); err != nil {
		return nil, fmt.Errorf("ImportCSV: updating import count: %w", err)
	}

	s.log.Info().
		Str("account_id", accountID).
		Str("file", fileName).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", errCount).
		Msg("csv import finished")
	return result, nil
}

// SyncAccount pulls transaction changes from the aggregation provider and
// applies them. The cursor is persisted after every page, so a failure mid-run
// resumes where it left off. A consent-required response from the provider
// ends the run cleanly with ConsentRequired set.
func (s *Service) SyncAccount(ctx context.Context, accountID, accessToken string) (*SyncResult, error) {
	if s.provider == nil {
		return nil, errors.New("SyncAccount: no provider configured")
	}

	cursor, err := s.store.GetSyncCursor(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("SyncAccount: loading cursor: %w", err)
	}

	env, err := s.loadPipelineEnv(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("SyncAccount: %w", err)
	}
	byProviderID := make(map[string]domain.Transaction, len(env.stored))
	for _, tx := range env.stored {
		if tx.ProviderTransactionID != "" {
			byProviderID[tx.ProviderTransactionID] = tx
		}
	}

	result := &SyncResult{Cursor: cursor}
	addErr := func(msg string) {
		result.Skipped++
		if len(result.Errors) < maxReportedRowErrors {
			result.Errors = append(result.Errors, msg)
		}
	}
	for {
		page, err := s.provider.SyncTransactions(ctx, accessToken, cursor)
		if err != nil {
			if errors.Is(err, ErrAdditionalConsentRequired) {
				s.log.Info().Str("account_id", accountID).Msg("provider sync skipped: additional consent required")
				result.ConsentRequired = true
				return result, nil
			}
			return nil, fmt.Errorf("SyncAccount: provider sync: %w", err)
		}

		// Store failures below are isolated per record: log, count, and
		// carry on so one bad row never loses the rest of the page.
		for _, id := range page.RemovedIDs {
			if err := s.store.DeleteTransactionsByProviderID(ctx, id); err != nil {
				s.log.Warn().Err(err).Str("provider_transaction_id", id).Msg("removing synced transaction failed")
				addErr(fmt.Sprintf("removing transaction %s: %v", id, err))
				continue
			}
			delete(byProviderID, id)
			result.Removed++
		}

		for _, row := range page.Modified {
			existing, ok := byProviderID[row.ProviderTransactionID]
			if !ok {
				// Never seen it; treat as an add.
				page.Added = append(page.Added, row)
				continue
			}
			tx := s.classifyRow(env, accountID, row)
			if err := s.store.UpdateTransaction(ctx, existing.ID, patchFrom(tx)); err != nil {
				s.log.Warn().Err(err).Str("transaction_id", existing.ID).Msg("updating synced transaction failed")
				addErr(fmt.Sprintf("updating transaction %s: %v", existing.ID, err))
				continue
			}
			result.Modified++
		}

		for _, row := range page.Added {
			tx := s.classifyRow(env, accountID, row)
			cand := candidateFor(row, tx)
			if env.detector.IsDuplicate(cand) {
				continue
			}
			tx.ID = uuid.NewString()
			if err := s.store.InsertTransaction(ctx, tx); err != nil {
				s.log.Warn().Err(err).Str("provider_transaction_id", row.ProviderTransactionID).Msg("inserting synced transaction failed")
				addErr(fmt.Sprintf("inserting transaction %s: %v", row.ProviderTransactionID, err))
				continue
			}
			env.detector.Accept(cand)
			if tx.ProviderTransactionID != "" {
				byProviderID[tx.ProviderTransactionID] = tx
			}
			result.Added++
		}

		cursor = page.NextCursor
		if err := s.store.SetSyncCursor(ctx, accountID, cursor); err != nil {
			return nil, fmt.Errorf("SyncAccount: saving cursor: %w", err)
		}
		result.Cursor = cursor
		if !page.HasMore {
			break
		}
	}

	s.log.Info().
		Str("account_id", accountID).
		Int("added", result.Added).
		Int("modified", result.Modified).
		Int("removed", result.Removed).
		Int("skipped", result.Skipped).
		Msg("provider sync finished")
	return result, nil
}

// ScanRecurring recomputes the recurring-charge set for an account from its
// trailing twelve months of expenses, upserting detected merchants and
// deactivating ones that no longer qualify.
func (s *Service) ScanRecurring(ctx context.Context, accountID string) (*RecurringScanResult, error) {
	txs, err := s.store.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ScanRecurring: listing transactions: %w", err)
	}
	cutoff := civil.DateOf(s.now().AddDate(0, -12, 0))
	recent := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Date.Before(cutoff) {
			continue
		}
		recent = append(recent, tx)
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("ScanRecurring: listing categories: %w", err)
	}
	subscriptionID := ""
	for _, c := range cats {
		if c.Name == classify.SubscriptionsCategory {
			subscriptionID = c.ID
			break
		}
	}

	candidates := recurring.Detect(recent, subscriptionID)

	recurringIDs := make(map[string]bool)
	detected := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		detected[c.MerchantDisplayName] = true
		if err := s.store.UpsertRecurringTransaction(ctx, domain.RecurringTransaction{
			MerchantDisplayName: c.MerchantDisplayName,
			AverageAmount:       c.AverageAmount,
			Frequency:           c.Frequency,
			LastSeenDate:        c.LastSeenDate,
			IsActive:            true,
		}); err != nil {
			return nil, fmt.Errorf("ScanRecurring: upserting %s: %w", c.MerchantDisplayName, err)
		}
		for _, id := range c.TransactionIDs {
			recurringIDs[id] = true
		}
	}

	// Flip the per-transaction flag where it changed.
	for _, tx := range txs {
		want := recurringIDs[tx.ID]
		if tx.IsRecurring == want {
			continue
		}
		flag := want
		if err := s.store.UpdateTransaction(ctx, tx.ID, domain.TransactionPatch{IsRecurring: &flag}); err != nil {
			return nil, fmt.Errorf("ScanRecurring: flagging transaction %s: %w", tx.ID, err)
		}
	}

	existing, err := s.store.ListRecurringTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ScanRecurring: listing recurring transactions: %w", err)
	}
	result := &RecurringScanResult{Detected: len(candidates)}
	for _, r := range existing {
		if r.IsActive && !detected[r.MerchantDisplayName] {
			if err := s.store.SetRecurringInactive(ctx, r.MerchantDisplayName); err != nil {
				return nil, fmt.Errorf("ScanRecurring: deactivating %s: %w", r.MerchantDisplayName, err)
			}
			result.Deactivated++
		}
	}
	return result, nil
}

// UserEdit is a correction applied to one transaction from the review UI.
// Nil fields are untouched.
type UserEdit struct {
	MerchantDisplayName *string
	CategoryID          *string
	Type                *domain.TransactionType
}

// ApplyUserEdit applies a user correction, clears the review flag, and
// records a merchant mapping so the same raw description classifies the
// user's way from then on.
func (s *Service) ApplyUserEdit(ctx context.Context, txID string, edit UserEdit) error {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return fmt.Errorf("ApplyUserEdit: loading transaction: %w", err)
	}

	reviewed := false
	patch := domain.TransactionPatch{
		MerchantDisplayName: edit.MerchantDisplayName,
		CategoryID:          edit.CategoryID,
		Type:                edit.Type,
		NeedsReview:         &reviewed,
	}
	if err := s.store.UpdateTransaction(ctx, txID, patch); err != nil {
		return fmt.Errorf("ApplyUserEdit: updating transaction: %w", err)
	}

	if edit.MerchantDisplayName == nil && edit.CategoryID == nil {
		return nil
	}
	mapping := domain.MerchantMapping{
		OriginalName:      tx.Description,
		DisplayName:       tx.MerchantDisplayName,
		DefaultCategoryID: tx.CategoryID,
	}
	if edit.MerchantDisplayName != nil {
		mapping.DisplayName = *edit.MerchantDisplayName
	}
	if edit.CategoryID != nil {
		mapping.DefaultCategoryID = *edit.CategoryID
	}
	if err := s.store.UpsertMerchantMapping(ctx, mapping); err != nil {
		return fmt.Errorf("ApplyUserEdit: saving merchant mapping: %w", err)
	}
	return nil
}

// pipelineEnv is the per-operation snapshot the row pipeline classifies
// against: stored transactions, merchant mappings, and categories.
type pipelineEnv struct {
	stored         []domain.Transaction
	detector       *dedup.Detector
	mappings       map[string]domain.MerchantMapping
	categoryByName map[string]string
	categoryByID   map[string]string
}

func (e *pipelineEnv) categoryName(id string) string {
	return e.categoryByID[id]
}

func (s *Service) loadPipelineEnv(ctx context.Context, accountID string) (*pipelineEnv, error) {
	stored, err := s.store.ListTransactions(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	mappings, err := s.store.ListMerchantMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing merchant mappings: %w", err)
	}
	cats, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}

	env := &pipelineEnv{
		stored:         stored,
		detector:       dedup.NewDetector(stored),
		mappings:       make(map[string]domain.MerchantMapping, len(mappings)),
		categoryByName: make(map[string]string, len(cats)),
		categoryByID:   make(map[string]string, len(cats)),
	}
	for _, m := range mappings {
		env.mappings[strings.ToLower(strings.TrimSpace(m.OriginalName))] = m
	}
	for _, c := range cats {
		env.categoryByName[c.Name] = c.ID
		env.categoryByID[c.ID] = c.Name
	}
	return env, nil
}

// classifyRow runs one raw row through the full deterministic pipeline and
// returns the transaction as it would be persisted, without an ID.
func (s *Service) classifyRow(env *pipelineEnv, accountID string, row domain.RawTransactionInput) domain.Transaction {
	display := classify.NormalizeMerchant(s.rules, row.Description)

	mappedCategory := ""
	if m, ok := env.mappings[strings.ToLower(strings.TrimSpace(row.Description))]; ok {
		if m.DisplayName != "" {
			display = m.DisplayName
		}
		if m.DefaultCategoryID != "" {
			mappedCategory = env.categoryByID[m.DefaultCategoryID]
		}
	}

	typ := classify.DetectType(s.rules, row.Amount,
		[]string{row.Description, row.ExtendedDetails}, row.ProviderCategory, nil)

	tx := domain.Transaction{
		AccountID:             accountID,
		Date:                  row.Date,
		Description:           row.Description,
		Amount:                row.Amount,
		ExtendedDetails:       row.ExtendedDetails,
		ExternalReference:     row.ExternalReference,
		ProviderCategory:      row.ProviderCategory,
		ProviderTransactionID: row.ProviderTransactionID,
		Pending:               row.Pending,
		MerchantDisplayName:   display,
		Type:                  typ,
	}

	switch typ {
	case domain.TypeTransfer:
		// Transfers carry no spending category.
	case domain.TypeIncome:
		tx.CategoryID = env.categoryByName[incomeCategoryName]
	case domain.TypeInvestment:
		tx.CategoryID = env.categoryByName[investmentCategoryName]
	default:
		res := classify.ClassifyCategory(s.rules, row.Description, row.ExtendedDetails,
			row.ProviderCategory, mappedCategory)
		tx.CategoryID = env.categoryByName[res.CategoryName]
		tx.NeedsReview = res.NeedsReview
	}
	return tx
}

func candidateFor(row domain.RawTransactionInput, tx domain.Transaction) dedup.Candidate {
	return dedup.Candidate{
		Date:                row.Date,
		Description:         row.Description,
		Amount:              row.Amount,
		ExternalReference:   row.ExternalReference,
		MerchantDisplayName: tx.MerchantDisplayName,
	}
}

// patchFrom turns a freshly classified row into a full-field patch for a
// provider-modified transaction.
func patchFrom(tx domain.Transaction) domain.TransactionPatch {
	date, desc, amount := tx.Date, tx.Description, tx.Amount
	display, catID, typ := tx.MerchantDisplayName, tx.CategoryID, tx.Type
	review, pending := tx.NeedsReview, tx.Pending
	return domain.TransactionPatch{
		Date:                &date,
		Description:         &desc,
		Amount:              &amount,
		MerchantDisplayName: &display,
		CategoryID:          &catID,
		Type:                &typ,
		NeedsReview:         &review,
		Pending:             &pending,
	}
}
