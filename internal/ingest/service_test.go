package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	txs       map[string]domain.Transaction
	cats      []domain.Category
	mappings  map[string]domain.MerchantMapping
	recurring map[string]domain.RecurringTransaction
	imports   map[string]domain.CSVImportBatch
	cursors   map[string]string

	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		txs:       map[string]domain.Transaction{},
		mappings:  map[string]domain.MerchantMapping{},
		recurring: map[string]domain.RecurringTransaction{},
		imports:   map[string]domain.CSVImportBatch{},
		cursors:   map[string]string{},
		cats: []domain.Category{
			{ID: "cat-dining", Name: "Dining"},
			{ID: "cat-groceries", Name: "Groceries"},
			{ID: "cat-subs", Name: "Subscriptions"},
			{ID: "cat-income", Name: "Income"},
			{ID: "cat-invest", Name: "Investments"},
			{ID: "cat-other", Name: "Other"},
		},
	}
}

func (m *memStore) ListTransactions(_ context.Context, accountID string) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tx := range m.txs {
		if tx.AccountID == accountID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) GetTransaction(_ context.Context, id string) (domain.Transaction, error) {
	tx, ok := m.txs[id]
	if !ok {
		return domain.Transaction{}, errors.New("not found")
	}
	return tx, nil
}

func (m *memStore) InsertTransaction(_ context.Context, tx domain.Transaction) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.txs[tx.ID] = tx
	return nil
}

func (m *memStore) UpdateTransaction(_ context.Context, id string, patch domain.TransactionPatch) error {
	tx, ok := m.txs[id]
	if !ok {
		return errors.New("not found")
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.MerchantDisplayName != nil {
		tx.MerchantDisplayName = *patch.MerchantDisplayName
	}
	if patch.CategoryID != nil {
		tx.CategoryID = *patch.CategoryID
	}
	if patch.Type != nil {
		tx.Type = *patch.Type
	}
	if patch.NeedsReview != nil {
		tx.NeedsReview = *patch.NeedsReview
	}
	if patch.IsRecurring != nil {
		tx.IsRecurring = *patch.IsRecurring
	}
	if patch.Pending != nil {
		tx.Pending = *patch.Pending
	}
	m.txs[id] = tx
	return nil
}

func (m *memStore) DeleteTransactionsByProviderID(_ context.Context, providerID string) error {
	for id, tx := range m.txs {
		if tx.ProviderTransactionID == providerID {
			delete(m.txs, id)
		}
	}
	return nil
}

func (m *memStore) ListCategories(_ context.Context) ([]domain.Category, error) {
	return m.cats, nil
}

func (m *memStore) ListMerchantMappings(_ context.Context) ([]domain.MerchantMapping, error) {
	var out []domain.MerchantMapping
	for _, v := range m.mappings {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) UpsertMerchantMapping(_ context.Context, mm domain.MerchantMapping) error {
	m.mappings[mm.OriginalName] = mm
	return nil
}

func (m *memStore) ListRecurringTransactions(_ context.Context) ([]domain.RecurringTransaction, error) {
	var out []domain.RecurringTransaction
	for _, v := range m.recurring {
		out = append(out, v)
	}
	return out, nil
}

func (m *memStore) UpsertRecurringTransaction(_ context.Context, r domain.RecurringTransaction) error {
	m.recurring[r.MerchantDisplayName] = r
	return nil
}

func (m *memStore) SetRecurringInactive(_ context.Context, merchant string) error {
	r, ok := m.recurring[merchant]
	if !ok {
		return errors.New("not found")
	}
	r.IsActive = false
	m.recurring[merchant] = r
	return nil
}

func (m *memStore) CreateCSVImport(_ context.Context, b domain.CSVImportBatch) error {
	m.imports[b.ID] = b
	return nil
}

func (m *memStore) UpdateCSVImportCount(_ context.Context, id string, count int) error {
	b, ok := m.imports[id]
	if !ok {
		return errors.New("not found")
	}
	b.TransactionCount = count
	m.imports[id] = b
	return nil
}

func (m *memStore) DeleteCSVImport(_ context.Context, id string) error {
	delete(m.imports, id)
	return nil
}

func (m *memStore) GetSyncCursor(_ context.Context, accountID string) (string, error) {
	return m.cursors[accountID], nil
}

func (m *memStore) SetSyncCursor(_ context.Context, accountID, cursor string) error {
	m.cursors[accountID] = cursor
	return nil
}

// mockProvider serves pre-baked sync pages.
type mockProvider struct {
	pages []SyncPage
	err   error
	calls int
}

func (p *mockProvider) SyncTransactions(_ context.Context, _, _ string) (SyncPage, error) {
	if p.err != nil {
		return SyncPage{}, p.err
	}
	if p.calls >= len(p.pages) {
		return SyncPage{}, errors.New("no more pages")
	}
	page := p.pages[p.calls]
	p.calls++
	return page, nil
}

func newTestService(store *memStore, provider Provider) *Service {
	svc := NewService(store, provider, nil, nil, zerolog.Nop())
	// Pin the clock near the fixture dates so window checks are stable.
	svc.now = func() time.Time {
		return time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	}
	return svc
}

const statementCSV = `Date,Description,Amount,Extended Details
01/10/2024,STARBUCKS STORE #123,5.75,STARBUCKS STORE #123 SEATTLE WA
01/11/2024,WHOLEFDS MKT 10234,84.12,
01/12/2024,NETFLIX.COM,15.49,
`

func TestImportCSV_RoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	first, err := svc.ImportCSV(ctx, "acct-1", "jan.csv", []byte(statementCSV), true)
	if err != nil {
		t.Fatalf("first import: %v", err)
	}
	if first.Imported != 3 || first.Skipped != 0 {
		t.Fatalf("first import = %+v, want 3 imported", first)
	}
	if first.ImportID == "" {
		t.Error("first import should return a batch id")
	}
	if b := store.imports[first.ImportID]; b.TransactionCount != 3 {
		t.Errorf("batch count = %d, want 3", b.TransactionCount)
	}

	second, err := svc.ImportCSV(ctx, "acct-1", "jan.csv", []byte(statementCSV), true)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if second.Imported != 0 || second.Skipped != 3 {
		t.Errorf("second import = %+v, want all 3 skipped", second)
	}
	if second.ImportID != "" {
		t.Error("empty import should not keep a batch id")
	}
	if len(store.imports) != 1 {
		t.Errorf("empty batch record should be deleted, have %d batches", len(store.imports))
	}
}

func TestImportCSV_StarbucksClassification(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	res, err := svc.ImportCSV(context.Background(), "acct-1", "jan.csv",
		[]byte("Date,Description,Amount\n01/10/2024,STARBUCKS STORE #123,5.75\n"), true)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if res.Imported != 1 {
		t.Fatalf("imported = %d", res.Imported)
	}

	var got domain.Transaction
	for _, tx := range store.txs {
		got = tx
	}
	if got.Date != (civil.Date{Year: 2024, Month: 1, Day: 10}) {
		t.Errorf("date = %v", got.Date)
	}
	if got.Amount != 5.75 {
		t.Errorf("amount = %v", got.Amount)
	}
	if got.Type != domain.TypeExpense {
		t.Errorf("type = %q, want expense", got.Type)
	}
	if got.MerchantDisplayName != "Starbucks" {
		t.Errorf("merchant = %q, want Starbucks", got.MerchantDisplayName)
	}
	if got.CategoryID != "cat-dining" {
		t.Errorf("category = %q, want cat-dining", got.CategoryID)
	}
	if got.NeedsReview {
		t.Error("confident classification should not need review")
	}
	if got.CSVImportID != res.ImportID {
		t.Errorf("csv import id = %q, want %q", got.CSVImportID, res.ImportID)
	}
}

func TestImportCSV_RowErrorsReported(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	csv := "Date,Description,Amount\n01/10/2024,COFFEE,5.75\nnot-a-date,BAD,1.00\n"
	res, err := svc.ImportCSV(context.Background(), "acct-1", "jan.csv", []byte(csv), true)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if res.Imported != 1 {
		t.Errorf("imported = %d, want 1", res.Imported)
	}
	if len(res.Errors) != 1 || !strings.HasPrefix(res.Errors[0], "Row 2: ") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestImportCSV_ErrorListCapped(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	var b strings.Builder
	b.WriteString("Date,Description,Amount\n")
	b.WriteString("01/10/2024,GOOD ROW,5.00\n")
	for i := 0; i < 15; i++ {
		b.WriteString("garbage,BAD,1.00\n")
	}
	res, err := svc.ImportCSV(context.Background(), "acct-1", "jan.csv", []byte(b.String()), true)
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if len(res.Errors) != maxReportedRowErrors {
		t.Errorf("reported errors = %d, want %d", len(res.Errors), maxReportedRowErrors)
	}
}

func TestPreviewCSV(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.ImportCSV(ctx, "acct-1", "jan.csv", []byte(statementCSV), true); err != nil {
		t.Fatalf("seeding import: %v", err)
	}
	storedCount := len(store.txs)

	preview, err := svc.PreviewCSV(ctx, "acct-1", []byte(statementCSV))
	if err != nil {
		t.Fatalf("PreviewCSV: %v", err)
	}
	if preview.DuplicateCount != 3 || preview.NewCount != 0 {
		t.Errorf("preview = dup %d new %d, want 3/0", preview.DuplicateCount, preview.NewCount)
	}
	if len(store.txs) != storedCount {
		t.Error("preview must not persist transactions")
	}
	for _, pt := range preview.Transactions {
		if !pt.IsDuplicate {
			t.Errorf("%q should be flagged duplicate", pt.Description)
		}
		if pt.Hash == "" {
			t.Errorf("%q missing content hash", pt.Description)
		}
	}
}

func TestPreviewCSV_FuzzyCounting(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	// One stored transaction at (2024-01-05, $42.00).
	store.txs["t1"] = domain.Transaction{
		ID: "t1", AccountID: "acct-1",
		Date:   civil.Date{Year: 2024, Month: 1, Day: 5},
		Amount: 42.00, Description: "SOMETHING OLD", Type: domain.TypeExpense,
	}

	// Two candidates on the same date and amount but different text: the
	// first matches the one stored row, the second exceeds the stored count.
	csv := "Date,Description,Amount\n" +
		"01/05/2024,VENDOR ALPHA,42.00\n" +
		"01/05/2024,VENDOR BETA,42.00\n"
	preview, err := svc.PreviewCSV(ctx, "acct-1", []byte(csv))
	if err != nil {
		t.Fatalf("PreviewCSV: %v", err)
	}
	if !preview.Transactions[0].IsDuplicate {
		t.Error("first same-date-amount row should be a duplicate")
	}
	if preview.Transactions[1].IsDuplicate {
		t.Error("second same-date-amount row should be new")
	}
}

func TestSyncAccount(t *testing.T) {
	store := newMemStore()
	store.txs["old"] = domain.Transaction{
		ID: "old", AccountID: "acct-1",
		Date: civil.Date{Year: 2024, Month: 1, Day: 2},
		Description: "OLD SUBSCRIPTION", Amount: 9.99,
		ProviderTransactionID: "p-old", Type: domain.TypeExpense,
	}

	newAmount := domain.RawTransactionInput{
		Date:                  civil.Date{Year: 2024, Month: 1, Day: 2},
		Description:           "OLD SUBSCRIPTION",
		Amount:                10.99,
		ProviderTransactionID: "p-old",
	}
	added := domain.RawTransactionInput{
		Date:                  civil.Date{Year: 2024, Month: 1, Day: 3},
		Description:           "STARBUCKS STORE #5",
		Amount:                6.25,
		ProviderTransactionID: "p-new",
		ProviderCategory:      &domain.ProviderCategory{Primary: "FOOD_AND_DRINK", Detailed: "FOOD_AND_DRINK_COFFEE"},
	}
	provider := &mockProvider{pages: []SyncPage{
		{Added: []domain.RawTransactionInput{added}, Modified: []domain.RawTransactionInput{newAmount}, NextCursor: "c1", HasMore: true},
		{RemovedIDs: []string{"p-old"}, NextCursor: "c2"},
	}}

	svc := newTestService(store, provider)
	res, err := svc.SyncAccount(context.Background(), "acct-1", "token")
	if err != nil {
		t.Fatalf("SyncAccount: %v", err)
	}
	if res.Added != 1 || res.Modified != 1 || res.Removed != 1 {
		t.Errorf("result = %+v, want 1/1/1", res)
	}
	if res.Cursor != "c2" {
		t.Errorf("cursor = %q, want c2", res.Cursor)
	}
	if store.cursors["acct-1"] != "c2" {
		t.Errorf("persisted cursor = %q, want c2", store.cursors["acct-1"])
	}

	// The modified row was removed by the second page, so only the add remains.
	if len(store.txs) != 1 {
		t.Fatalf("stored transactions = %d, want 1", len(store.txs))
	}
	for _, tx := range store.txs {
		if tx.ProviderTransactionID != "p-new" {
			t.Errorf("surviving transaction = %q", tx.ProviderTransactionID)
		}
		if tx.MerchantDisplayName != "Starbucks" {
			t.Errorf("merchant = %q, want Starbucks", tx.MerchantDisplayName)
		}
		if tx.CategoryID != "cat-dining" {
			t.Errorf("category = %q, want cat-dining", tx.CategoryID)
		}
	}
}

func TestSyncAccount_ConsentRequired(t *testing.T) {
	store := newMemStore()
	provider := &mockProvider{err: ErrAdditionalConsentRequired}
	svc := newTestService(store, provider)

	res, err := svc.SyncAccount(context.Background(), "acct-1", "token")
	if err != nil {
		t.Fatalf("consent-required should not be an error, got %v", err)
	}
	if !res.ConsentRequired {
		t.Error("ConsentRequired not set")
	}
	if res.Added != 0 || res.Modified != 0 || res.Removed != 0 {
		t.Errorf("nothing should be applied, got %+v", res)
	}
}

func TestSyncAccount_InsertFailureDoesNotAbortPage(t *testing.T) {
	store := newMemStore()
	store.insertErr = errors.New("stream insert failed")
	provider := &mockProvider{pages: []SyncPage{{
		Added: []domain.RawTransactionInput{
			{
				Date:                  civil.Date{Year: 2024, Month: 2, Day: 1},
				Description:           "STARBUCKS STORE #5",
				Amount:                6.25,
				ProviderTransactionID: "p-1",
			},
			{
				Date:                  civil.Date{Year: 2024, Month: 2, Day: 2},
				Description:           "NETFLIX.COM",
				Amount:                15.49,
				ProviderTransactionID: "p-2",
			},
		},
		NextCursor: "c1",
	}}}
	svc := newTestService(store, provider)

	res, err := svc.SyncAccount(context.Background(), "acct-1", "token")
	if err != nil {
		t.Fatalf("store failures must not abort the sync, got %v", err)
	}
	if res.Added != 0 || res.Skipped != 2 {
		t.Errorf("result = %+v, want 0 added 2 skipped", res)
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors reported = %d, want 2", len(res.Errors))
	}
	if store.cursors["acct-1"] != "c1" {
		t.Errorf("persisted cursor = %q, want c1", store.cursors["acct-1"])
	}
}

func TestScanRecurring(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	dates := []civil.Date{
		{Year: 2024, Month: 1, Day: 15},
		{Year: 2024, Month: 2, Day: 14},
		{Year: 2024, Month: 3, Day: 16},
	}
	for _, d := range dates {
		id := uuid.NewString()
		store.txs[id] = domain.Transaction{
			ID: id, AccountID: "acct-1", Date: d,
			Description: "NETFLIX.COM", MerchantDisplayName: "Netflix",
			Amount: 9.99, Type: domain.TypeExpense,
		}
	}
	// A previously detected merchant with no qualifying charges anymore.
	store.recurring["Gone Gym"] = domain.RecurringTransaction{
		MerchantDisplayName: "Gone Gym", IsActive: true,
		Frequency: domain.FrequencyMonthly,
	}

	res, err := svc.ScanRecurring(ctx, "acct-1")
	if err != nil {
		t.Fatalf("ScanRecurring: %v", err)
	}
	if res.Detected != 1 || res.Deactivated != 1 {
		t.Errorf("result = %+v, want 1 detected 1 deactivated", res)
	}

	r, ok := store.recurring["Netflix"]
	if !ok || !r.IsActive || r.Frequency != domain.FrequencyMonthly {
		t.Errorf("Netflix recurring row = %+v", r)
	}
	if store.recurring["Gone Gym"].IsActive {
		t.Error("Gone Gym should be deactivated")
	}
	for _, tx := range store.txs {
		if !tx.IsRecurring {
			t.Errorf("transaction %s should be flagged recurring", tx.ID)
		}
	}
}

func TestScanRecurring_GapTooWide(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	for _, d := range []civil.Date{
		{Year: 2024, Month: 1, Day: 1},
		{Year: 2024, Month: 7, Day: 19}, // 200 days later
	} {
		id := uuid.NewString()
		store.txs[id] = domain.Transaction{
			ID: id, AccountID: "acct-1", Date: d,
			Description: "HARDWARE STORE", MerchantDisplayName: "Hardware Store",
			Amount: 45, Type: domain.TypeExpense,
		}
	}

	res, err := svc.ScanRecurring(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("ScanRecurring: %v", err)
	}
	if res.Detected != 0 {
		t.Errorf("detected = %d, want 0", res.Detected)
	}
}

func TestScanRecurring_IgnoresChargesOlderThanAYear(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)

	// A clean monthly run that ended two years before the pinned clock.
	for _, d := range []civil.Date{
		{Year: 2022, Month: 1, Day: 5},
		{Year: 2022, Month: 2, Day: 5},
		{Year: 2022, Month: 3, Day: 5},
	} {
		id := uuid.NewString()
		store.txs[id] = domain.Transaction{
			ID: id, AccountID: "acct-1", Date: d,
			Description: "OLDMAG SUBSCRIPTION", MerchantDisplayName: "Oldmag",
			Amount: 12.50, Type: domain.TypeExpense,
		}
	}

	res, err := svc.ScanRecurring(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("ScanRecurring: %v", err)
	}
	if res.Detected != 0 {
		t.Errorf("detected = %d, want 0 for charges outside the trailing year", res.Detected)
	}
	if _, ok := store.recurring["Oldmag"]; ok {
		t.Error("Oldmag should not be upserted as recurring")
	}
}

func TestApplyUserEdit(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	store.txs["t1"] = domain.Transaction{
		ID: "t1", AccountID: "acct-1",
		Description:         "SQ *CORNER CAFE 0042",
		MerchantDisplayName: "Sq *corner Cafe",
		CategoryID:          "cat-other",
		Type:                domain.TypeExpense,
		NeedsReview:         true,
	}

	display := "Corner Cafe"
	catID := "cat-dining"
	if err := svc.ApplyUserEdit(ctx, "t1", UserEdit{
		MerchantDisplayName: &display,
		CategoryID:          &catID,
	}); err != nil {
		t.Fatalf("ApplyUserEdit: %v", err)
	}

	tx := store.txs["t1"]
	if tx.MerchantDisplayName != "Corner Cafe" || tx.CategoryID != "cat-dining" {
		t.Errorf("transaction after edit = %+v", tx)
	}
	if tx.NeedsReview {
		t.Error("edit should clear the review flag")
	}

	mapping, ok := store.mappings["SQ *CORNER CAFE 0042"]
	if !ok {
		t.Fatal("edit should record a merchant mapping")
	}
	if mapping.DisplayName != "Corner Cafe" || mapping.DefaultCategoryID != "cat-dining" {
		t.Errorf("mapping = %+v", mapping)
	}

	// The mapping now drives classification for the same raw description.
	csv := "Date,Description,Amount\n02/10/2024,SQ *CORNER CAFE 0042,7.25\n"
	if _, err := svc.ImportCSV(ctx, "acct-1", "feb.csv", []byte(csv), true); err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	var imported domain.Transaction
	for _, cand := range store.txs {
		if cand.ID != "t1" {
			imported = cand
		}
	}
	if imported.MerchantDisplayName != "Corner Cafe" {
		t.Errorf("mapped merchant = %q, want Corner Cafe", imported.MerchantDisplayName)
	}
	if imported.CategoryID != "cat-dining" {
		t.Errorf("mapped category = %q, want cat-dining", imported.CategoryID)
	}
}
