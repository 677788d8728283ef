package ingest

import (
	"context"
	"errors"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// ErrAdditionalConsentRequired is returned by a Provider when the institution
// needs the user to re-consent before transactions can be pulled. Sync treats
// it as a skip, not a failure.
var ErrAdditionalConsentRequired = errors.New("additional consent required")

// Store is the persistence surface the ingestion service depends on.
// The BigQuery implementation lives in internal/infra/bigquery.
type Store interface {
	ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) error
	DeleteTransactionsByProviderID(ctx context.Context, providerTransactionID string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)

	ListMerchantMappings(ctx context.Context) ([]domain.MerchantMapping, error)
	UpsertMerchantMapping(ctx context.Context, m domain.MerchantMapping) error

	ListRecurringTransactions(ctx context.Context) ([]domain.RecurringTransaction, error)
	UpsertRecurringTransaction(ctx context.Context, r domain.RecurringTransaction) error
	SetRecurringInactive(ctx context.Context, merchantDisplayName string) error

	CreateCSVImport(ctx context.Context, batch domain.CSVImportBatch) error
	UpdateCSVImportCount(ctx context.Context, id string, count int) error
	DeleteCSVImport(ctx context.Context, id string) error

	GetSyncCursor(ctx context.Context, accountID string) (string, error)
	SetSyncCursor(ctx context.Context, accountID, cursor string) error
}

// SyncPage is one page of changes from the aggregation provider.
type SyncPage struct {
	Added      []domain.RawTransactionInput
	Modified   []domain.RawTransactionInput
	RemovedIDs []string
	NextCursor string
	HasMore    bool
}

// Provider pulls transaction changes from an aggregation provider such as
// Plaid. An empty cursor means "from the beginning".
type Provider interface {
	SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error)
}

// Archiver stores the original bytes of an uploaded CSV and returns a
// durable URI for them. The GCS implementation lives in internal/gcsarchive.
type Archiver interface {
	Archive(ctx context.Context, accountID, fileName string, data []byte) (string, error)
}
