package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/pennyledger/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	AccountID     string `bigquery:"account_id"`     // REQUIRED

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED
	RawDescription  string     `bigquery:"raw_description"`  // REQUIRED
	Amount          float64    `bigquery:"amount"`           // REQUIRED, positive = money out

	ExtendedDetails   bigquery.NullString `bigquery:"extended_details"`
	ExternalReference bigquery.NullString `bigquery:"external_reference"`

	ProviderCategoryPrimary  bigquery.NullString `bigquery:"provider_category_primary"`
	ProviderCategoryDetailed bigquery.NullString `bigquery:"provider_category_detailed"`
	ProviderTransactionID    bigquery.NullString `bigquery:"provider_transaction_id"`
	IsPending                bool                `bigquery:"is_pending"`

	MerchantDisplayName string              `bigquery:"merchant_display_name"`
	CategoryID          bigquery.NullString `bigquery:"category_id"`
	TransactionType     string              `bigquery:"transaction_type"`
	NeedsReview         bool                `bigquery:"needs_review"`
	IsSplit             bool                `bigquery:"is_split"`
	IsRecurring         bool                `bigquery:"is_recurring"`

	CSVImportID bigquery.NullString `bigquery:"csv_import_id"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func transactionToRow(tx domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:         tx.ID,
		AccountID:             tx.AccountID,
		TransactionDate:       tx.Date,
		RawDescription:        tx.Description,
		Amount:                tx.Amount,
		ExtendedDetails:       nullString(tx.ExtendedDetails),
		ExternalReference:     nullString(tx.ExternalReference),
		ProviderTransactionID: nullString(tx.ProviderTransactionID),
		IsPending:             tx.Pending,
		MerchantDisplayName:   tx.MerchantDisplayName,
		CategoryID:            nullString(tx.CategoryID),
		TransactionType:       string(tx.Type),
		NeedsReview:           tx.NeedsReview,
		IsSplit:               tx.IsSplit,
		IsRecurring:           tx.IsRecurring,
		CSVImportID:           nullString(tx.CSVImportID),
		CreatedTS:             time.Now().UTC(),
	}
	if tx.ProviderCategory != nil {
		row.ProviderCategoryPrimary = nullString(tx.ProviderCategory.Primary)
		row.ProviderCategoryDetailed = nullString(tx.ProviderCategory.Detailed)
	}
	return row
}

func rowToTransaction(row *TransactionRow) domain.Transaction {
	tx := domain.Transaction{
		ID:                    row.TransactionID,
		AccountID:             row.AccountID,
		Date:                  row.TransactionDate,
		Description:           row.RawDescription,
		Amount:                row.Amount,
		ExtendedDetails:       row.ExtendedDetails.StringVal,
		ExternalReference:     row.ExternalReference.StringVal,
		ProviderTransactionID: row.ProviderTransactionID.StringVal,
		Pending:               row.IsPending,
		MerchantDisplayName:   row.MerchantDisplayName,
		CategoryID:            row.CategoryID.StringVal,
		Type:                  domain.TransactionType(row.TransactionType),
		NeedsReview:           row.NeedsReview,
		IsSplit:               row.IsSplit,
		IsRecurring:           row.IsRecurring,
		CSVImportID:           row.CSVImportID.StringVal,
	}
	if row.ProviderCategoryPrimary.Valid || row.ProviderCategoryDetailed.Valid {
		tx.ProviderCategory = &domain.ProviderCategory{
			Primary:  row.ProviderCategoryPrimary.StringVal,
			Detailed: row.ProviderCategoryDetailed.StringVal,
		}
	}
	return tx
}
