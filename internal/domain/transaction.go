// Package domain defines the canonical types shared by the ingestion
// pipeline, the store, and the API surface.
package domain

import (
	"cloud.google.com/go/civil"
)

// TransactionType classifies how a transaction moves money.
type TransactionType string

const (
	// TypeExpense is money out that is not a transfer or investment.
	TypeExpense TransactionType = "expense"
	// TypeIncome is money in confirmed as earned (payroll, provider INCOME hint).
	TypeIncome TransactionType = "income"
	// TypeReturn is money in not confirmed as income (refund, card payment in).
	TypeReturn TransactionType = "return"
	// TypeTransfer is movement between the user's own accounts or a bill payment.
	TypeTransfer TransactionType = "transfer"
	// TypeInvestment is brokerage or crypto contribution/withdrawal activity.
	TypeInvestment TransactionType = "investment"
)

// ProviderCategory carries the aggregation provider's category hint for a
// transaction, such as Plaid's personal_finance_category.
type ProviderCategory struct {
	Primary  string
	Detailed string
}

// RawTransactionInput is a transaction as it arrives from a CSV row or the
// provider feed, before classification and persistence.
//
// Amount sign convention: positive means money leaving the account (a charge),
// negative means money arriving (credit, refund, deposit).
type RawTransactionInput struct {
	Date                  civil.Date
	Description           string
	Amount                float64
	ExtendedDetails       string
	ExternalReference     string
	ProviderCategory      *ProviderCategory
	ProviderTransactionID string
	Pending               bool
}

// Transaction is a persisted, classified transaction.
//
// CategoryID is empty whenever Type is transfer; it is set by the classifier
// for expense/return rows and auto-assigned for income/investment rows.
type Transaction struct {
	ID        string
	AccountID string

	Date                  civil.Date
	Description           string
	Amount                float64
	ExtendedDetails       string
	ExternalReference     string
	ProviderCategory      *ProviderCategory
	ProviderTransactionID string
	Pending               bool

	MerchantDisplayName string
	CategoryID          string
	Type                TransactionType
	NeedsReview         bool
	IsSplit             bool
	IsRecurring         bool
	CSVImportID         string
}

// TransactionPatch is a partial update applied to a stored transaction.
// Nil fields are left untouched.
type TransactionPatch struct {
	Date                *civil.Date
	Description         *string
	Amount              *float64
	MerchantDisplayName *string
	CategoryID          *string
	Type                *TransactionType
	NeedsReview         *bool
	IsRecurring         *bool
	Pending             *bool
}

// Category is a fixed spending category.
type Category struct {
	ID   string
	Name string
}

// MerchantMapping records a user's correction for one exact raw merchant
// string. It is upserted when the user edits a transaction's display name or
// category and takes priority over pattern classification from then on.
// Semantics are last-write-wins, not merge.
type MerchantMapping struct {
	OriginalName      string
	DisplayName       string
	DefaultCategoryID string
}

// RecurringFrequency is the cadence of a recurring charge.
type RecurringFrequency string

const (
	FrequencyWeekly  RecurringFrequency = "weekly"
	FrequencyMonthly RecurringFrequency = "monthly"
	FrequencyYearly  RecurringFrequency = "yearly"
)

// RecurringTransaction is a detected or user-flagged recurring charge, keyed
// by merchant display name. Deactivated rather than deleted when no flagged
// transactions remain for the merchant.
type RecurringTransaction struct {
	MerchantDisplayName string
	AverageAmount       float64
	Frequency           RecurringFrequency
	LastSeenDate        civil.Date
	IsActive            bool
}

// CSVImportBatch groups the transactions ingested from one CSV file.
type CSVImportBatch struct {
	ID               string
	AccountID        string
	FileName         string
	ArchiveURI       string
	TransactionCount int
}
