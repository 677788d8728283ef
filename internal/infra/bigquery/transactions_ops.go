package bigquery

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/pennyledger/internal/domain"
)

const transactionColumns = `
	transaction_id,
	account_id,
	transaction_date,
	raw_description,
	amount,
	extended_details,
	external_reference,
	provider_category_primary,
	provider_category_detailed,
	provider_transaction_id,
	is_pending,
	merchant_display_name,
	category_id,
	transaction_type,
	needs_review,
	is_split,
	is_recurring,
	csv_import_id,
	created_ts,
	updated_ts`

// ListTransactions returns the account's full history, oldest first.
func (s *Store) ListTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE account_id = @account_id
		ORDER BY transaction_date, created_ts
	`, transactionColumns, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: iter next: %w", err)
		}
		txs = append(txs, rowToTransaction(&row))
	}
	return txs, nil
}

// GetTransaction fetches one transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE transaction_id = @transaction_id
		LIMIT 1
	`, transactionColumns, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("GetTransaction: query read: %w", err)
	}

	var row TransactionRow
	if err := it.Next(&row); err == iterator.Done {
		return domain.Transaction{}, fmt.Errorf("GetTransaction: %s: %w", id, ErrNotFound)
	} else if err != nil {
		return domain.Transaction{}, fmt.Errorf("GetTransaction: iter next: %w", err)
	}
	return rowToTransaction(&row), nil
}

// InsertTransaction streams one classified transaction into the table.
func (s *Store) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, transactionToRow(tx)); err != nil {
		return fmt.Errorf("InsertTransaction: inserting row: %w", err)
	}
	return nil
}

// UpdateTransaction applies the non-nil fields of patch to one row.
func (s *Store) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) error {
	var (
		sets   []string
		params []bigquery.QueryParameter
	)
	set := func(column, param string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = @%s", column, param))
		params = append(params, bigquery.QueryParameter{Name: param, Value: value})
	}

	if patch.Date != nil {
		set("transaction_date", "p_date", *patch.Date)
	}
	if patch.Description != nil {
		set("raw_description", "p_description", *patch.Description)
	}
	if patch.Amount != nil {
		set("amount", "p_amount", *patch.Amount)
	}
	if patch.MerchantDisplayName != nil {
		set("merchant_display_name", "p_merchant", *patch.MerchantDisplayName)
	}
	if patch.CategoryID != nil {
		set("category_id", "p_category_id", *patch.CategoryID)
	}
	if patch.Type != nil {
		set("transaction_type", "p_type", string(*patch.Type))
	}
	if patch.NeedsReview != nil {
		set("needs_review", "p_needs_review", *patch.NeedsReview)
	}
	if patch.IsRecurring != nil {
		set("is_recurring", "p_is_recurring", *patch.IsRecurring)
	}
	if patch.Pending != nil {
		set("is_pending", "p_is_pending", *patch.Pending)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_ts = CURRENT_TIMESTAMP()")

	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE transaction_id = @transaction_id
	`, s.table(transactionsTable), strings.Join(sets, ", ")))
	q.Parameters = append(params, bigquery.QueryParameter{Name: "transaction_id", Value: id})

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return nil
}

// DeleteTransactionsByProviderID removes every row carrying the given
// provider transaction ID. Used when the provider reports a removal.
func (s *Store) DeleteTransactionsByProviderID(ctx context.Context, providerTransactionID string) error {
	q := s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE provider_transaction_id = @provider_transaction_id
	`, s.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "provider_transaction_id", Value: providerTransactionID},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteTransactionsByProviderID: %w", err)
	}
	return nil
}
