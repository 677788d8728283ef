package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/pennyledger/internal/domain"
)

type RecurringTransactionRow struct {
	MerchantDisplayName string     `bigquery:"merchant_display_name"` // natural key
	AverageAmount       float64    `bigquery:"average_amount"`
	Frequency           string     `bigquery:"frequency"`
	LastSeenDate        civil.Date `bigquery:"last_seen_date"`
	IsActive            bool       `bigquery:"is_active"`
}

// ListRecurringTransactions returns every recurring-charge row, active or not.
func (s *Store) ListRecurringTransactions(ctx context.Context) ([]domain.RecurringTransaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			merchant_display_name,
			average_amount,
			frequency,
			last_seen_date,
			is_active
		FROM %s
		ORDER BY merchant_display_name
	`, s.table(recurringTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListRecurringTransactions: query read: %w", err)
	}

	var out []domain.RecurringTransaction
	for {
		var row RecurringTransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListRecurringTransactions: iter next: %w", err)
		}
		out = append(out, domain.RecurringTransaction{
			MerchantDisplayName: row.MerchantDisplayName,
			AverageAmount:       row.AverageAmount,
			Frequency:           domain.RecurringFrequency(row.Frequency),
			LastSeenDate:        row.LastSeenDate,
			IsActive:            row.IsActive,
		})
	}
	return out, nil
}

// UpsertRecurringTransaction inserts or replaces the row for one merchant.
func (s *Store) UpsertRecurringTransaction(ctx context.Context, r domain.RecurringTransaction) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @merchant_display_name AS merchant_display_name) src
		ON t.merchant_display_name = src.merchant_display_name
		WHEN MATCHED THEN UPDATE SET
			average_amount = @average_amount,
			frequency = @frequency,
			last_seen_date = @last_seen_date,
			is_active = @is_active
		WHEN NOT MATCHED THEN INSERT
			(merchant_display_name, average_amount, frequency, last_seen_date, is_active)
		VALUES
			(@merchant_display_name, @average_amount, @frequency, @last_seen_date, @is_active)
	`, s.table(recurringTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "merchant_display_name", Value: r.MerchantDisplayName},
		{Name: "average_amount", Value: r.AverageAmount},
		{Name: "frequency", Value: string(r.Frequency)},
		{Name: "last_seen_date", Value: r.LastSeenDate},
		{Name: "is_active", Value: r.IsActive},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertRecurringTransaction: %w", err)
	}
	return nil
}

// SetRecurringInactive flips one merchant's recurring row to inactive.
// Rows are deactivated rather than deleted so the history survives.
func (s *Store) SetRecurringInactive(ctx context.Context, merchantDisplayName string) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET is_active = FALSE
		WHERE merchant_display_name = @merchant_display_name
	`, s.table(recurringTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "merchant_display_name", Value: merchantDisplayName},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("SetRecurringInactive: %w", err)
	}
	return nil
}
