package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

type SyncCursorRow struct {
	AccountID string `bigquery:"account_id"` // natural key
	Cursor    string `bigquery:"cursor"`
}

// GetSyncCursor returns the stored provider cursor for an account, or the
// empty string when the account has never synced.
func (s *Store) GetSyncCursor(ctx context.Context, accountID string) (string, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT account_id, cursor
		FROM %s
		WHERE account_id = @account_id
		LIMIT 1
	`, s.table(syncCursorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return "", fmt.Errorf("GetSyncCursor: query read: %w", err)
	}

	var row SyncCursorRow
	if err := it.Next(&row); err == iterator.Done {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("GetSyncCursor: iter next: %w", err)
	}
	return row.Cursor, nil
}

// SetSyncCursor stores the provider cursor for an account.
func (s *Store) SetSyncCursor(ctx context.Context, accountID, cursor string) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @account_id AS account_id) src
		ON t.account_id = src.account_id
		WHEN MATCHED THEN UPDATE SET cursor = @cursor
		WHEN NOT MATCHED THEN INSERT (account_id, cursor)
		VALUES (@account_id, @cursor)
	`, s.table(syncCursorsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "account_id", Value: accountID},
		{Name: "cursor", Value: cursor},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("SetSyncCursor: %w", err)
	}
	return nil
}
