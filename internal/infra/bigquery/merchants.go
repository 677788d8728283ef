package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/pennyledger/internal/domain"
)

type MerchantMappingRow struct {
	OriginalName      string              `bigquery:"original_name"` // natural key
	DisplayName       string              `bigquery:"display_name"`
	DefaultCategoryID bigquery.NullString `bigquery:"default_category_id"`
}

// ListMerchantMappings returns every stored merchant correction.
func (s *Store) ListMerchantMappings(ctx context.Context) ([]domain.MerchantMapping, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			original_name,
			display_name,
			default_category_id
		FROM %s
		ORDER BY original_name
	`, s.table(merchantsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListMerchantMappings: query read: %w", err)
	}

	var mappings []domain.MerchantMapping
	for {
		var row MerchantMappingRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListMerchantMappings: iter next: %w", err)
		}
		mappings = append(mappings, domain.MerchantMapping{
			OriginalName:      row.OriginalName,
			DisplayName:       row.DisplayName,
			DefaultCategoryID: row.DefaultCategoryID.StringVal,
		})
	}
	return mappings, nil
}

// UpsertMerchantMapping inserts or fully replaces the mapping for one raw
// merchant string. Last write wins.
func (s *Store) UpsertMerchantMapping(ctx context.Context, m domain.MerchantMapping) error {
	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @original_name AS original_name) src
		ON t.original_name = src.original_name
		WHEN MATCHED THEN UPDATE SET
			display_name = @display_name,
			default_category_id = @default_category_id
		WHEN NOT MATCHED THEN INSERT (original_name, display_name, default_category_id)
		VALUES (@original_name, @display_name, @default_category_id)
	`, s.table(merchantsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "original_name", Value: m.OriginalName},
		{Name: "display_name", Value: m.DisplayName},
		{Name: "default_category_id", Value: nullString(m.DefaultCategoryID)},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpsertMerchantMapping: %w", err)
	}
	return nil
}
