package bigquery

import (
	"context"
	"fmt"

	"google.golang.org/api/iterator"

	"github.com/dvloznov/pennyledger/internal/domain"
)

type CategoryRow struct {
	CategoryID   string `bigquery:"category_id"`
	CategoryName string `bigquery:"category_name"`
	IsActive     bool   `bigquery:"is_active"`
}

// ListCategories returns the active categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT
			category_id,
			category_name,
			is_active
		FROM %s
		WHERE is_active = TRUE
		ORDER BY category_name
	`, s.table(categoriesTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: query read: %w", err)
	}

	var cats []domain.Category
	for {
		var row CategoryRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListCategories: iter next: %w", err)
		}
		cats = append(cats, domain.Category{ID: row.CategoryID, Name: row.CategoryName})
	}
	return cats, nil
}
