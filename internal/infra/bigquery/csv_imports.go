package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/pennyledger/internal/domain"
)

type CSVImportRow struct {
	ImportID         string              `bigquery:"import_id"`
	AccountID        string              `bigquery:"account_id"`
	FileName         string              `bigquery:"file_name"`
	ArchiveURI       bigquery.NullString `bigquery:"archive_uri"`
	TransactionCount int64               `bigquery:"transaction_count"`
	CreatedTS        time.Time           `bigquery:"created_ts"`
}

// CreateCSVImport records a new import batch.
func (s *Store) CreateCSVImport(ctx context.Context, batch domain.CSVImportBatch) error {
	row := &CSVImportRow{
		ImportID:         batch.ID,
		AccountID:        batch.AccountID,
		FileName:         batch.FileName,
		ArchiveURI:       nullString(batch.ArchiveURI),
		TransactionCount: int64(batch.TransactionCount),
		CreatedTS:        time.Now().UTC(),
	}
	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(csvImportsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return fmt.Errorf("CreateCSVImport: inserting row: %w", err)
	}
	return nil
}

// UpdateCSVImportCount sets the final transaction count of a batch.
func (s *Store) UpdateCSVImportCount(ctx context.Context, id string, count int) error {
	q := s.client.Query(fmt.Sprintf(`
		UPDATE %s
		SET transaction_count = @transaction_count
		WHERE import_id = @import_id
	`, s.table(csvImportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_count", Value: int64(count)},
		{Name: "import_id", Value: id},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("UpdateCSVImportCount: %w", err)
	}
	return nil
}

// DeleteCSVImport removes a batch record. Used when an import lands no rows.
func (s *Store) DeleteCSVImport(ctx context.Context, id string) error {
	q := s.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE import_id = @import_id
	`, s.table(csvImportsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "import_id", Value: id},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteCSVImport: %w", err)
	}
	return nil
}
