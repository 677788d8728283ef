package notionexport

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/pennyledger/internal/domain"
)

const queryPageSize = 100

// Result summarizes one export run.
type Result struct {
	Created  int
	Updated  int
	Archived int
}

// Export mirrors the recurring-charge set into the Notion database: pages are
// matched to charges by their Merchant title, updated in place, created when
// missing, and archived when the merchant no longer appears.
func Export(ctx context.Context, client NotionService, databaseID string, charges []domain.RecurringTransaction, log zerolog.Logger) (*Result, error) {
	pages, err := queryAllPages(ctx, client, databaseID)
	if err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}

	pageByMerchant := make(map[string]notionapi.Page, len(pages))
	for _, page := range pages {
		if m := pageMerchant(page); m != "" {
			pageByMerchant[m] = page
		}
	}

	result := &Result{}
	seen := make(map[string]bool, len(charges))
	for _, charge := range charges {
		seen[charge.MerchantDisplayName] = true
		props := recurringToProperties(charge)

		if page, ok := pageByMerchant[charge.MerchantDisplayName]; ok {
			if _, err := client.UpdatePage(ctx, string(page.ID), props); err != nil {
				return nil, fmt.Errorf("Export: updating %s: %w", charge.MerchantDisplayName, err)
			}
			result.Updated++
			continue
		}
		if _, err := client.CreatePage(ctx, databaseID, props); err != nil {
			return nil, fmt.Errorf("Export: creating %s: %w", charge.MerchantDisplayName, err)
		}
		result.Created++
	}

	for merchant, page := range pageByMerchant {
		if seen[merchant] {
			continue
		}
		if err := client.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().Err(err).Str("merchant", merchant).Msg("archiving stale Notion page failed")
			continue
		}
		result.Archived++
	}

	log.Info().
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("archived", result.Archived).
		Msg("notion export finished")
	return result, nil
}

func queryAllPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: queryPageSize}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}
