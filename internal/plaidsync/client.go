// Package plaidsync adapts Plaid's transactions/sync API to the ingestion
// service's Provider interface.
package plaidsync

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/civil"
	"github.com/plaid/plaid-go/v32/plaid"

	"github.com/dvloznov/pennyledger/internal/domain"
	"github.com/dvloznov/pennyledger/internal/ingest"
)

const pageSize = 500

// additionalConsentCode is Plaid's error code for items that need the user to
// re-consent before transactions can be pulled.
const additionalConsentCode = "ADDITIONAL_CONSENT_REQUIRED"

// Client wraps a Plaid API client as an ingest.Provider.
type Client struct {
	api *plaid.APIClient
}

// New builds a Client from PLAID_CLIENT_ID, PLAID_SECRET, and PLAID_ENV
// ("sandbox" or "production"; sandbox by default).
func New() *Client {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", os.Getenv("PLAID_CLIENT_ID"))
	configuration.AddDefaultHeader("PLAID-SECRET", os.Getenv("PLAID_SECRET"))
	env := plaid.Sandbox
	if os.Getenv("PLAID_ENV") == "production" {
		env = plaid.Production
	}
	configuration.UseEnvironment(env)
	return &Client{api: plaid.NewAPIClient(configuration)}
}

// NewWithAPIClient wraps an already configured Plaid client.
func NewWithAPIClient(api *plaid.APIClient) *Client {
	return &Client{api: api}
}

// SyncTransactions fetches one page of transaction changes for the item
// identified by accessToken.
func (c *Client) SyncTransactions(ctx context.Context, accessToken, cursor string) (ingest.SyncPage, error) {
	req := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		req.SetCursor(cursor)
	}
	req.SetCount(pageSize)

	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*req).Execute()
	if err != nil {
		if plaidErr, convErr := plaid.ToPlaidError(err); convErr == nil && plaidErr.ErrorCode == additionalConsentCode {
			return ingest.SyncPage{}, ingest.ErrAdditionalConsentRequired
		}
		return ingest.SyncPage{}, fmt.Errorf("SyncTransactions: %w", err)
	}

	page := ingest.SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, tx := range resp.GetAdded() {
		row, err := toRawInput(tx)
		if err != nil {
			return ingest.SyncPage{}, fmt.Errorf("SyncTransactions: added %s: %w", tx.GetTransactionId(), err)
		}
		page.Added = append(page.Added, row)
	}
	for _, tx := range resp.GetModified() {
		row, err := toRawInput(tx)
		if err != nil {
			return ingest.SyncPage{}, fmt.Errorf("SyncTransactions: modified %s: %w", tx.GetTransactionId(), err)
		}
		page.Modified = append(page.Modified, row)
	}
	for _, removed := range resp.GetRemoved() {
		page.RemovedIDs = append(page.RemovedIDs, removed.GetTransactionId())
	}
	return page, nil
}

// toRawInput maps a Plaid transaction to the pipeline's input shape. Plaid's
// amount sign convention matches ours: positive is money leaving the account.
func toRawInput(tx plaid.Transaction) (domain.RawTransactionInput, error) {
	date, err := civil.ParseDate(tx.GetDate())
	if err != nil {
		return domain.RawTransactionInput{}, fmt.Errorf("parsing date %q: %w", tx.GetDate(), err)
	}

	row := domain.RawTransactionInput{
		Date:                  date,
		Description:           tx.GetName(),
		Amount:                tx.GetAmount(),
		ExtendedDetails:       tx.GetOriginalDescription(),
		ProviderTransactionID: tx.GetTransactionId(),
		Pending:               tx.GetPending(),
	}
	if pfc, ok := tx.GetPersonalFinanceCategoryOk(); ok && pfc != nil {
		row.ProviderCategory = &domain.ProviderCategory{
			Primary:  pfc.GetPrimary(),
			Detailed: pfc.GetDetailed(),
		}
	}
	return row, nil
}
