package classify

import (
	"strings"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// CategoryResult is the outcome of category classification.
type CategoryResult struct {
	CategoryName string
	NeedsReview  bool
}

// ClassifyCategory assigns a spending category to an expense or return row.
//
// Priority order, first applicable wins:
//  1. a merchant mapping for the exact raw merchant string with a default
//     category (passed in by the caller as an already-resolved name),
//  2. a provider category hint that maps through the provider table,
//  3. the ordered keyword table, matched by lowercase substring containment
//     over description and extended details,
//  4. fallback "Other" with NeedsReview set.
//
// Callers must not invoke this for transfer/income/investment rows; those
// types bypass pattern classification at ingestion.
func ClassifyCategory(rules *Ruleset, description, extendedDetails string, hint *domain.ProviderCategory, mappedCategory string) CategoryResult {
	if mappedCategory != "" {
		return CategoryResult{CategoryName: mappedCategory}
	}

	if hint != nil {
		if name, ok := rules.ProviderPrimary[strings.ToUpper(strings.TrimSpace(hint.Primary))]; ok {
			if strings.Contains(strings.ToUpper(hint.Detailed), "SUBSCRIPTION") {
				return CategoryResult{CategoryName: SubscriptionsCategory}
			}
			return CategoryResult{CategoryName: name}
		}
	}

	desc := strings.ToLower(description)
	details := strings.ToLower(extendedDetails)
	for _, rule := range rules.CategoryRules {
		for _, kw := range rule.Keywords {
			if strings.Contains(desc, kw) || (details != "" && strings.Contains(details, kw)) {
				return CategoryResult{CategoryName: rule.Category}
			}
		}
	}

	return CategoryResult{CategoryName: FallbackCategory, NeedsReview: true}
}
