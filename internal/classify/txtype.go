package classify

import (
	"strings"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// legacyTransferMarkers match the category strings older provider payloads
// carried before personal-finance categories existed.
var legacyTransferMarkers = []string{"Transfer", "Payment", "Credit Card", "Loan Payments"}

// transferPrimaryPrefixes mark provider primary categories that indicate
// account-to-account movement or loan payments.
var transferPrimaryPrefixes = []string{"TRANSFER_", "LOAN_PAYMENTS"}

// DetectType classifies a transaction as one of the five transaction types.
//
// The decision is priority-ordered and short-circuits at the first match:
// transfer text patterns, investment text patterns, investment provider
// detail, transfer provider primary, income provider primary, legacy transfer
// category strings, then the amount sign. Transfer is deliberately checked
// before investment, so a brokerage row carrying payment boilerplate always
// lands as transfer.
//
// Total over its domain: every input yields exactly one type and the function
// never fails.
func DetectType(rules *Ruleset, amount float64, texts []string, hint *domain.ProviderCategory, legacyCategories []string) domain.TransactionType {
	for _, t := range texts {
		if t == "" {
			continue
		}
		for _, re := range rules.TransferPatterns {
			if re.MatchString(t) {
				return domain.TypeTransfer
			}
		}
	}

	for _, t := range texts {
		if t == "" {
			continue
		}
		for _, re := range rules.InvestmentPatterns {
			if re.MatchString(t) {
				return domain.TypeInvestment
			}
		}
	}

	if hint != nil {
		detailed := strings.ToUpper(hint.Detailed)
		if strings.Contains(detailed, "INVESTMENT") || strings.Contains(detailed, "RETIREMENT") {
			return domain.TypeInvestment
		}

		primary := strings.ToUpper(strings.TrimSpace(hint.Primary))
		for _, prefix := range transferPrimaryPrefixes {
			if strings.HasPrefix(primary, prefix) {
				return domain.TypeTransfer
			}
		}
		if primary == "INCOME" {
			return domain.TypeIncome
		}
	}

	for _, legacy := range legacyCategories {
		for _, marker := range legacyTransferMarkers {
			if strings.Contains(strings.ToLower(legacy), strings.ToLower(marker)) {
				return domain.TypeTransfer
			}
		}
	}

	if amount < 0 {
		return domain.TypeReturn
	}
	return domain.TypeExpense
}
