package classify

import (
	"testing"

	"github.com/dvloznov/pennyledger/internal/domain"
)

func TestDetectType(t *testing.T) {
	rules := DefaultRuleset()

	tests := []struct {
		name   string
		amount float64
		texts  []string
		hint   *domain.ProviderCategory
		legacy []string
		want   domain.TransactionType
	}{
		{
			name:   "transfer keyword in text",
			amount: 250,
			texts:  []string{"ONLINE TRANSFER TO SAVINGS"},
			want:   domain.TypeTransfer,
		},
		{
			name:   "transfer wins over investment",
			amount: 50,
			texts:  []string{"Robinhood Card Payment"},
			want:   domain.TypeTransfer,
		},
		{
			name:   "investment keyword in text",
			amount: 500,
			texts:  []string{"ROBINHOOD FUNDS 8d7a"},
			want:   domain.TypeInvestment,
		},
		{
			name:   "investment by provider detail",
			amount: 100,
			texts:  []string{"ACCT CONTRIBUTION"},
			hint:   &domain.ProviderCategory{Primary: "TRANSFER_OUT", Detailed: "TRANSFER_OUT_INVESTMENT_AND_RETIREMENT_FUNDS"},
			want:   domain.TypeInvestment,
		},
		{
			name:   "transfer by provider primary prefix",
			amount: 100,
			texts:  []string{"MOVE FUNDS"},
			hint:   &domain.ProviderCategory{Primary: "TRANSFER_OUT", Detailed: "TRANSFER_OUT_ACCOUNT_TRANSFER"},
			want:   domain.TypeTransfer,
		},
		{
			name:   "loan payments primary is transfer",
			amount: 300,
			texts:  []string{"MONTHLY INSTALLMENT"},
			hint:   &domain.ProviderCategory{Primary: "LOAN_PAYMENTS", Detailed: "LOAN_PAYMENTS_MORTGAGE"},
			want:   domain.TypeTransfer,
		},
		{
			name:   "income by provider primary",
			amount: -2500,
			texts:  []string{"ACME CORP PAYROLL DEP"},
			hint:   &domain.ProviderCategory{Primary: "INCOME", Detailed: "INCOME_WAGES"},
			want:   domain.TypeIncome,
		},
		{
			name:   "legacy category marks transfer",
			amount: 120,
			texts:  []string{"CHASE EPAY"},
			legacy: []string{"Credit Card", "Finance"},
			want:   domain.TypeTransfer,
		},
		{
			name:   "negative amount without hint is return",
			amount: -40.25,
			texts:  []string{"MERCHANT REFUND"},
			want:   domain.TypeReturn,
		},
		{
			name:   "positive amount without hint is expense",
			amount: 12.5,
			texts:  []string{"CORNER BODEGA"},
			want:   domain.TypeExpense,
		},
		{
			name:   "zero amount is expense",
			amount: 0,
			texts:  nil,
			want:   domain.TypeExpense,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectType(rules, tt.amount, tt.texts, tt.hint, tt.legacy)
			if got != tt.want {
				t.Errorf("DetectType() = %q, want %q", got, tt.want)
			}
		})
	}
}

// Every combination of sign and hint must land on exactly one of the five
// types; there is no error path.
func TestDetectType_Total(t *testing.T) {
	rules := DefaultRuleset()

	valid := map[domain.TransactionType]bool{
		domain.TypeExpense:    true,
		domain.TypeIncome:     true,
		domain.TypeReturn:     true,
		domain.TypeTransfer:   true,
		domain.TypeInvestment: true,
	}

	amounts := []float64{-100, -0.01, 0, 0.01, 100}
	hints := []*domain.ProviderCategory{
		nil,
		{Primary: "INCOME"},
		{Primary: "TRANSFER_IN"},
		{Primary: "UNKNOWN_PRIMARY", Detailed: "UNKNOWN"},
	}
	texts := [][]string{
		nil,
		{},
		{""},
		{"coffee shop"},
		{"wire transfer", "robinhood"},
	}

	for _, amount := range amounts {
		for _, hint := range hints {
			for _, txt := range texts {
				got := DetectType(rules, amount, txt, hint, nil)
				if !valid[got] {
					t.Fatalf("DetectType(%v, %v, %v) returned invalid type %q", amount, txt, hint, got)
				}
			}
		}
	}
}
