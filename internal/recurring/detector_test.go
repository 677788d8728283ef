package recurring

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/pennyledger/internal/domain"
)

func d(y int, m time.Month, day int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: day}
}

func expense(id, merchant string, date civil.Date, amount float64) domain.Transaction {
	return domain.Transaction{
		ID:                  id,
		MerchantDisplayName: merchant,
		Date:                date,
		Amount:              amount,
		Type:                domain.TypeExpense,
	}
}

func TestDetect_MonthlySubscription(t *testing.T) {
	txs := []domain.Transaction{
		expense("t1", "Netflix", d(2024, time.January, 15), 9.99),
		expense("t2", "Netflix", d(2024, time.February, 14), 9.99),
		expense("t3", "Netflix", d(2024, time.March, 16), 10.19),
	}

	got := Detect(txs, "")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	c := got[0]
	if c.MerchantDisplayName != "Netflix" {
		t.Errorf("merchant = %q", c.MerchantDisplayName)
	}
	if c.Frequency != domain.FrequencyMonthly {
		t.Errorf("frequency = %q, want monthly", c.Frequency)
	}
	if c.LastSeenDate != d(2024, time.March, 16) {
		t.Errorf("last seen = %v", c.LastSeenDate)
	}
	if len(c.TransactionIDs) != 3 {
		t.Errorf("transaction ids = %v", c.TransactionIDs)
	}
}

func TestDetect_WeeklyAndYearly(t *testing.T) {
	txs := []domain.Transaction{
		expense("w1", "Cleaners", d(2024, time.March, 1), 30),
		expense("w2", "Cleaners", d(2024, time.March, 8), 30),
		expense("w3", "Cleaners", d(2024, time.March, 15), 30),
		expense("y1", "Domain Registrar", d(2023, time.April, 2), 12),
		expense("y2", "Domain Registrar", d(2024, time.April, 1), 12),
	}

	got := Detect(txs, "")
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	byName := map[string]Candidate{}
	for _, c := range got {
		byName[c.MerchantDisplayName] = c
	}
	if byName["Cleaners"].Frequency != domain.FrequencyWeekly {
		t.Errorf("Cleaners frequency = %q, want weekly", byName["Cleaners"].Frequency)
	}
	if byName["Domain Registrar"].Frequency != domain.FrequencyYearly {
		t.Errorf("Domain Registrar frequency = %q, want yearly", byName["Domain Registrar"].Frequency)
	}
}

func TestDetect_IrregularGapRejected(t *testing.T) {
	txs := []domain.Transaction{
		expense("t1", "Hardware Store", d(2024, time.January, 1), 45),
		expense("t2", "Hardware Store", d(2024, time.July, 19), 45), // 200 days later
	}
	if got := Detect(txs, ""); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func TestDetect_AmountDriftRejected(t *testing.T) {
	txs := []domain.Transaction{
		expense("t1", "Grocer", d(2024, time.January, 1), 20),
		expense("t2", "Grocer", d(2024, time.February, 1), 80),
	}
	if got := Detect(txs, ""); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func TestDetect_SubscriptionCategoryAutoInclude(t *testing.T) {
	sub := expense("t1", "Spotify", d(2024, time.March, 3), 11.99)
	sub.CategoryID = "cat-subs"

	got := Detect([]domain.Transaction{sub}, "cat-subs")
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}
	if got[0].Frequency != domain.FrequencyMonthly {
		t.Errorf("frequency = %q, want monthly default", got[0].Frequency)
	}
}

func TestDetect_SubscriptionCategorySkipsAmountCheck(t *testing.T) {
	a := expense("t1", "Cloud Storage", d(2024, time.January, 1), 2)
	b := expense("t2", "Cloud Storage", d(2024, time.July, 19), 90) // 200-day gap, wild amounts
	a.CategoryID = "cat-subs"

	got := Detect([]domain.Transaction{a, b}, "cat-subs")
	if len(got) != 1 {
		t.Fatalf("expected auto-included candidate, got %d", len(got))
	}
	if got[0].Frequency != domain.FrequencyMonthly {
		t.Errorf("frequency = %q, want monthly fallback", got[0].Frequency)
	}
}

func TestDetect_IgnoresNonExpenses(t *testing.T) {
	income := domain.Transaction{
		ID: "t1", MerchantDisplayName: "Employer",
		Date: d(2024, time.January, 1), Amount: -3000, Type: domain.TypeIncome,
	}
	txs := []domain.Transaction{
		income,
		expense("t2", "", d(2024, time.January, 1), 5), // no merchant, no description
	}
	if got := Detect(txs, ""); len(got) != 0 {
		t.Errorf("expected no candidates, got %+v", got)
	}
}

func TestDetect_FallsBackToDescription(t *testing.T) {
	a := expense("t1", "", d(2024, time.January, 10), 14.99)
	a.Description = "GYM MEMBERSHIP"
	b := expense("t2", "", d(2024, time.February, 9), 14.99)
	b.Description = "GYM MEMBERSHIP"

	got := Detect([]domain.Transaction{a, b}, "")
	if len(got) != 1 || got[0].MerchantDisplayName != "GYM MEMBERSHIP" {
		t.Fatalf("expected candidate keyed by description, got %+v", got)
	}
}
