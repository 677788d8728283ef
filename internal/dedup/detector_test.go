package dedup

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/pennyledger/internal/domain"
)

func d(y int, m time.Month, day int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: day}
}

func TestIsDuplicate_ReferenceMatchWins(t *testing.T) {
	stored := []domain.Transaction{
		{
			Date:              d(2024, time.January, 5),
			Description:       "COFFEE SHOP",
			Amount:            4.50,
			ExternalReference: "REF-001",
		},
	}
	det := NewDetector(stored)

	// Same reference, completely different date/amount/description.
	c := Candidate{
		Date:              d(2024, time.March, 20),
		Description:       "SOMETHING ELSE ENTIRELY",
		Amount:            999.99,
		ExternalReference: "REF-001",
	}
	if !det.IsDuplicate(c) {
		t.Error("expected reference match to flag duplicate regardless of content")
	}
}

func TestIsDuplicate_ContentHashVariants(t *testing.T) {
	stored := []domain.Transaction{
		{
			Date:                d(2024, time.February, 1),
			Description:         "STARBUCKS STORE #123",
			ExtendedDetails:     "STARBUCKS STORE 123 SEATTLE WA",
			MerchantDisplayName: "Starbucks",
			Amount:              5.75,
		},
	}

	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{
			name: "matches raw description",
			c:    Candidate{Date: d(2024, time.February, 1), Description: "starbucks store #123", Amount: 5.75},
			want: true,
		},
		{
			name: "matches extended details variant",
			c:    Candidate{Date: d(2024, time.February, 1), Description: "STARBUCKS STORE 123 SEATTLE WA", Amount: 5.75},
			want: true,
		},
		{
			name: "matches via normalized merchant name",
			c:    Candidate{Date: d(2024, time.February, 1), Description: "SBUX 99871", MerchantDisplayName: "Starbucks", Amount: 5.75},
			want: true,
		},
		{
			name: "different date is not a hash match",
			c:    Candidate{Date: d(2024, time.February, 2), Description: "STARBUCKS STORE #123", Amount: 5.75},
			want: false,
		},
		{
			name: "different amount is not a hash match",
			c:    Candidate{Date: d(2024, time.February, 1), Description: "STARBUCKS STORE #123", Amount: 6.75},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := NewDetector(stored)
			if got := det.IsDuplicate(tt.c); got != tt.want {
				t.Errorf("IsDuplicate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate_FuzzyCounting(t *testing.T) {
	stored := []domain.Transaction{
		{
			Date:        d(2024, time.January, 5),
			Description: "GYM MEMBERSHIP",
			Amount:      42.00,
		},
	}
	det := NewDetector(stored)

	// Two batch candidates share the stored row's (date, amount) but none of
	// its text, so only the fuzzy tier can fire. The first uses up the one
	// stored slot; the second is new.
	first := Candidate{Date: d(2024, time.January, 5), Description: "YOGA STUDIO", Amount: 42.00}
	second := Candidate{Date: d(2024, time.January, 5), Description: "CLIMBING WALL", Amount: 42.00}

	if !det.IsDuplicate(first) {
		t.Error("first same-day same-amount candidate should be flagged duplicate")
	}
	if det.IsDuplicate(second) {
		t.Error("second same-day same-amount candidate should pass as new")
	}
}

func TestIsDuplicate_WithinBatch(t *testing.T) {
	det := NewDetector(nil)

	c := Candidate{
		Date:              d(2024, time.April, 2),
		Description:       "HARDWARE STORE",
		Amount:            31.10,
		ExternalReference: "ABC-9",
	}
	if det.IsDuplicate(c) {
		t.Fatal("empty store should not flag the first candidate")
	}
	det.Accept(c)

	// The identical row later in the same file must be caught, first by
	// reference, and without the reference by content hash.
	if !det.IsDuplicate(c) {
		t.Error("identical row later in the batch should be flagged duplicate")
	}

	noRef := c
	noRef.ExternalReference = ""
	if !det.IsDuplicate(noRef) {
		t.Error("identical content later in the batch should be flagged duplicate")
	}
}

func TestContentHash_NormalizesText(t *testing.T) {
	day := d(2024, time.May, 1)
	a := ContentHash(day, "Coffee   Shop", 3.50)
	b := ContentHash(day, "coffee shop", 3.5)
	if a != b {
		t.Error("hash should ignore case and whitespace runs")
	}

	c := ContentHash(day, "coffee shop", 3.51)
	if a == c {
		t.Error("hash should distinguish amounts at cent precision")
	}
}
