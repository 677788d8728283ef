// Package recurring finds subscription-like charge patterns in an account's
// transaction history. Detection is a full recompute over the history: callers
// upsert the returned candidates and deactivate anything previously detected
// that no longer appears.
package recurring

import (
	"math"
	"sort"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// Cadence day-gap bands. A merchant's average gap between consecutive charges
// must fall inside one of these to count as recurring.
const (
	weeklyMinDays  = 5
	weeklyMaxDays  = 10
	monthlyMinDays = 25
	monthlyMaxDays = 35
	yearlyMinDays  = 350
	yearlyMaxDays  = 380

	// Charges may drift by this fraction of the group's average amount.
	amountTolerance = 0.10
)

// Candidate is one detected recurring charge, ready to upsert.
type Candidate struct {
	MerchantDisplayName string
	AverageAmount       float64
	Frequency           domain.RecurringFrequency
	LastSeenDate        civil.Date
	TransactionIDs      []string
}

// Detect groups expense transactions by merchant display name and reports the
// groups that look like recurring charges.
//
// A group qualifies when it has at least two charges of similar amount whose
// average spacing lands in a weekly, monthly, or yearly band. Transactions
// already categorized as subscriptions are trusted: a single charge is enough
// and the amount check is skipped, defaulting to a monthly cadence when the
// spacing is inconclusive.
func Detect(transactions []domain.Transaction, subscriptionCategoryID string) []Candidate {
	groups := make(map[string][]domain.Transaction)
	for _, tx := range transactions {
		if tx.Type != domain.TypeExpense {
			continue
		}
		key := tx.MerchantDisplayName
		if key == "" {
			key = tx.Description
		}
		if key == "" {
			continue
		}
		groups[key] = append(groups[key], tx)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []Candidate
	for _, name := range names {
		if c, ok := evaluateGroup(name, groups[name], subscriptionCategoryID); ok {
			out = append(out, c)
		}
	}
	return out
}

func evaluateGroup(name string, txs []domain.Transaction, subscriptionCategoryID string) (Candidate, bool) {
	autoInclude := false
	if subscriptionCategoryID != "" {
		for _, tx := range txs {
			if tx.CategoryID == subscriptionCategoryID {
				autoInclude = true
				break
			}
		}
	}

	if len(txs) < 2 && !autoInclude {
		return Candidate{}, false
	}

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})

	var sum float64
	for _, tx := range txs {
		sum += tx.Amount
	}
	avg := sum / float64(len(txs))

	if !autoInclude {
		for _, tx := range txs {
			if math.Abs(tx.Amount-avg) > amountTolerance*math.Abs(avg) {
				return Candidate{}, false
			}
		}
	}

	freq, ok := cadence(txs)
	if !ok {
		if !autoInclude {
			return Candidate{}, false
		}
		freq = domain.FrequencyMonthly
	}

	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}

	return Candidate{
		MerchantDisplayName: name,
		AverageAmount:       avg,
		Frequency:           freq,
		LastSeenDate:        txs[len(txs)-1].Date,
		TransactionIDs:      ids,
	}, true
}

// cadence classifies the average gap between consecutive charges. Groups with
// a single charge have no gaps and report no cadence.
func cadence(txs []domain.Transaction) (domain.RecurringFrequency, bool) {
	if len(txs) < 2 {
		return "", false
	}

	var totalDays int
	for i := 1; i < len(txs); i++ {
		totalDays += txs[i].Date.DaysSince(txs[i-1].Date)
	}
	avgGap := float64(totalDays) / float64(len(txs)-1)

	switch {
	case avgGap >= weeklyMinDays && avgGap <= weeklyMaxDays:
		return domain.FrequencyWeekly, true
	case avgGap >= monthlyMinDays && avgGap <= monthlyMaxDays:
		return domain.FrequencyMonthly, true
	case avgGap >= yearlyMinDays && avgGap <= yearlyMaxDays:
		return domain.FrequencyYearly, true
	}
	return "", false
}
