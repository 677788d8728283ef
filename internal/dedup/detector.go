// Package dedup decides whether an incoming transaction is already present,
// either in storage or earlier in the same ingestion batch.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// Candidate is one incoming transaction under consideration.
type Candidate struct {
	Date              civil.Date
	Description       string
	Amount            float64
	ExternalReference string

	// MerchantDisplayName is the normalized merchant, used as an extra
	// content-hash variant when present.
	MerchantDisplayName string
}

// Detector applies three duplicate strategies in order: exact external
// reference, content hash over (date, description variant, cents), and a
// fuzzy (date, cents) count comparison.
//
// The fuzzy tier trades precision for recall: re-importing a statement
// period already loaded matches count-for-count, while genuinely new
// same-day same-amount charges beyond the stored count pass as new.
//
// A Detector is stateful across one batch and must be fed candidates in row
// order; it is not safe for concurrent use.
type Detector struct {
	storedRefs   map[string]bool
	storedHashes map[string]bool

	// Per (date, cents) key: how many rows storage already holds, and how
	// many batch candidates have been seen so far.
	storedByDateAmount map[string]int
	batchByDateAmount  map[string]int

	batchRefs   map[string]bool
	batchHashes map[string]bool
}

// NewDetector indexes the transactions already stored for the account.
func NewDetector(stored []domain.Transaction) *Detector {
	d := &Detector{
		storedRefs:         make(map[string]bool),
		storedHashes:       make(map[string]bool),
		storedByDateAmount: make(map[string]int),
		batchByDateAmount:  make(map[string]int),
		batchRefs:          make(map[string]bool),
		batchHashes:        make(map[string]bool),
	}

	for _, tx := range stored {
		if ref := strings.TrimSpace(tx.ExternalReference); ref != "" {
			d.storedRefs[ref] = true
		}
		// Three description variants per stored row: the raw description,
		// the extended details, and the normalized display name.
		for _, variant := range []string{tx.Description, tx.ExtendedDetails, tx.MerchantDisplayName} {
			if variant == "" {
				continue
			}
			d.storedHashes[ContentHash(tx.Date, variant, tx.Amount)] = true
		}
		d.storedByDateAmount[dateAmountKey(tx.Date, tx.Amount)]++
	}

	return d
}

// IsDuplicate reports whether the candidate duplicates a stored transaction
// or one accepted earlier in this batch. Callers must invoke it exactly once
// per row, in order: the fuzzy tier counts every candidate it sees.
func (d *Detector) IsDuplicate(c Candidate) bool {
	if ref := strings.TrimSpace(c.ExternalReference); ref != "" {
		if d.storedRefs[ref] || d.batchRefs[ref] {
			return true
		}
	}

	for _, h := range d.candidateHashes(c) {
		if d.storedHashes[h] || d.batchHashes[h] {
			return true
		}
	}

	key := dateAmountKey(c.Date, c.Amount)
	seenBefore := d.batchByDateAmount[key]
	d.batchByDateAmount[key]++
	return d.storedByDateAmount[key] > seenBefore
}

// Accept records a candidate that was kept, so later rows in the same batch
// dedupe against it.
func (d *Detector) Accept(c Candidate) {
	if ref := strings.TrimSpace(c.ExternalReference); ref != "" {
		d.batchRefs[ref] = true
	}
	for _, h := range d.candidateHashes(c) {
		d.batchHashes[h] = true
	}
}

func (d *Detector) candidateHashes(c Candidate) []string {
	hashes := []string{ContentHash(c.Date, c.Description, c.Amount)}
	if c.MerchantDisplayName != "" && c.MerchantDisplayName != c.Description {
		hashes = append(hashes, ContentHash(c.Date, c.MerchantDisplayName, c.Amount))
	}
	return hashes
}

// ContentHash builds the content-hash key for one description variant:
// SHA-256 over the date, the lowercased whitespace-collapsed description,
// and the amount rounded to cents.
func ContentHash(date civil.Date, description string, amount float64) string {
	norm := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d", date.String(), norm, roundToCents(amount)))
	return hex.EncodeToString(sum[:])
}

func dateAmountKey(date civil.Date, amount float64) string {
	return fmt.Sprintf("%s|%d", date.String(), roundToCents(amount))
}

func roundToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
