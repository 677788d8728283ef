// Package csvimport infers the column layout of arbitrary bank-exported CSV
// files and parses their rows into canonical transaction inputs.
package csvimport

import (
	"regexp"
	"strings"
)

// ColumnMap holds the resolved column index for each field the importer
// consumes. -1 marks an absent optional column.
type ColumnMap struct {
	Date            int
	Description     int
	Amount          int
	ExtendedDetails int
	Reference       int
}

// Alternate header spellings seen across bank exports. Tried only when the
// exact canonical names are missing.
var (
	dateHeaderRe      = regexp.MustCompile(`(?i)^(trans(action)?[ _.-]*date|post(ed|ing)?[ _.-]*date|date)$`)
	descHeaderRe      = regexp.MustCompile(`(?i)(description|merchant|payee|memo|name|narrative|details)`)
	amountHeaderRe    = regexp.MustCompile(`(?i)(amount|debit|credit|charge|value)`)
	referenceHeaderRe = regexp.MustCompile(`(?i)(^ref(erence)?([ _.-]*(no|number|#))?$|transaction[ _.-]*id|confirmation)`)
	extendedHeaderRe  = regexp.MustCompile(`(?i)(extended|original|full)[ _.-]*(details|description)`)
)

// DetectFormat maps a CSV header row to a ColumnMap.
//
// Canonical headers ("date", "description", "amount", plus optional
// "extended details" and "reference") are matched exactly, case-insensitive.
// Anything else falls back to regex matching against common alternate names.
// Returns *UnrecognizedFormatError when no complete mapping can be formed.
func DetectFormat(headers []string) (ColumnMap, error) {
	cols := ColumnMap{Date: -1, Description: -1, Amount: -1, ExtendedDetails: -1, Reference: -1}

	norm := make([]string, len(headers))
	for i, h := range headers {
		norm[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
	}

	// Pass 1: exact canonical names.
	for i, h := range norm {
		switch h {
		case "date":
			cols.Date = i
		case "description":
			cols.Description = i
		case "amount":
			cols.Amount = i
		case "extended details":
			cols.ExtendedDetails = i
		case "reference":
			cols.Reference = i
		}
	}

	// Pass 2: alternate spellings for whatever pass 1 left unmapped. Runs
	// even when the required trio resolved, so optional columns under
	// alternate names still map.
	for i, h := range norm {
		switch {
		case cols.Date < 0 && dateHeaderRe.MatchString(h):
			cols.Date = i
		case cols.ExtendedDetails < 0 && extendedHeaderRe.MatchString(h):
			cols.ExtendedDetails = i
		case cols.Description < 0 && descHeaderRe.MatchString(h):
			cols.Description = i
		case cols.Amount < 0 && amountHeaderRe.MatchString(h):
			cols.Amount = i
		case cols.Reference < 0 && referenceHeaderRe.MatchString(h):
			cols.Reference = i
		}
	}
	if cols.complete() {
		return cols, nil
	}

	return ColumnMap{}, &UnrecognizedFormatError{Headers: headers}
}

func (c ColumnMap) complete() bool {
	return c.Date >= 0 && c.Description >= 0 && c.Amount >= 0
}
