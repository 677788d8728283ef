package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/pennyledger/internal/domain"
)

// RowError records a single skipped row. Row numbers are 1-based and count
// data rows, not the header.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("Row %d: %v", e.Row, e.Err)
}

// ParseStatement reads an entire CSV statement: header detection, then row
// parsing. Rows that fail to parse are skipped and reported in the second
// return value; only a missing/unmappable header or an empty file fails the
// whole call.
func ParseStatement(r io.Reader) ([]domain.RawTransactionInput, []RowError, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, &EmptyFileError{}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("ParseStatement: reading header: %w", err)
	}

	cols, err := DetectFormat(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows     []domain.RawTransactionInput
		rowErrs  []RowError
		rowIndex int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowIndex++
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: rowIndex, Err: err})
			continue
		}

		row, err := parseRow(cols, record)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: rowIndex, Err: err})
			continue
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 && len(rowErrs) == 0 {
		return nil, nil, &EmptyFileError{}
	}
	return rows, rowErrs, nil
}

func parseRow(cols ColumnMap, record []string) (domain.RawTransactionInput, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	date, err := ParseDate(field(cols.Date))
	if err != nil {
		return domain.RawTransactionInput{}, err
	}

	amount, err := ParseAmount(field(cols.Amount))
	if err != nil {
		return domain.RawTransactionInput{}, err
	}

	return domain.RawTransactionInput{
		Date:              date,
		Description:       field(cols.Description),
		Amount:            amount,
		ExtendedDetails:   field(cols.ExtendedDetails),
		ExternalReference: field(cols.Reference),
	}, nil
}

var (
	usDateSlashRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`)
	usDateDashRe  = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`)
	isoDateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// genericDateLayouts are tried last, in order.
var genericDateLayouts = []string{
	"2006/01/02",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 Jan 2006",
	"01/02/06",
	time.RFC3339,
}

// ParseDate converts the date encodings seen in bank exports to a calendar
// date: US MM/DD/YYYY and MM-DD-YYYY, ISO YYYY-MM-DD, then a short list of
// generic layouts. Failures return *UnparsableDateError naming the input.
func ParseDate(raw string) (civil.Date, error) {
	s := strings.TrimSpace(raw)

	var layout string
	switch {
	case usDateSlashRe.MatchString(s):
		layout = "1/2/2006"
	case usDateDashRe.MatchString(s):
		layout = "1-2-2006"
	case isoDateRe.MatchString(s):
		layout = "2006-01-02"
	}
	if layout != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return civil.Date{}, &UnparsableDateError{Raw: raw}
		}
		return civil.DateOf(t), nil
	}

	for _, l := range genericDateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, &UnparsableDateError{Raw: raw}
}

var amountCleaner = strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "")

// ParseAmount converts a currency string to a signed float. Parenthesized
// values (accounting notation) and a leading minus both negate; either signal
// alone is enough and combining them does not double-negate.
func ParseAmount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, &UnparsableAmountError{Raw: raw}
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	s = amountCleaner.Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimPrefix(s, "-")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &UnparsableAmountError{Raw: raw}
	}
	if negative {
		v = -v
	}
	return v, nil
}
