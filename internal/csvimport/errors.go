package csvimport

import (
	"fmt"
	"strings"
)

// UnrecognizedFormatError means the CSV header row could not be mapped to
// the columns the importer needs. It is fatal for the whole file: without a
// column mapping no row can be parsed. The header list is kept for
// diagnostics.
type UnrecognizedFormatError struct {
	Headers []string
}

func (e *UnrecognizedFormatError) Error() string {
	return fmt.Sprintf("unrecognized CSV format: headers [%s] do not contain a date, description and amount column", strings.Join(e.Headers, ", "))
}

// UnparsableDateError is a row-level failure: the row is skipped, the batch
// continues.
type UnparsableDateError struct {
	Raw string
}

func (e *UnparsableDateError) Error() string {
	return fmt.Sprintf("unparsable date %q", e.Raw)
}

// UnparsableAmountError is a row-level failure: the row is skipped, the
// batch continues.
type UnparsableAmountError struct {
	Raw string
}

func (e *UnparsableAmountError) Error() string {
	return fmt.Sprintf("unparsable amount %q", e.Raw)
}

// EmptyFileError means the file held no parseable transaction rows at all.
type EmptyFileError struct{}

func (e *EmptyFileError) Error() string {
	return "CSV file contains no transaction rows"
}
