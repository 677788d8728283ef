package csvimport

import (
	"errors"
	"testing"
)

func TestDetectFormat_CanonicalHeaders(t *testing.T) {
	cols, err := DetectFormat([]string{"Date", "Description", "Amount", "Extended Details", "Reference"})
	if err != nil {
		t.Fatalf("DetectFormat returned error: %v", err)
	}
	want := ColumnMap{Date: 0, Description: 1, Amount: 2, ExtendedDetails: 3, Reference: 4}
	if cols != want {
		t.Errorf("got %+v, want %+v", cols, want)
	}
}

func TestDetectFormat_AlternateHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    ColumnMap
	}{
		{
			name:    "chase style",
			headers: []string{"Trans Date", "Post Date", "Merchant Name", "Debit"},
			want:    ColumnMap{Date: 0, Description: 2, Amount: 3, ExtendedDetails: -1, Reference: -1},
		},
		{
			name:    "original description maps to extended details",
			headers: []string{"Date", "Description", "Original Description", "Amount"},
			want:    ColumnMap{Date: 0, Description: 1, Amount: 3, ExtendedDetails: 2, Reference: -1},
		},
		{
			name:    "reference number column",
			headers: []string{"Posting Date", "Payee", "Value", "Ref No"},
			want:    ColumnMap{Date: 0, Description: 1, Amount: 2, ExtendedDetails: -1, Reference: 3},
		},
		{
			name:    "bom and casing",
			headers: []string{"\uFEFFDATE", " description ", "AMOUNT"},
			want:    ColumnMap{Date: 0, Description: 1, Amount: 2, ExtendedDetails: -1, Reference: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := DetectFormat(tt.headers)
			if err != nil {
				t.Fatalf("DetectFormat(%v) returned error: %v", tt.headers, err)
			}
			if cols != tt.want {
				t.Errorf("DetectFormat(%v) = %+v, want %+v", tt.headers, cols, tt.want)
			}
		})
	}
}

func TestDetectFormat_Unrecognized(t *testing.T) {
	headers := []string{"foo", "bar", "baz"}
	_, err := DetectFormat(headers)

	var ufe *UnrecognizedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected *UnrecognizedFormatError, got %v", err)
	}
	if len(ufe.Headers) != 3 {
		t.Errorf("error should carry the offending headers, got %v", ufe.Headers)
	}
}

func TestDetectFormat_MissingAmount(t *testing.T) {
	_, err := DetectFormat([]string{"Date", "Description"})

	var ufe *UnrecognizedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("expected *UnrecognizedFormatError, got %v", err)
	}
}
