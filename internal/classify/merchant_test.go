package classify

import "testing"

func TestNormalizeMerchant(t *testing.T) {
	rules := DefaultRuleset()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "known merchant rewrite",
			raw:  "AMZN MKTP US*2X4GH7",
			want: "Amazon",
		},
		{
			name: "rewrite wins over title case",
			raw:  "STARBUCKS STORE #123",
			want: "Starbucks",
		},
		{
			name: "strips trailing reference number",
			raw:  "TRINI BREAKFAST SHED #104",
			want: "Trini Breakfast Shed",
		},
		{
			name: "strips long digit run",
			raw:  "JOES HARDWARE 00048231",
			want: "Joes Hardware",
		},
		{
			name: "strips state and zip suffix",
			raw:  "CORNER BODEGA BROOKLYN NY 11201",
			want: "Corner Bodega Brooklyn",
		},
		{
			name: "collapses repeated whitespace",
			raw:  "LOCAL   FARM    STAND",
			want: "Local Farm Stand",
		},
		{
			name: "unknown merchant is title cased",
			raw:  "GREEN LEAF JUICE BAR",
			want: "Green Leaf Juice Bar",
		},
		{
			name: "empty input",
			raw:  "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeMerchant(rules, tt.raw)
			if got != tt.want {
				t.Errorf("NormalizeMerchant(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeMerchant_Idempotent(t *testing.T) {
	rules := DefaultRuleset()

	inputs := []string{
		"STARBUCKS STORE #123",
		"AMZN MKTP US*2X4GH7",
		"CORNER BODEGA BROOKLYN NY 11201",
		"GREEN LEAF JUICE BAR",
		"Amazon",
		"McDonald's",
		"plain text",
	}

	for _, in := range inputs {
		once := NormalizeMerchant(rules, in)
		twice := NormalizeMerchant(rules, once)
		if once != twice {
			t.Errorf("NormalizeMerchant not idempotent for %q: first %q, second %q", in, once, twice)
		}
	}
}
