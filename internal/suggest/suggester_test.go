package suggest

import "testing"

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "raw json untouched",
			raw:  `[{"transaction_id":"t1","category":"Dining","merchant":"Starbucks"}]`,
			want: `[{"transaction_id":"t1","category":"Dining","merchant":"Starbucks"}]`,
		},
		{
			name: "json fences stripped",
			raw:  "```json\n[{\"transaction_id\":\"t1\"}]\n```",
			want: `[{"transaction_id":"t1"}]`,
		},
		{
			name: "bare fences stripped",
			raw:  "```\n[]\n```",
			want: `[]`,
		},
		{
			name: "leading prose dropped",
			raw:  "Here are the suggestions:\n[{\"transaction_id\":\"t1\"}]\nHope this helps!",
			want: `[{"transaction_id":"t1"}]`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
