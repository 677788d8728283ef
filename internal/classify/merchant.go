package classify

import (
	"strings"
	"unicode"
)

// NormalizeMerchant cleans a raw statement description into a human-readable
// display name: strips trailing reference numbers, digit runs, state and ZIP
// suffixes and boilerplate, then applies the known-merchant rewrite table,
// falling back to title-casing.
//
// The function is pure and idempotent: normalizing an already-normalized name
// returns it unchanged.
func NormalizeMerchant(rules *Ruleset, raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	s = stripNoise(rules, s)
	s = collapseWhitespace(s)

	lower := strings.ToLower(s)
	for _, rw := range rules.MerchantRewrites {
		if strings.Contains(lower, rw.Match) {
			return rw.Display
		}
	}

	return titleCase(s)
}

// stripNoise removes trailing noise suffixes repeatedly until the string
// stops changing, so stacked suffixes ("#123 WA 98101") all come off.
func stripNoise(rules *Ruleset, s string) string {
	for {
		before := s
		for _, re := range rules.noisePatterns {
			s = re.ReplaceAllString(s, "")
		}
		s = strings.TrimSpace(s)
		s = stripStateSuffix(s)
		if s == before {
			return s
		}
	}
}

// stripStateSuffix drops a trailing uppercase two-letter US state code, but
// never the whole string.
func stripStateSuffix(s string) string {
	idx := strings.LastIndexByte(s, ' ')
	if idx <= 0 {
		return s
	}
	if usStates[s[idx+1:]] {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleCase uppercases the first letter of each whitespace-separated token
// and lowercases the rest.
func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		runes := []rune(strings.ToLower(f))
		for j, r := range runes {
			if unicode.IsLetter(r) {
				runes[j] = unicode.ToUpper(r)
				break
			}
		}
		fields[i] = string(runes)
	}
	return strings.Join(fields, " ")
}
