// Package classify turns raw transaction text into display names, spending
// categories, and transaction types. Every function here is pure: the rule
// tables are passed in as a Ruleset value rather than read from globals, so
// callers can swap them out in tests.
package classify

import "regexp"

// Rewrite maps a case-insensitive substring of a cleaned merchant string to a
// canonical display name. First match wins.
type Rewrite struct {
	Match   string
	Display string
}

// CategoryRule associates a category name with the keywords that select it.
// Rules are evaluated in declaration order; the first keyword hit wins.
type CategoryRule struct {
	Category string
	Keywords []string
}

// Ruleset is the immutable configuration consumed by the classifiers. Build
// one at startup with DefaultRuleset and share it across calls.
type Ruleset struct {
	MerchantRewrites []Rewrite
	CategoryRules    []CategoryRule

	// ProviderPrimary maps a provider primary category (e.g. Plaid's
	// personal_finance_category.primary) to one of our category names.
	ProviderPrimary map[string]string

	TransferPatterns   []*regexp.Regexp
	InvestmentPatterns []*regexp.Regexp

	noisePatterns []*regexp.Regexp
}

// FallbackCategory is returned when no rule matches; rows landing here are
// flagged for review.
const FallbackCategory = "Other"

// SubscriptionsCategory is the auto-include signal for recurring detection.
const SubscriptionsCategory = "Subscriptions"

// DefaultRuleset returns the built-in rule tables. The returned value must be
// treated as read-only.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		MerchantRewrites:   defaultRewrites,
		CategoryRules:      defaultCategoryRules,
		ProviderPrimary:    defaultProviderPrimary,
		TransferPatterns:   transferPatterns,
		InvestmentPatterns: investmentPatterns,
		noisePatterns:      noisePatterns,
	}
}

var defaultRewrites = []Rewrite{
	{"amzn mktp", "Amazon"},
	{"amazon", "Amazon"},
	{"uber eats", "Uber Eats"},
	{"uber", "Uber"},
	{"lyft", "Lyft"},
	{"starbucks", "Starbucks"},
	{"mcdonald", "McDonald's"},
	{"dunkin", "Dunkin'"},
	{"chipotle", "Chipotle"},
	{"wal-mart", "Walmart"},
	{"walmart", "Walmart"},
	{"wm supercenter", "Walmart"},
	{"target", "Target"},
	{"costco", "Costco"},
	{"whole foods", "Whole Foods"},
	{"wholefds", "Whole Foods"},
	{"trader joe", "Trader Joe's"},
	{"kroger", "Kroger"},
	{"safeway", "Safeway"},
	{"wegmans", "Wegmans"},
	{"cvs", "CVS"},
	{"walgreens", "Walgreens"},
	{"7-eleven", "7-Eleven"},
	{"home depot", "Home Depot"},
	{"lowes", "Lowe's"},
	{"best buy", "Best Buy"},
	{"netflix", "Netflix"},
	{"spotify", "Spotify"},
	{"hulu", "Hulu"},
	{"apple.com/bill", "Apple"},
	{"applecard", "Apple Card"},
	{"google *", "Google"},
	{"doordash", "DoorDash"},
	{"grubhub", "Grubhub"},
	{"venmo", "Venmo"},
	{"paypal", "PayPal"},
	{"zelle", "Zelle"},
	{"shell oil", "Shell"},
	{"chevron", "Chevron"},
	{"exxonmobil", "Exxon"},
	{"southwes", "Southwest Airlines"},
	{"delta air", "Delta Air Lines"},
	{"united airlines", "United Airlines"},
	{"airbnb", "Airbnb"},
	{"planet fit", "Planet Fitness"},
	{"comcast", "Comcast"},
	{"xfinity", "Comcast"},
	{"t-mobile", "T-Mobile"},
	{"verizon", "Verizon"},
	{"geico", "GEICO"},
	{"usaa", "USAA"},
	{"robinhood", "Robinhood"},
	{"coinbase", "Coinbase"},
}

// Keyword order matters: Dining precedes Shopping so "STARBUCKS STORE"
// resolves to Dining even though Starbucks sells merchandise.
var defaultCategoryRules = []CategoryRule{
	{"Dining", []string{
		"starbucks", "mcdonald", "chipotle", "dunkin", "restaurant", "cafe",
		"coffee", "pizza", "taco", "burger", "sushi", "grill", "diner",
		"bakery", "doordash", "grubhub", "uber eats", "seamless", "deli",
	}},
	{"Groceries", []string{
		"grocery", "supermarket", "whole foods", "wholefds", "trader joe",
		"safeway", "kroger", "aldi", "wegmans", "publix", "food lion",
		"market", "costco whse", "sams club",
	}},
	{"Transportation", []string{
		"uber", "lyft", "taxi", "transit", "metro", "mta", "parking",
		"shell", "chevron", "exxon", "sunoco", "fuel", "gas station", "toll",
		"ezpass", "e-zpass",
	}},
	{"Travel", []string{
		"airline", "airways", "delta air", "united", "southwes", "jetblue",
		"american air", "hotel", "airbnb", "marriott", "hilton", "hyatt",
		"expedia", "booking.com", "amtrak",
	}},
	{"Subscriptions", []string{
		"netflix", "spotify", "hulu", "disney plus", "disneyplus", "hbo",
		"apple.com/bill", "audible", "prime video", "patreon", "youtube",
		"subscription", "membership",
	}},
	{"Entertainment", []string{
		"cinema", "movie", "theater", "theatre", "ticketmaster", "stubhub",
		"steam", "playstation", "nintendo", "xbox", "concert", "bowling",
	}},
	{"Utilities", []string{
		"electric", "edison", "pg&e", "national grid", "water bill", "sewer",
		"gas bill", "internet", "comcast", "xfinity", "verizon", "t-mobile",
		"at&t", "spectrum", "utility",
	}},
	{"Housing", []string{
		"rent", "mortgage", "hoa", "landlord", "apartment", "property mgmt",
	}},
	{"Health", []string{
		"pharmacy", "cvs", "walgreens", "rite aid", "doctor", "dental",
		"medical", "clinic", "hospital", "optometr", "vision", "urgent care",
	}},
	{"Insurance", []string{
		"insurance", "geico", "allstate", "progressive", "state farm", "usaa",
	}},
	{"Education", []string{
		"tuition", "university", "college", "udemy", "coursera", "school",
	}},
	{"Personal Care", []string{
		"salon", "barber", "spa ", "gym", "fitness", "planet fit", "equinox",
	}},
	{"Shopping", []string{
		"amazon", "amzn", "walmart", "wal-mart", "target", "best buy", "ebay",
		"etsy", "nike", "ikea", "home depot", "lowes", "macys", "nordstrom",
		"7-eleven", "dollar tree", "dollar general",
	}},
	{"Fees", []string{
		"overdraft", "service charge", "atm fee", "late fee", "annual fee",
		"interest charge", "finance charge", "monthly fee",
	}},
}

// defaultProviderPrimary maps provider primary categories to our names.
// Transfer- and loan-shaped primaries are intentionally absent: the type
// detector routes those rows away from category classification entirely.
var defaultProviderPrimary = map[string]string{
	"FOOD_AND_DRINK":      "Dining",
	"GENERAL_MERCHANDISE": "Shopping",
	"TRANSPORTATION":      "Transportation",
	"TRAVEL":              "Travel",
	"RENT_AND_UTILITIES":  "Utilities",
	"MEDICAL":             "Health",
	"PERSONAL_CARE":       "Personal Care",
	"ENTERTAINMENT":       "Entertainment",
	"HOME_IMPROVEMENT":    "Housing",
	"BANK_FEES":           "Fees",
	"GENERAL_SERVICES":    "Other",
	"INCOME":              "Income",
}

var transferPatterns = compileAll(
	`transfer`,
	`\bxfer\b`,
	`zelle`,
	`venmo`,
	`\bpaypal\b`,
	`cash app`,
	`autopay`,
	`auto pay`,
	`bill ?pay`,
	`\bach\b`,
	`wire (in|out|trans)`,
	`direct debit`,
	`\bpayment\b`,
	`\bpymt\b`,
	`e-?payment`,
	`check paid`,
)

var investmentPatterns = compileAll(
	`robinhood`,
	`coinbase`,
	`fidelity`,
	`vanguard`,
	`schwab`,
	`e\*?trade`,
	`webull`,
	`td ameritrade`,
	`betterment`,
	`wealthfront`,
	`acorns`,
	`\bcrypto\b`,
	`binance`,
	`kraken`,
	`interactive brokers`,
)

// noisePatterns strip statement boilerplate from the tail of a description.
// Applied repeatedly until the string stops changing.
var noisePatterns = compileAll(
	`\s*[#*-]\s*\d+$`,        // trailing reference markers: #1234, *1234, -1234
	`\s+\d{4,}$`,             // long digit runs
	`\s+x{2,}\d*$`,           // masked card digits: xxxx1234 remnants
	`\s+\d{5}(-\d{4})?$`,     // ZIP codes
	`\s+(pos|deb|debit card|card) (purchase|debit)$`,
	`\s+(money (in|out)).*$`, // provider boilerplate suffixes
	`\s+web id[:.]?\s*\S*$`,
	`\s+ppd id[:.]?\s*\S*$`,
	`\s+ref[:.]?\s*\S+$`,
)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

// usStates covers the trailing two-letter state suffix strip in the merchant
// normalizer. Only exact uppercase codes at end-of-string are removed.
var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true,
	"CT": true, "DE": true, "FL": true, "GA": true, "HI": true, "ID": true,
	"IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true,
	"ME": true, "MD": true, "MA": true, "MI": true, "MN": true, "MS": true,
	"MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true,
	"OR": true, "PA": true, "RI": true, "SC": true, "SD": true, "TN": true,
	"TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true,
	"WI": true, "WY": true, "DC": true,
}
