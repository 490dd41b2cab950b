package tabular

import "strings"

// naTokens mirrors the strings spreadsheet tooling conventionally treats as
// missing values.
var naTokens = map[string]struct{}{
	"":         {},
	"#N/A":     {},
	"#N/A N/A": {},
	"#NA":      {},
	"-NaN":     {},
	"-nan":     {},
	"N/A":      {},
	"n/a":      {},
	"NA":       {},
	"NULL":     {},
	"null":     {},
	"NaN":      {},
	"nan":      {},
	"None":     {},
	"<NA>":     {},
}

// Normalize trims a raw cell and reports whether it holds a value. Excel
// text-forcing wrappers (="0123") are unwrapped.
func Normalize(raw string) (string, bool) {
	v := strings.TrimSpace(strings.ReplaceAll(raw, "\u00a0", " "))
	if len(v) >= 3 && strings.HasPrefix(v, `="`) && strings.HasSuffix(v, `"`) {
		v = strings.TrimSpace(v[2 : len(v)-1])
	}
	if _, na := naTokens[v]; na {
		return "", false
	}
	return v, true
}
