package ticker

import (
	"sort"
	"strings"
)

// defaultAliases remaps deprecated issuer codes to their current symbols.
// TRPL was renamed to ISAE after the issuer's corporate rebranding.
var defaultAliases = map[string]string{
	"TRPL3": "ISAE3",
	"TRPL4": "ISAE4",
}

// Normalizer canonicalizes raw B3 asset codes. It is pure and total:
// unrecognized inputs pass through unchanged, and Normalize is idempotent.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer builds a Normalizer with the built-in alias table merged
// with extra config-supplied aliases (extra wins on conflict).
func NewNormalizer(extra map[string]string) *Normalizer {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		aliases[strings.ToUpper(strings.TrimSpace(k))] = strings.ToUpper(strings.TrimSpace(v))
	}
	return &Normalizer{aliases: aliases}
}

// Normalize trims whitespace, uppercases, strips a single trailing "F"
// (the fractional-lot market marker) and applies the alias table.
// The F suffix is only stripped when it follows a digit, which is the shape
// of every fractional code (e.g. BBAS3F); this keeps Normalize idempotent
// for arbitrary input.
func (n *Normalizer) Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if len(s) >= 2 && s[len(s)-1] == 'F' && isDigit(s[len(s)-2]) {
		s = s[:len(s)-1]
	}
	if canonical, ok := n.aliases[s]; ok {
		return canonical
	}
	return s
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// SortForDisplay orders tickers the way the asset picker presents them:
// plain equities first, then the "11"-suffixed codes (FIIs and units),
// each group alphabetically.
func SortForDisplay(tickers []string) []string {
	var regular, units []string
	for _, t := range tickers {
		if strings.HasSuffix(t, "11") {
			units = append(units, t)
		} else {
			regular = append(regular, t)
		}
	}
	sort.Strings(regular)
	sort.Strings(units)
	return append(regular, units...)
}
