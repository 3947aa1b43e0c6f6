// Package normalize canonicalizes strings for matching and searching.
// Every comparison in the import pipeline goes through Normalize on both
// sides, so matching is insensitive to case, character width, long-vowel
// mark variants, and whitespace runs.
package normalize

import (
	"strings"

	"golang.org/x/text/width"
)

// dashFoldings maps the long-vowel mark and the various dash code points to
// a single ASCII hyphen. Bank and card exports mix these freely.
var dashFoldings = map[rune]rune{
	'ー': '-', // katakana-hiragana prolonged sound mark
	'ｰ': '-', // half-width prolonged sound mark
	'−': '-', // minus sign
	'–': '-', // en dash
	'—': '-', // em dash
	'―': '-', // horizontal bar
	'‐': '-', // hyphen
	'‑': '-', // non-breaking hyphen
	'─': '-', // box drawing light horizontal
}

// Normalize canonicalizes text for matching. It is idempotent:
// Normalize(Normalize(x)) == Normalize(x).
func Normalize(text string) string {
	if text == "" {
		return ""
	}

	// Full-width alphanumerics and punctuation to half-width.
	folded := width.Fold.String(text)

	folded = strings.Map(func(r rune) rune {
		if to, ok := dashFoldings[r]; ok {
			return to
		}
		return r
	}, folded)

	folded = strings.ToLower(folded)

	// Collapse whitespace runs (including full-width and non-breaking
	// spaces) to a single ASCII space and trim.
	return strings.Join(strings.Fields(folded), " ")
}

// Digits converts only full-width decimal digits to their ASCII
// equivalents, leaving everything else untouched. Date parsing uses this
// instead of Normalize because full folding is lossy for separators.
func Digits(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '０' && r <= '９' {
			return '0' + (r - '０')
		}
		return r
	}, text)
}
