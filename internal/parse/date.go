// Package parse converts raw field text into dates and amounts. Both
// parsers are total: unparseable input yields ok=false, never an error.
package parse

import (
	"strings"
	"time"

	"github.com/kozeni/kozeni/internal/normalize"
)

// dateLayouts is tried in order; the most specific (timestamped) patterns
// come first so that "2025/07/04 12:30:00" is never truncated by a
// date-only pattern, and the US month-first order comes last because it is
// the lowest-confidence guess.
var dateLayouts = []string{
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02 15:04",
	"2006/01/02",
	"2006-01-02",
	"2006.01.02",
	"2006年01月02日",
	"20060102",
	"01/02/2006",
}

// Date parses a date field. Full-width digits are normalized first; the
// result of the first matching layout wins.
func Date(text string) (time.Time, bool) {
	s := strings.TrimSpace(normalize.Digits(text))
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
