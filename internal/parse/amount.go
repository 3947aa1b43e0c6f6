package parse

import (
	"strconv"
	"strings"

	"github.com/kozeni/kozeni/internal/normalize"
)

// minus signs accepted as a negative marker: ASCII, Unicode minus, and the
// full-width form.
const minusSigns = "-−－"

// strippable characters: currency glyphs, thousands separators, whitespace
// (including NBSP and the full-width space), quote characters, parentheses,
// and sign characters. A decimal point is deliberately NOT strippable:
// amounts are integral in the smallest currency unit, so "1.5" is invalid
// rather than 15.
const strippable = "¥￥円$＄€,，+＋'\"()（） \t 　" + minusSigns

// Amount parses a signed integer amount in the smallest currency unit.
// Negativity is detected from a leading minus sign or full parenthesization
// before any symbol stripping; after stripping, the remainder must be a pure
// digit sequence.
func Amount(text string) (int64, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, false
	}

	neg := IsNegative(s)

	var digits strings.Builder
	for _, r := range normalize.Digits(s) {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case strings.ContainsRune(strippable, r):
			// dropped
		default:
			return 0, false
		}
	}

	if digits.Len() == 0 {
		return 0, false
	}

	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		v = -v
	}
	return v, true
}

// IsNegative reports whether the text denotes a negative amount, without
// fully parsing it. Accounting-style full parenthesization counts as
// negative.
func IsNegative(text string) bool {
	s := strings.TrimSpace(text)
	if s == "" {
		return false
	}

	for _, sign := range minusSigns {
		if strings.HasPrefix(s, string(sign)) {
			return true
		}
	}

	open := strings.HasPrefix(s, "(") || strings.HasPrefix(s, "（")
	closed := strings.HasSuffix(s, ")") || strings.HasSuffix(s, "）")
	return open && closed
}
