package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate(t *testing.T) {
	want := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"slash separated", "2025/07/04", want, true},
		{"dash separated", "2025-07-04", want, true},
		{"compact", "20250704", want, true},
		{"dot separated", "2025.07.04", want, true},
		{"kanji separated", "2025年07月04日", want, true},
		{"full-width digits", "２０２５/０７/０４", want, true},
		{"with timestamp", "2025/07/04 12:30:45", time.Date(2025, 7, 4, 12, 30, 45, 0, time.UTC), true},
		{"with short timestamp", "2025-07-04 12:30", time.Date(2025, 7, 4, 12, 30, 0, 0, time.UTC), true},
		{"US month first", "07/04/2025", want, true},
		{"surrounding whitespace", "  2025/07/04  ", want, true},
		{"empty", "", time.Time{}, false},
		{"garbage", "not a date", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.input)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDateSameCalendarDay(t *testing.T) {
	a, ok := Date("2025/07/04")
	require.True(t, ok)
	b, ok := Date("2025-07-04")
	require.True(t, ok)
	c, ok := Date("20250704")
	require.True(t, ok)

	assert.Equal(t, a, b)
	assert.Equal(t, b, c)
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int64
		ok    bool
	}{
		{"plain", "1000", 1000, true},
		{"thousands separator", "1,000", 1000, true},
		{"full-width digits and separator", "１，０００", 1000, true},
		{"parenthesized negative", "(1,000)", -1000, true},
		{"full-width parenthesized negative", "（１，０００）", -1000, true},
		{"ascii minus", "-1000", -1000, true},
		{"full-width minus", "－１０００", -1000, true},
		{"unicode minus", "−1000", -1000, true},
		{"currency suffix", "1000円", 1000, true},
		{"currency prefix", "¥1,000", 1000, true},
		{"full-width yen", "￥１，０００", 1000, true},
		{"non-breaking space", "1 000", 1000, true},
		{"zero", "0", 0, true},
		{"empty", "", 0, false},
		{"only symbols", "¥,", 0, false},
		{"decimal point rejected", "1.5", 0, false},
		{"letters rejected", "12a4", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Amount(tt.input)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsNegative(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"-100", true},
		{"－100", true},
		{"−100", true},
		{"(100)", true},
		{"（100）", true},
		{"100", false},
		{"(100", false},
		{"100)", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsNegative(tt.input), "input %q", tt.input)
	}
}
