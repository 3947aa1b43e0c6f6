package tabular

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want [][]string
	}{
		{
			name: "plain fields",
			text: "a,b,c\nd,e,f",
			want: [][]string{{"a", "b", "c"}, {"d", "e", "f"}},
		},
		{
			name: "unquoted fields are trimmed",
			text: " a , b ,c \n",
			want: [][]string{{"a", "b", "c"}},
		},
		{
			name: "quoted field with embedded delimiter",
			text: `a,"b,c",d`,
			want: [][]string{{"a", "b,c", "d"}},
		},
		{
			name: "quoted field with embedded newline",
			text: "a,\"line1\nline2\",b",
			want: [][]string{{"a", "line1\nline2", "b"}},
		},
		{
			name: "doubled quote is a literal quote",
			text: `a,"say ""hi""",b`,
			want: [][]string{{"a", `say "hi"`, "b"}},
		},
		{
			name: "quoted content keeps surrounding whitespace",
			text: `" a ",b`,
			want: [][]string{{" a ", "b"}},
		},
		{
			name: "all-empty rows are dropped",
			text: "a,b\n,,\n\nc,d",
			want: [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name: "trailing newline produces no extra row",
			text: "a,b\n",
			want: [][]string{{"a", "b"}},
		},
		{
			name: "unterminated quote yields best-effort field",
			text: "a,\"unterminated\nb,c",
			want: [][]string{{"a", "unterminated\nb,c"}},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
		{
			name: "japanese header row",
			text: "日付,種類,金額,カテゴリ,メモ",
			want: [][]string{{"日付", "種類", "金額", "カテゴリ", "メモ"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text))
		})
	}
}

func TestFormatRowRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
	}{
		{"plain", []string{"a", "b", "c"}},
		{"embedded delimiter", []string{"a,b", "c"}},
		{"embedded quote", []string{`say "hi"`, "x"}},
		{"embedded newline", []string{"line1\nline2", "x"}},
		{"surrounding whitespace", []string{" padded ", "x"}},
		{"everything at once", []string{`a,"b`, "\nc\n", ` d `, "e"}},
		{"japanese content", []string{"2025/01/01", "支出", "1000", "食費", "コンビニ, 駅前"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := FormatRow(tt.fields)
			rows := Parse(line)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.fields, rows[0])
		})
	}
}

func TestFormatRowMultiRow(t *testing.T) {
	r1 := []string{"a,b", "c"}
	r2 := []string{"d", `"e"`}
	text := FormatRow(r1) + "\n" + FormatRow(r2)

	rows := Parse(text)
	require.Len(t, rows, 2)
	assert.Equal(t, r1, rows[0])
	assert.Equal(t, r2, rows[1])
}

func TestParseIsTotal(t *testing.T) {
	// Hostile inputs must not panic and must always terminate.
	inputs := []string{
		`"`,
		`""`,
		`"""`,
		`a"b,c"d`,
		strings.Repeat(`","`, 1000),
		"\n\n\n",
	}
	for _, input := range inputs {
		assert.NotPanics(t, func() { Parse(input) })
	}
}
