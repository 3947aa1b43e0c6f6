// Package tabular turns raw statement text into rows of string fields.
//
// The dialect is fixed: comma-delimited fields, double-quote quoting with a
// doubled quote as the escape, and "\n" line termination. Callers are
// responsible for stripping a byte-order mark and normalizing "\r\n"/"\r"
// before parsing. The parser is total: malformed input never returns an
// error, only best-effort fields.
package tabular

import "strings"

const (
	delimiter = ','
	quote     = '"'
)

// Parse splits text into rows of fields. Unquoted fields are trimmed of
// surrounding whitespace; quoted field content is preserved as written
// except for quote unescaping. Rows consisting entirely of empty fields are
// dropped.
func Parse(text string) [][]string {
	var rows [][]string
	var row []string
	var field strings.Builder
	inQuotes := false
	fieldQuoted := false

	flushField := func() {
		s := field.String()
		if !fieldQuoted {
			s = strings.TrimSpace(s)
		}
		row = append(row, s)
		field.Reset()
		fieldQuoted = false
	}

	flushRow := func() {
		flushField()
		for _, f := range row {
			if f != "" {
				rows = append(rows, row)
				break
			}
		}
		row = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case inQuotes:
			if ch == quote {
				if i+1 < len(runes) && runes[i+1] == quote {
					field.WriteRune(quote)
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteRune(ch)
			}
		case ch == quote && !fieldQuoted && strings.TrimSpace(field.String()) == "":
			// Opening quote; whitespace before it is ignored.
			field.Reset()
			inQuotes = true
			fieldQuoted = true
		case ch == delimiter:
			flushField()
		case ch == '\n':
			flushRow()
		default:
			field.WriteRune(ch)
		}
	}

	// A trailing unterminated quote still yields the accumulated field.
	if field.Len() > 0 || fieldQuoted || len(row) > 0 {
		flushRow()
	}

	return rows
}

// FormatRow renders fields as a single line that Parse round-trips exactly.
// Fields containing the delimiter, the quote character, a newline, or
// surrounding whitespace are quoted; embedded quotes are doubled.
func FormatRow(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = formatField(f)
	}
	return strings.Join(parts, string(delimiter))
}

func formatField(f string) string {
	needsQuoting := strings.ContainsAny(f, string(delimiter)+string(quote)+"\n") ||
		strings.TrimSpace(f) != f
	if !needsQuoting {
		return f
	}
	escaped := strings.ReplaceAll(f, string(quote), string(quote)+string(quote))
	return string(quote) + escaped + string(quote)
}
