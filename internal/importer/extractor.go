// Package importer runs the import pipeline: tokenize, detect, map columns,
// extract records, categorize, deduplicate, and persist.
package importer

import (
	"strings"

	"github.com/google/uuid"

	"github.com/kozeni/kozeni/internal/detect"
	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/parse"
)

// ExtractRecords converts data rows into records using the column map. Rows
// whose date or amount cannot be parsed are discarded and counted as
// invalid. Layout artifacts (banners, running-total rows) are skipped
// without counting. Each record gets a fresh id.
func ExtractRecords(rows [][]string, format model.Format, cmap detect.ColumnMap) ([]model.Record, int) {
	data := rows
	if hasHeaderRow(format) && len(data) > 0 {
		data = data[1:]
	}

	var records []model.Record
	invalid := 0

	for _, row := range data {
		if detect.IsArtifactRow(format, row) {
			continue
		}

		date, ok := parse.Date(fieldAt(row, cmap.Date))
		if !ok {
			invalid++
			continue
		}
		direction, amount, ok := cmap.ResolveAmount(row, format)
		if !ok {
			invalid++
			continue
		}

		records = append(records, model.Record{
			ID:            uuid.NewString(),
			Date:          date,
			Memo:          strings.TrimSpace(fieldAt(row, cmap.Memo)),
			CategoryLabel: strings.TrimSpace(fieldAt(row, cmap.Category)),
			Source:        string(format),
			Direction:     direction,
			Amount:        amount,
		})
	}

	return records, invalid
}

// hasHeaderRow reports whether the layout's first row is a header to skip.
// Card statements have no header; their leading banner is an artifact row.
func hasHeaderRow(format model.Format) bool {
	return format != model.FormatCardStatement
}

// fieldAt returns the row value at idx, or "" when unmapped or out of range.
func fieldAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
