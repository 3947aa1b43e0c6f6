// Package detect identifies which known layout an import file follows and
// maps its logical fields to physical columns.
package detect

import (
	"fmt"
	"strings"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/normalize"
	"github.com/kozeni/kozeni/internal/parse"
)

// ledgerExportHeader is the exact header of the app's own export format.
var ledgerExportHeader = []string{"日付", "種類", "金額", "カテゴリ", "メモ"}

// Header keyword groups for the bank statement layout: each group must have
// at least one member appear in the header row.
var bankHeaderGroups = [][]string{
	{"日付", "年月日", "取引日", "date"},
	{"出金", "お引出し", "引出", "debit"},
	{"入金", "お預入れ", "預入", "credit"},
}

// Header keywords for mobile-wallet exports; all must appear.
var walletHeaderKeywords = []string{"取引日時", "取引内容", "金額"}

// Card statement structural constants. The layout has no header: row 1 is a
// personal-info banner, data rows carry a per-line charge in column 2, the
// charged amount for this line in column 5, and the running total in
// column 6. On the first data row the two are equal, which is the
// structural signature used when the banner is missing.
const (
	cardColumnCount = 7
	cardSubTotalCol = 5
	cardTotalCol    = 6
)

var cardIssuerKeywords = []string{"カード", "card"}

// detector is one layout recognizer. Detectors are pure: same rows, same
// verdict.
type detector struct {
	detect func(rows [][]string) (model.Confidence, string)
	format model.Format
}

// specificDetectors are tried first, most specific layouts first. The
// listing order is the tie-break between equal confidence levels.
var specificDetectors = []detector{
	{format: model.FormatLedgerExport, detect: detectLedgerExport},
	{format: model.FormatBankStatement, detect: detectBankStatement},
	{format: model.FormatCardStatement, detect: detectCardStatement},
	{format: model.FormatWalletExport, detect: detectWalletExport},
}

// DetectAll runs every recognizer and returns the verdicts sorted by
// confidence descending. The generic fallback only participates when no
// specific layout matched. Ties keep listing order.
func DetectAll(rows [][]string) []model.DetectionResult {
	var results []model.DetectionResult

	for _, d := range specificDetectors {
		if conf, reason := d.detect(rows); conf > model.ConfidenceUnknown {
			results = append(results, model.DetectionResult{
				Format:     d.format,
				Confidence: conf,
				Reason:     reason,
			})
		}
	}

	if len(results) == 0 {
		if r, ok := detectGeneric(rows); ok {
			results = append(results, r)
		}
	}

	sortByConfidence(results)
	return results
}

// Detect returns the highest-confidence verdict, or FormatUnknown.
func Detect(rows [][]string) model.DetectionResult {
	results := DetectAll(rows)
	if len(results) == 0 {
		return model.DetectionResult{Format: model.FormatUnknown, Confidence: model.ConfidenceUnknown, Reason: "no layout matched"}
	}
	return results[0]
}

// sortByConfidence orders results descending by confidence. Insertion sort
// keeps equal-confidence results in detector listing order.
func sortByConfidence(results []model.DetectionResult) {
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Confidence > results[j-1].Confidence; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func detectLedgerExport(rows [][]string) (model.Confidence, string) {
	if len(rows) == 0 {
		return model.ConfidenceUnknown, ""
	}
	header := rows[0]
	if len(header) != len(ledgerExportHeader) {
		return model.ConfidenceUnknown, ""
	}
	for i, want := range ledgerExportHeader {
		if strings.TrimSpace(header[i]) != want {
			return model.ConfidenceUnknown, ""
		}
	}
	return model.ConfidenceHigh, "exact ledger export header"
}

func detectBankStatement(rows [][]string) (model.Confidence, string) {
	if len(rows) == 0 {
		return model.ConfidenceUnknown, ""
	}
	header := normalizeRow(rows[0])
	for _, group := range bankHeaderGroups {
		if !headerContainsAny(header, group) {
			return model.ConfidenceUnknown, ""
		}
	}
	return model.ConfidenceHigh, "bank header with withdrawal/deposit columns"
}

func detectWalletExport(rows [][]string) (model.Confidence, string) {
	if len(rows) == 0 {
		return model.ConfidenceUnknown, ""
	}
	header := normalizeRow(rows[0])
	for _, kw := range walletHeaderKeywords {
		if !headerContainsAny(header, []string{kw}) {
			return model.ConfidenceUnknown, ""
		}
	}
	return model.ConfidenceHigh, "wallet export header"
}

func detectCardStatement(rows [][]string) (model.Confidence, string) {
	if len(rows) == 0 {
		return model.ConfidenceUnknown, ""
	}

	if isCardBanner(rows[0]) {
		return model.ConfidenceHigh, "masked account banner"
	}

	// No banner: fall back to the running-total signature on row 2.
	if len(rows) >= 2 {
		row := rows[1]
		if len(row) == cardColumnCount {
			sub, okSub := parse.Amount(row[cardSubTotalCol])
			total, okTotal := parse.Amount(row[cardTotalCol])
			if okSub && okTotal && sub == total {
				return model.ConfidenceMedium, "running-total signature"
			}
		}
	}

	return model.ConfidenceUnknown, ""
}

// isCardBanner reports whether a row is a card statement personal-info
// banner: a masked account number (a run of masking glyphs) or an issuer
// keyword combined with an honorific.
func isCardBanner(row []string) bool {
	for _, cell := range row {
		n := normalize.Normalize(cell)
		if strings.Contains(n, "****") {
			return true
		}
		if strings.Contains(cell, "様") {
			for _, kw := range cardIssuerKeywords {
				if strings.Contains(n, normalize.Normalize(kw)) {
					return true
				}
			}
		}
	}
	return false
}

// detectGeneric flags layouts with a date-like and an amount-like column,
// distinguishing bank-style (separate debit/credit columns) from card-style
// (single amount column, implicitly expense).
func detectGeneric(rows [][]string) (model.DetectionResult, bool) {
	if len(rows) == 0 {
		return model.DetectionResult{}, false
	}

	header := rows[0]
	cmap := mapByHeader(header)
	if cmap.Date < 0 {
		return model.DetectionResult{}, false
	}

	switch {
	case cmap.Debit >= 0 && cmap.Credit >= 0:
		return model.DetectionResult{
			Format:     model.FormatGenericBank,
			Confidence: model.ConfidenceLow,
			Reason:     "date column with separate debit/credit columns",
		}, true
	case cmap.Amount >= 0:
		return model.DetectionResult{
			Format:     model.FormatGenericCard,
			Confidence: model.ConfidenceLow,
			Reason:     "date column with a single amount column",
		}, true
	default:
		return model.DetectionResult{}, false
	}
}

// IsArtifactRow reports whether a row is a non-transaction artifact of the
// given layout (personal-info banner, running-total/summary row). Artifact
// rows are skipped before extraction and not counted as invalid.
func IsArtifactRow(format model.Format, row []string) bool {
	if format != model.FormatCardStatement {
		return false
	}
	// Card data rows always carry the full fixed column set; shorter rows
	// are banners or summary lines.
	if len(row) != cardColumnCount {
		return true
	}
	if isCardBanner(row) {
		return true
	}
	for _, cell := range row {
		n := normalize.Normalize(cell)
		if n == "合計" || n == "ご請求額" || strings.HasPrefix(n, "ご請求金額") {
			return true
		}
	}
	return false
}

func normalizeRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = normalize.Normalize(cell)
	}
	return out
}

func headerContainsAny(header []string, keywords []string) bool {
	for _, cell := range header {
		for _, kw := range keywords {
			if strings.Contains(cell, normalize.Normalize(kw)) {
				return true
			}
		}
	}
	return false
}

// ResultString renders a detection result for logs and import summaries.
func ResultString(r model.DetectionResult) string {
	return fmt.Sprintf("%s (%s: %s)", r.Format, r.Confidence, r.Reason)
}
