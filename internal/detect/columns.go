package detect

import (
	"fmt"
	"strings"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/normalize"
	"github.com/kozeni/kozeni/internal/parse"
)

// ColumnMap maps logical fields to physical column indices. -1 means the
// field has no column in this layout.
type ColumnMap struct {
	Date     int
	Amount   int
	Debit    int
	Credit   int
	Type     int
	Memo     int
	Category int
}

func unmappedColumns() ColumnMap {
	return ColumnMap{Date: -1, Amount: -1, Debit: -1, Credit: -1, Type: -1, Memo: -1, Category: -1}
}

// Ranked header candidate substrings per logical field. Within a field the
// earlier candidate wins; within a candidate the earlier header column wins.
var headerCandidates = map[string][]string{
	"date":     {"取引日時", "利用日", "取引日", "日付", "年月日", "日時", "date"},
	"amount":   {"利用金額", "取引金額", "金額", "amount"},
	"debit":    {"お引出し", "出金", "引出", "支払金額", "debit"},
	"credit":   {"お預入れ", "入金", "預入", "credit"},
	"type":     {"取引内容", "種類", "種別", "区分", "type"},
	"memo":     {"利用店名", "摘要", "メモ", "内容", "店名", "備考", "description"},
	"category": {"カテゴリ", "分類", "category"},
}

// fieldOrder fixes the scan order so mapping is deterministic. Date and
// amount come first because later fields (type, memo) use looser keywords.
var fieldOrder = []string{"date", "amount", "debit", "credit", "type", "memo", "category"}

// BuildColumnMap resolves the column map for a detected format. Fixed
// layouts use hardcoded indices regardless of header content; header-driven
// layouts scan the header for ranked candidate substrings. An empty header
// falls back to the first three columns as date/memo/amount.
func BuildColumnMap(header []string, format model.Format) ColumnMap {
	switch format {
	case model.FormatLedgerExport:
		// 日付,種類,金額,カテゴリ,メモ
		c := unmappedColumns()
		c.Date, c.Type, c.Amount, c.Category, c.Memo = 0, 1, 2, 3, 4
		return c
	case model.FormatCardStatement:
		// Fixed physical layout, no header row.
		c := unmappedColumns()
		c.Date, c.Memo, c.Amount = 0, 1, 2
		return c
	default:
		if len(header) == 0 {
			c := unmappedColumns()
			c.Date, c.Memo, c.Amount = 0, 1, 2
			return c
		}
		return mapByHeader(header)
	}
}

// mapByHeader resolves each logical field by scanning header cells for its
// ranked candidate substrings.
func mapByHeader(header []string) ColumnMap {
	normalized := normalizeRow(header)
	c := unmappedColumns()

	for _, field := range fieldOrder {
		idx := -1
	candidates:
		for _, candidate := range headerCandidates[field] {
			want := normalize.Normalize(candidate)
			for i, cell := range normalized {
				if strings.Contains(cell, want) {
					idx = i
					break candidates
				}
			}
		}
		c.set(field, idx)
	}
	return c
}

// WithOverrides applies a user-supplied manual mapping on top of the
// inferred one. Field names follow the logical field set; unknown names are
// rejected.
func (c ColumnMap) WithOverrides(overrides map[string]int) (ColumnMap, error) {
	for field, idx := range overrides {
		if idx < 0 {
			return c, fmt.Errorf("column index for %q must be non-negative, got %d", field, idx)
		}
		if !c.set(field, idx) {
			return c, fmt.Errorf("unknown column field %q", field)
		}
	}
	return c, nil
}

func (c *ColumnMap) set(field string, idx int) bool {
	switch field {
	case "date":
		c.Date = idx
	case "amount":
		c.Amount = idx
	case "debit":
		c.Debit = idx
	case "credit":
		c.Credit = idx
	case "type":
		c.Type = idx
	case "memo":
		c.Memo = idx
	case "category":
		c.Category = idx
	default:
		return false
	}
	return true
}

// cell returns the row value at idx, or "" when the index is unmapped or
// out of range for this row.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// Type keyword sets for the classifier-column strategy. Transfer-ambiguous
// terms (振替, 振込) are deliberately in neither set; transfer handling
// belongs to the bookkeeping layer.
var (
	expenseTypeKeywords = []string{"支出", "出金", "支払", "引落", "withdrawal", "payment", "expense"}
	incomeTypeKeywords  = []string{"収入", "入金", "預入", "income", "deposit"}
)

// directionStrategy attempts to resolve direction and amount for one row.
// handled=false means the strategy does not apply and the next one runs;
// handled=true with ok=false means the strategy applies but the row is
// unparseable.
type directionStrategy func(c ColumnMap, row []string, format model.Format) (dir model.Direction, amount int64, ok, handled bool)

// directionStrategies is the direction + amount resolution policy. The
// order is a behavioral contract: debit/credit columns, then the type
// column, then the amount sign, then the layout default. Reordering changes
// how ambiguous rows classify.
var directionStrategies = []directionStrategy{
	resolveDebitCredit,
	resolveTypeColumn,
	resolveAmountSign,
	resolveLayoutDefault,
}

// ResolveAmount applies the resolution policy to one data row. ok=false
// means the row is unparseable and should count as invalid.
func (c ColumnMap) ResolveAmount(row []string, format model.Format) (model.Direction, int64, bool) {
	for _, strategy := range directionStrategies {
		if dir, amount, ok, handled := strategy(c, row, format); handled {
			return dir, amount, ok
		}
	}
	return "", 0, false
}

// resolveDebitCredit applies when both debit and credit columns are mapped:
// whichever parses to a positive amount determines direction. When both are
// non-positive the row is unparseable; later strategies never run.
func resolveDebitCredit(c ColumnMap, row []string, _ model.Format) (model.Direction, int64, bool, bool) {
	if c.Debit < 0 || c.Credit < 0 {
		return "", 0, false, false
	}

	if v, ok := parse.Amount(cell(row, c.Debit)); ok && v > 0 {
		return model.DirectionExpense, v, true, true
	}
	if v, ok := parse.Amount(cell(row, c.Credit)); ok && v > 0 {
		return model.DirectionIncome, v, true, true
	}
	return "", 0, false, true
}

// resolveTypeColumn applies when a type/classifier column is mapped
// alongside a single amount column. The normalized type text is matched
// against the expense set first, then the income set.
func resolveTypeColumn(c ColumnMap, row []string, _ model.Format) (model.Direction, int64, bool, bool) {
	if c.Type < 0 || c.Amount < 0 {
		return "", 0, false, false
	}

	typeText := normalize.Normalize(cell(row, c.Type))
	if typeText == "" {
		return "", 0, false, false
	}

	dir := model.Direction("")
	for _, kw := range expenseTypeKeywords {
		if strings.Contains(typeText, normalize.Normalize(kw)) {
			dir = model.DirectionExpense
			break
		}
	}
	if dir == "" {
		for _, kw := range incomeTypeKeywords {
			if strings.Contains(typeText, normalize.Normalize(kw)) {
				dir = model.DirectionIncome
				break
			}
		}
	}
	if dir == "" {
		return "", 0, false, false
	}

	v, ok := parse.Amount(cell(row, c.Amount))
	if !ok {
		return "", 0, false, true
	}
	if v < 0 {
		v = -v
	}
	return dir, v, true, true
}

// resolveAmountSign applies when the amount parses negative: the record is
// an expense of the absolute value. Non-negative amounts fall through.
func resolveAmountSign(c ColumnMap, row []string, _ model.Format) (model.Direction, int64, bool, bool) {
	if c.Amount < 0 {
		return "", 0, false, false
	}
	v, ok := parse.Amount(cell(row, c.Amount))
	if !ok || v >= 0 {
		return "", 0, false, false
	}
	return model.DirectionExpense, -v, true, true
}

// resolveLayoutDefault is the terminal strategy: card-style layouts default
// to expense, bank-style to income.
func resolveLayoutDefault(c ColumnMap, row []string, format model.Format) (model.Direction, int64, bool, bool) {
	v, ok := parse.Amount(cell(row, c.Amount))
	if !ok || v < 0 {
		return "", 0, false, true
	}

	if format.CardStyle() {
		return model.DirectionExpense, v, true, true
	}
	return model.DirectionIncome, v, true, true
}
