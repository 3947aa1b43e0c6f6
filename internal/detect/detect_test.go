package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/tabular"
)

func TestDetectLedgerExport(t *testing.T) {
	rows := tabular.Parse("日付,種類,金額,カテゴリ,メモ\n2025/01/01,支出,1000,食費,コンビニ")

	results := DetectAll(rows)
	require.Len(t, results, 1, "ledger export must be detected exclusively")
	assert.Equal(t, model.FormatLedgerExport, results[0].Format)
	assert.Equal(t, model.ConfidenceHigh, results[0].Confidence)
}

func TestDetectLedgerExportRejectsReordered(t *testing.T) {
	rows := tabular.Parse("種類,日付,金額,カテゴリ,メモ")

	top := Detect(rows)
	assert.NotEqual(t, model.FormatLedgerExport, top.Format)
}

func TestDetectBankStatement(t *testing.T) {
	rows := tabular.Parse("取引日,摘要,お引出し,お預入れ,残高\n2025/01/06,振込 ヤマダタロウ,,200000,350000")

	top := Detect(rows)
	assert.Equal(t, model.FormatBankStatement, top.Format)
	assert.Equal(t, model.ConfidenceHigh, top.Confidence)
}

func TestDetectWalletExport(t *testing.T) {
	rows := tabular.Parse("取引日時,取引内容,金額,取引番号\n2025/01/03 09:15:00,支払い,580,W-001")

	top := Detect(rows)
	assert.Equal(t, model.FormatWalletExport, top.Format)
	assert.Equal(t, model.ConfidenceHigh, top.Confidence)
}

func TestDetectCardStatementBanner(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{
			name: "masked account number",
			text: "****-****-****-1234,ヤマダ タロウ\n2025/01/05,コンビニA,450,1回,1,450,450",
		},
		{
			name: "full-width masking glyphs",
			text: "＊＊＊＊-＊＊＊＊-＊＊＊＊-5678\n2025/01/05,コンビニA,450,1回,1,450,450",
		},
		{
			name: "issuer keyword with honorific",
			text: "コゼニカード ヤマダ タロウ 様\n2025/01/05,コンビニA,450,1回,1,450,450",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top := Detect(tabular.Parse(tt.text))
			assert.Equal(t, model.FormatCardStatement, top.Format)
			assert.Equal(t, model.ConfidenceHigh, top.Confidence)
		})
	}
}

func TestDetectCardStatementRunningTotal(t *testing.T) {
	// Row 1 is a banner the glyph heuristics miss; row 2 has the card
	// column count and equal sub-total and total columns.
	rows := tabular.Parse("ヤマダ タロウ,1月ご利用分\n2025/01/05,コンビニA,450,1回,1,450,450\n2025/01/07,スーパーB,1980,1回,1,1980,2430")

	top := Detect(rows)
	assert.Equal(t, model.FormatCardStatement, top.Format)
	assert.Equal(t, model.ConfidenceMedium, top.Confidence)
}

func TestDetectGenericFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Format
	}{
		{
			name: "bank style with debit and credit columns",
			text: "date,description,debit,credit\n2025/01/01,coffee,450,",
			want: model.FormatGenericBank,
		},
		{
			name: "card style with single amount column",
			text: "date,description,amount\n2025/01/01,coffee,450",
			want: model.FormatGenericCard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			top := Detect(tabular.Parse(tt.text))
			assert.Equal(t, tt.want, top.Format)
			assert.Equal(t, model.ConfidenceLow, top.Confidence)
		})
	}
}

func TestDetectUnknown(t *testing.T) {
	top := Detect(tabular.Parse("foo,bar\nbaz,qux"))
	assert.Equal(t, model.FormatUnknown, top.Format)
	assert.Equal(t, model.ConfidenceUnknown, top.Confidence)
}

func TestDetectEmptyInput(t *testing.T) {
	top := Detect(nil)
	assert.Equal(t, model.FormatUnknown, top.Format)
}

func TestIsArtifactRow(t *testing.T) {
	tests := []struct {
		name   string
		format model.Format
		row    []string
		want   bool
	}{
		{
			name:   "card banner row",
			format: model.FormatCardStatement,
			row:    []string{"****-****-****-1234", "ヤマダ タロウ"},
			want:   true,
		},
		{
			name:   "card total row",
			format: model.FormatCardStatement,
			row:    []string{"合計", "", "12430"},
			want:   true,
		},
		{
			name:   "card data row",
			format: model.FormatCardStatement,
			row:    []string{"2025/01/05", "コンビニA", "450", "1回", "1", "450", "450"},
			want:   false,
		},
		{
			name:   "other formats never have artifacts",
			format: model.FormatBankStatement,
			row:    []string{"合計", "", "12430"},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsArtifactRow(tt.format, tt.row))
		})
	}
}
