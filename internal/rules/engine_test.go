package rules

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/storage"
)

func newTestEngine(t *testing.T) (*Engine, *storage.SQLiteStorage) {
	t.Helper()

	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	return NewEngine(s), s
}

func expenseCategory(t *testing.T, s *storage.SQLiteStorage, name string) *model.Category {
	t.Helper()
	cat, err := s.CreateCategory(context.Background(), name, "", model.CategoryTypeExpense)
	require.NoError(t, err)
	return cat
}

func addRule(t *testing.T, s *storage.SQLiteStorage, keyword string, categoryID, priority int) *model.Rule {
	t.Helper()
	rule := &model.Rule{
		Keyword:    keyword,
		Match:      model.MatchContains,
		Direction:  model.DirectionExpense,
		Source:     model.RuleSourceManual,
		CategoryID: categoryID,
		Priority:   priority,
		Enabled:    true,
	}
	require.NoError(t, s.SaveRule(context.Background(), rule))
	return rule
}

func TestMatches(t *testing.T) {
	base := model.Rule{
		Keyword:    "コンビニ",
		Direction:  model.DirectionExpense,
		CategoryID: 1,
		Enabled:    true,
	}

	tests := []struct {
		name  string
		match model.MatchType
		text  string
		want  bool
	}{
		{"contains hit", model.MatchContains, "セブン コンビニ 渋谷店", true},
		{"contains miss", model.MatchContains, "スーパーA", false},
		{"prefix hit", model.MatchPrefix, "コンビニ 渋谷店", true},
		{"prefix miss", model.MatchPrefix, "渋谷 コンビニ", false},
		{"suffix hit", model.MatchSuffix, "渋谷 コンビニ", true},
		{"suffix miss", model.MatchSuffix, "コンビニ 渋谷", false},
		{"exact hit", model.MatchExact, "コンビニ", true},
		{"exact miss", model.MatchExact, "コンビニ 渋谷店", false},
		{"half-width katakana normalized", model.MatchContains, "ｾﾌﾞﾝ ｺﾝﾋﾞﾆ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := base
			rule.Match = tt.match
			assert.Equal(t, tt.want, Matches(&rule, tt.text))
		})
	}
}

func TestMatchesNeverFiresWhenDisabledOrEmpty(t *testing.T) {
	disabled := model.Rule{Keyword: "コンビニ", Match: model.MatchContains, Enabled: false}
	assert.False(t, Matches(&disabled, "コンビニ"))

	empty := model.Rule{Keyword: "  ", Match: model.MatchContains, Enabled: true}
	assert.False(t, Matches(&empty, "コンビニ"))
}

func TestMatchesNormalizesKeywordToo(t *testing.T) {
	// Full-width keyword against half-width text.
	rule := model.Rule{Keyword: "ＬＡＷＳＯＮ", Match: model.MatchContains, Enabled: true}
	assert.True(t, Matches(&rule, "lawson 渋谷店"))
}

func TestFindMatchingRulePriority(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	food := expenseCategory(t, s, "弁当")
	other := expenseCategory(t, s, "間食")

	// Lower priority inserted first; the higher-priority rule must still win.
	low := addRule(t, s, "コンビニ", food.ID, 1)
	high := addRule(t, s, "コンビニ弁当", other.ID, 50)

	got, err := e.FindMatchingRule(ctx, "コンビニ弁当 渋谷店", model.DirectionExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, high.ID, got.ID)

	// Equal priority: first-added wins.
	first := addRule(t, s, "スーパー", food.ID, 5)
	addRule(t, s, "スーパーマーケット", other.ID, 5)

	got, err = e.FindMatchingRule(ctx, "スーパーマーケットB", model.DirectionExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)

	// Direction filter: no income rules exist.
	got, err = e.FindMatchingRule(ctx, "コンビニ", model.DirectionIncome)
	require.NoError(t, err)
	assert.Nil(t, got)

	_ = low
}

func TestSuggestCategoryRuleWinsOverHeuristic(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	custom := expenseCategory(t, s, "コンビニ")
	addRule(t, s, "コンビニ", custom.ID, 1)

	// The heuristic table would say 食費, but the explicit rule wins.
	got, err := e.SuggestCategory(ctx, "コンビニ", model.DirectionExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, custom.ID, got.ID)
}

func TestSuggestCategoryDanglingRuleFallsThrough(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	addRule(t, s, "コンビニ", 99999, 1)

	got, err := e.SuggestCategory(ctx, "コンビニ 渋谷店", model.DirectionExpense)
	require.NoError(t, err)
	require.NotNil(t, got, "heuristic should resolve after dangling rule")
	assert.Equal(t, "食費", got.Name)
}

func TestSuggestCategoryHeuristicFallback(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	got, err := e.SuggestCategory(ctx, "タクシー 渋谷", model.DirectionExpense)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "交通費", got.Name)

	got, err = e.SuggestCategory(ctx, "謎の支払い", model.DirectionExpense)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLearnCreatesExactlyOneRule(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	cat := expenseCategory(t, s, "書籍")
	record := &model.Record{
		ID:         "r1",
		Date:       time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
		Memo:       "書店C",
		Direction:  model.DirectionExpense,
		Amount:     1200,
		CategoryID: cat.ID,
	}

	learned, err := e.Learn(ctx, record)
	require.NoError(t, err)
	require.NotNil(t, learned)
	assert.Equal(t, model.RuleSourceLearned, learned.Source)
	assert.Equal(t, learnedRulePriority, learned.Priority)

	// Repeating the same assignment does not create a duplicate.
	again, err := e.Learn(ctx, record)
	require.NoError(t, err)
	assert.Nil(t, again)

	rulesList, err := s.GetRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rulesList, 1)
}

func TestLearnSkipsTransfersAndUnresolved(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	transfer := &model.Record{Memo: "口座振替", Direction: model.DirectionTransfer, CategoryID: 3}
	learned, err := e.Learn(ctx, transfer)
	require.NoError(t, err)
	assert.Nil(t, learned)

	unresolved := &model.Record{Memo: "コンビニ", Direction: model.DirectionExpense, CategoryID: 0}
	learned, err = e.Learn(ctx, unresolved)
	require.NoError(t, err)
	assert.Nil(t, learned)
}

func TestLearnSkipsShortMemos(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	cat := expenseCategory(t, s, "雑費")
	short := &model.Record{Memo: "A", Direction: model.DirectionExpense, CategoryID: cat.ID}

	learned, err := e.Learn(ctx, short)
	require.NoError(t, err)
	assert.Nil(t, learned)
}

func TestLearnRepointsConflictingRule(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	oldCat := expenseCategory(t, s, "旧カテゴリ")
	newCat := expenseCategory(t, s, "新カテゴリ")
	existing := addRule(t, s, "書店c", oldCat.ID, 1)

	record := &model.Record{Memo: "書店C", Direction: model.DirectionExpense, CategoryID: newCat.ID}
	learned, err := e.Learn(ctx, record)
	require.NoError(t, err)
	require.NotNil(t, learned)
	assert.Equal(t, existing.ID, learned.ID)
	assert.Equal(t, newCat.ID, learned.CategoryID)

	rulesList, err := s.GetRules(ctx)
	require.NoError(t, err)
	assert.Len(t, rulesList, 1)
}

func TestAddRuleConflict(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	cat := expenseCategory(t, s, "弁当")

	first := &model.Rule{
		Keyword:    "コンビニ",
		Match:      model.MatchContains,
		Direction:  model.DirectionExpense,
		CategoryID: cat.ID,
		Enabled:    true,
	}
	added, err := e.AddRule(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, model.RuleSourceManual, added.Source)

	// Full-width variant normalizes to the same keyword.
	dup := &model.Rule{
		Keyword:    "ｺﾝﾋﾞﾆ",
		Match:      model.MatchContains,
		Direction:  model.DirectionExpense,
		CategoryID: cat.ID,
		Enabled:    true,
	}
	existing, err := e.AddRule(ctx, dup)
	assert.ErrorIs(t, err, ErrRuleConflict)
	require.NotNil(t, existing)
	assert.Equal(t, added.ID, existing.ID)
}

func TestReorderAssignsDensePriorities(t *testing.T) {
	e, s := newTestEngine(t)
	ctx := context.Background()

	cat := expenseCategory(t, s, "弁当")
	a := addRule(t, s, "コンビニ", cat.ID, 1)
	b := addRule(t, s, "スーパー", cat.ID, 2)
	c := addRule(t, s, "カフェ", cat.ID, 3)

	require.NoError(t, e.Reorder(ctx, []int64{c.ID, a.ID, b.ID}))

	got, err := s.GetRules(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, c.ID, got[0].ID)
	assert.Equal(t, 3, got[0].Priority)
	assert.Equal(t, a.ID, got[1].ID)
	assert.Equal(t, 2, got[1].Priority)
	assert.Equal(t, b.ID, got[2].ID)
	assert.Equal(t, 1, got[2].Priority)
}
