// Package rules implements the keyword classification rule engine: ordered
// keyword rules, a static heuristic fallback, and learning from user
// corrections. Writes to the rule store must be serialized by the caller.
package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/normalize"
	"github.com/kozeni/kozeni/internal/service"
)

// ErrRuleConflict indicates a rule with the same keyword and direction
// already exists. AddRule returns the existing rule alongside it so the
// caller can offer overwrite or cancel.
var ErrRuleConflict = errors.New("a rule with this keyword already exists")

// learnedRulePriority places learned rules above seeded defaults but below
// anything the user has deliberately pushed to the top.
const learnedRulePriority = 100

// minKeywordRunes rejects one-character memos that would create noise rules.
const minKeywordRunes = 2

// Engine evaluates classification rules against record memo text.
type Engine struct {
	storage service.Storage
}

// NewEngine creates a rule engine backed by the given store.
func NewEngine(storage service.Storage) *Engine {
	return &Engine{storage: storage}
}

// Matches reports whether the rule matches the given memo text. Both the
// keyword and the text are normalized before comparison. Disabled rules and
// empty keywords never match.
func Matches(rule *model.Rule, text string) bool {
	if !rule.Enabled {
		return false
	}
	keyword := normalize.Normalize(rule.Keyword)
	if keyword == "" {
		return false
	}
	t := normalize.Normalize(text)

	switch rule.Match {
	case model.MatchContains:
		return strings.Contains(t, keyword)
	case model.MatchPrefix:
		return strings.HasPrefix(t, keyword)
	case model.MatchSuffix:
		return strings.HasSuffix(t, keyword)
	case model.MatchExact:
		return t == keyword
	default:
		return false
	}
}

// FindMatchingRule returns the highest-priority enabled rule for the
// direction whose keyword matches the text, or nil when none does. The store
// returns rules priority-descending with insertion order breaking ties, so
// the first match wins.
func (e *Engine) FindMatchingRule(ctx context.Context, text string, direction model.Direction) (*model.Rule, error) {
	rules, err := e.storage.GetRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	for i := range rules {
		rule := &rules[i]
		if rule.Direction != direction {
			continue
		}
		if Matches(rule, text) {
			return rule, nil
		}
	}
	return nil, nil
}

// SuggestCategory resolves a category for the memo text. Explicit rules are
// consulted first; a rule whose category reference dangles is treated as no
// match. The static heuristic table only applies when no rule matched, so a
// user rule always wins regardless of its priority.
func (e *Engine) SuggestCategory(ctx context.Context, text string, direction model.Direction) (*model.Category, error) {
	rule, err := e.FindMatchingRule(ctx, text, direction)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		cat, err := e.storage.GetCategoryByID(ctx, rule.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve rule category: %w", err)
		}
		if cat != nil && cat.IsActive {
			return cat, nil
		}
		slog.Debug("rule references missing category, falling through",
			"rule_id", rule.ID, "category_id", rule.CategoryID)
	}

	normalized := normalize.Normalize(text)
	for _, h := range defaultHeuristics {
		if h.direction != direction {
			continue
		}
		if !strings.Contains(normalized, normalize.Normalize(h.keyword)) {
			continue
		}
		cat, err := e.storage.FindCategory(ctx, h.category, direction)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve heuristic category: %w", err)
		}
		if cat != nil {
			return cat, nil
		}
	}
	return nil, nil
}

// Learn derives a new contains-type rule from a user-confirmed category
// assignment. Transfers and records without a resolved category are skipped,
// as are memos too short to make a meaningful keyword. When a rule for the
// keyword already exists with a different category, the existing rule is
// repointed rather than duplicated. Returns the created or updated rule, or
// nil when nothing was learned.
func (e *Engine) Learn(ctx context.Context, record *model.Record) (*model.Rule, error) {
	if record.Direction == model.DirectionTransfer || record.CategoryID == 0 {
		return nil, nil
	}

	keyword := normalize.Normalize(strings.TrimSpace(record.Memo))
	if utf8.RuneCountInString(keyword) < minKeywordRunes {
		return nil, nil
	}

	// Nothing to learn when an existing rule already lands on this category.
	existing, err := e.FindMatchingRule(ctx, record.Memo, record.Direction)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.CategoryID == record.CategoryID {
		return nil, nil
	}

	conflict, err := e.storage.FindRuleByKeyword(ctx, keyword, record.Direction)
	if err != nil {
		return nil, err
	}
	if conflict != nil {
		conflict.CategoryID = record.CategoryID
		conflict.Source = model.RuleSourceLearned
		conflict.Enabled = true
		if err := e.storage.UpdateRule(ctx, conflict); err != nil {
			return nil, fmt.Errorf("failed to repoint learned rule: %w", err)
		}
		slog.Info("updated learned rule",
			"keyword", keyword, "category_id", record.CategoryID)
		return conflict, nil
	}

	rule := &model.Rule{
		Keyword:    keyword,
		Match:      model.MatchContains,
		Direction:  record.Direction,
		Source:     model.RuleSourceLearned,
		CategoryID: record.CategoryID,
		Priority:   learnedRulePriority,
		Enabled:    true,
	}
	if err := e.storage.SaveRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to save learned rule: %w", err)
	}

	slog.Info("learned rule from assignment",
		"keyword", keyword, "direction", record.Direction, "category_id", record.CategoryID)
	return rule, nil
}

// AddRule stores a user-created rule. The keyword is normalized before
// storage so matching and conflict detection stay consistent. When a rule
// with the same keyword and direction exists, the existing rule is returned
// with ErrRuleConflict and nothing is stored.
func (e *Engine) AddRule(ctx context.Context, rule *model.Rule) (*model.Rule, error) {
	rule.Keyword = normalize.Normalize(strings.TrimSpace(rule.Keyword))
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	existing, err := e.storage.FindRuleByKeyword(ctx, rule.Keyword, rule.Direction)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, fmt.Errorf("%w: %q", ErrRuleConflict, rule.Keyword)
	}

	if rule.Source == "" {
		rule.Source = model.RuleSourceManual
	}
	if err := e.storage.SaveRule(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// Reorder assigns dense descending priorities following the given id order,
// so list position and priority stay consistent after a drag-to-reorder.
func (e *Engine) Reorder(ctx context.Context, orderedIDs []int64) error {
	if len(orderedIDs) == 0 {
		return fmt.Errorf("ordered ids cannot be empty")
	}

	priorities := make(map[int64]int, len(orderedIDs))
	for i, id := range orderedIDs {
		priorities[id] = len(orderedIDs) - i
	}
	return e.storage.UpdateRulePriorities(ctx, priorities)
}

// heuristic is one entry of the static keyword→category-name fallback table.
// It is consulted only when no stored rule matches.
type heuristic struct {
	keyword   string
	category  string
	direction model.Direction
}

var defaultHeuristics = []heuristic{
	{"コンビニ", "食費", model.DirectionExpense},
	{"スーパー", "食費", model.DirectionExpense},
	{"カフェ", "食費", model.DirectionExpense},
	{"レストラン", "食費", model.DirectionExpense},
	{"ドラッグストア", "日用品", model.DirectionExpense},
	{"薬局", "日用品", model.DirectionExpense},
	{"タクシー", "交通費", model.DirectionExpense},
	{"ガソリン", "交通費", model.DirectionExpense},
	{"鉄道", "交通費", model.DirectionExpense},
	{"バス", "交通費", model.DirectionExpense},
	{"電気", "水道・光熱費", model.DirectionExpense},
	{"ガス", "水道・光熱費", model.DirectionExpense},
	{"水道", "水道・光熱費", model.DirectionExpense},
	{"携帯", "通信費", model.DirectionExpense},
	{"家賃", "住居費", model.DirectionExpense},
	{"病院", "健康・医療", model.DirectionExpense},
	{"クリニック", "健康・医療", model.DirectionExpense},
	{"映画", "趣味・娯楽", model.DirectionExpense},
	{"給与", "給与", model.DirectionIncome},
	{"賞与", "賞与", model.DirectionIncome},
}
