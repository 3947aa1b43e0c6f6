package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozeni/kozeni/internal/model"
)

const ruleColumns = `id, keyword, match_type, direction, source, category_id, priority, enabled, created_at`

// GetRules returns all rules, highest priority first. Disabled rules are
// included; filtering is the engine's concern.
func (s *SQLiteStorage) GetRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// SaveRule inserts a new rule and sets its generated id.
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now()
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO rules (keyword, match_type, direction, source, category_id, priority, enabled, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.Keyword, string(rule.Match), string(rule.Direction), string(rule.Source),
		rule.CategoryID, rule.Priority, rule.Enabled, rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule id: %w", err)
	}
	rule.ID = id

	slog.Debug("saved rule", "id", rule.ID, "keyword", rule.Keyword, "source", rule.Source)
	return nil
}

// FindRuleByKeyword returns the rule with the exact keyword and direction,
// or nil when none exists. Keywords are stored normalized, so exact
// comparison is sufficient.
func (s *SQLiteStorage) FindRuleByKeyword(ctx context.Context, keyword string, direction model.Direction) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(keyword, "keyword"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+ruleColumns+`
		FROM rules
		WHERE keyword = ? AND direction = ?
		ORDER BY priority DESC, id
		LIMIT 1`,
		keyword, string(direction))
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // rule not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rule %q: %w", keyword, err)
	}
	return rule, nil
}

// UpdateRule rewrites an existing rule in place.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if rule.ID == 0 {
		return fmt.Errorf("rule id is required for update")
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE rules
		SET keyword = ?, match_type = ?, direction = ?, source = ?,
			category_id = ?, priority = ?, enabled = ?
		WHERE id = ?`,
		rule.Keyword, string(rule.Match), string(rule.Direction), string(rule.Source),
		rule.CategoryID, rule.Priority, rule.Enabled, rule.ID)
	if err != nil {
		return fmt.Errorf("failed to update rule %d: %w", rule.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", rule.ID, ErrNotFound)
	}
	return nil
}

// DeleteRule removes a rule permanently.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateRulePriorities rewrites priorities for a set of rules atomically.
func (s *SQLiteStorage) UpdateRulePriorities(ctx context.Context, priorities map[int64]int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(priorities) == 0 {
		return fmt.Errorf("%w: priorities", ErrEmptySlice)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE rules SET priority = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare priority update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for id, priority := range priorities {
		result, err := stmt.ExecContext(ctx, priority, id)
		if err != nil {
			return fmt.Errorf("failed to update priority for rule %d: %w", id, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check priority update: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("rule %d: %w", id, ErrNotFound)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit priority updates: %w", err)
	}
	return nil
}

func scanRule(row rowScanner) (*model.Rule, error) {
	var rule model.Rule
	var match, direction, source string
	err := row.Scan(&rule.ID, &rule.Keyword, &match, &direction, &source,
		&rule.CategoryID, &rule.Priority, &rule.Enabled, &rule.CreatedAt)
	if err != nil {
		return nil, err
	}

	rule.Match, err = model.ParseMatchType(match)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", rule.ID, err)
	}
	rule.Direction, err = model.ParseDirection(direction)
	if err != nil {
		return nil, fmt.Errorf("rule %d: %w", rule.ID, err)
	}
	rule.Source = model.RuleSource(source)
	return &rule, nil
}
