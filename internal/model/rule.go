package model

import (
	"fmt"
	"time"
)

// MatchType selects how a rule keyword is compared against memo text.
type MatchType string

// Match type constants.
const (
	MatchContains MatchType = "contains"
	MatchPrefix   MatchType = "prefix"
	MatchSuffix   MatchType = "suffix"
	MatchExact    MatchType = "exact"
)

// ParseMatchType decodes a persisted match type string.
func ParseMatchType(s string) (MatchType, error) {
	switch MatchType(s) {
	case MatchContains, MatchPrefix, MatchSuffix, MatchExact:
		return MatchType(s), nil
	default:
		return "", fmt.Errorf("unknown match type %q", s)
	}
}

// RuleSource indicates how a classification rule was created.
type RuleSource string

const (
	// RuleSourceDefault indicates a rule seeded with the application.
	RuleSourceDefault RuleSource = "DEFAULT"
	// RuleSourceManual indicates a rule created by the user.
	RuleSourceManual RuleSource = "MANUAL"
	// RuleSourceLearned indicates a rule derived from a user correction.
	RuleSourceLearned RuleSource = "LEARNED"
)

// Rule maps a memo keyword to a category for one transaction direction.
// Higher priority rules are evaluated first.
type Rule struct {
	CreatedAt  time.Time
	Keyword    string
	Match      MatchType
	Direction  Direction
	Source     RuleSource
	ID         int64
	CategoryID int
	Priority   int
	Enabled    bool
}

// Validate checks the rule invariants before it is stored.
func (r *Rule) Validate() error {
	if r.Enabled && r.Keyword == "" {
		return fmt.Errorf("enabled rule must have a keyword")
	}
	if _, err := ParseMatchType(string(r.Match)); err != nil {
		return err
	}
	if r.Direction != DirectionExpense && r.Direction != DirectionIncome {
		return fmt.Errorf("rule direction must be expense or income, got %q", r.Direction)
	}
	if r.CategoryID == 0 {
		return fmt.Errorf("rule must reference a category")
	}
	return nil
}
