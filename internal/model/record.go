// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"time"
)

// Direction indicates whether a record moves money out, in, or between accounts.
type Direction string

// Direction constants. Transfers are produced and managed by the account
// bookkeeping layer; the import pipeline never creates them but must
// recognize them when reading stored records.
const (
	DirectionExpense  Direction = "expense"
	DirectionIncome   Direction = "income"
	DirectionTransfer Direction = "transfer"
)

// ParseDirection decodes a persisted direction string.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case DirectionExpense, DirectionIncome, DirectionTransfer:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Record is a normalized financial transaction extracted from an import file.
type Record struct {
	Date          time.Time
	ID            string
	Memo          string
	SubMemo       string // secondary description, e.g. store branch
	CategoryLabel string // raw category text from the source file
	Source        string // which layout produced this record
	SourceID      string // source-native identifier, when the layout has one
	FromAccountID string // transfers only
	ToAccountID   string // transfers only
	Direction     Direction
	Amount        int64 // smallest currency unit, always >= 0
	CategoryID    int   // resolved catalog id; 0 means unresolved
}

// Validate checks the record invariants established at extraction time.
func (r *Record) Validate() error {
	if r.Amount < 0 {
		return fmt.Errorf("record amount must be non-negative, got %d", r.Amount)
	}
	if r.Direction != DirectionExpense && r.Direction != DirectionIncome && r.Direction != DirectionTransfer {
		return fmt.Errorf("record has unresolved direction %q", r.Direction)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("record date is required")
	}
	return nil
}
