package model

import "time"

// CategoryType indicates whether a category applies to income or expense records.
type CategoryType string

const (
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
)

// Category represents an entry in the spending/income category catalog.
type Category struct {
	CreatedAt time.Time
	Name      string
	Group     string
	Type      CategoryType
	ID        int
	IsActive  bool
}

// AppliesTo reports whether the category can be assigned to a record with
// the given direction.
func (c *Category) AppliesTo(direction Direction) bool {
	switch direction {
	case DirectionExpense:
		return c.Type == CategoryTypeExpense
	case DirectionIncome:
		return c.Type == CategoryTypeIncome
	default:
		return false
	}
}
