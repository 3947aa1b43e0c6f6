// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/kozeni/kozeni/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Record operations
	SaveRecords(ctx context.Context, records []model.Record) error
	GetRecordByID(ctx context.Context, id string) (*model.Record, error)
	GetRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)
	GetUnclassifiedRecords(ctx context.Context, limit int) ([]model.Record, error)
	GetImportFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error)
	GetCanonicalFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error)
	UpdateRecordCategory(ctx context.Context, recordID string, categoryID int) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int) (*model.Category, error)
	FindCategory(ctx context.Context, name string, direction model.Direction) (*model.Category, error)
	CreateCategory(ctx context.Context, name, group string, categoryType model.CategoryType) (*model.Category, error)

	// Rule operations
	GetRules(ctx context.Context) ([]model.Rule, error)
	SaveRule(ctx context.Context, rule *model.Rule) error
	FindRuleByKeyword(ctx context.Context, keyword string, direction model.Direction) (*model.Rule, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	UpdateRulePriorities(ctx context.Context, priorities map[int64]int) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// RecordFilter defines filtering options for record queries.
type RecordFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Direction model.Direction
	Source    string
	Limit     int
	Offset    int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
