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

const categoryColumns = `id, name, grp, type, is_active, created_at`

// GetCategories returns all active categories, grouped then named.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE is_active = 1
		ORDER BY grp, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByID returns a category by its id, active or not.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if id <= 0 {
		return nil, fmt.Errorf("category id must be positive, got %d", id)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // category not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category %d: %w", id, err)
	}
	return cat, nil
}

// FindCategory returns the active category with the given name that applies
// to records of the given direction, or nil when none matches.
func (s *SQLiteStorage) FindCategory(ctx context.Context, name string, direction model.Direction) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE name = ? AND is_active = 1`
	args := []any{name}
	if direction == model.DirectionExpense || direction == model.DirectionIncome {
		query += ` AND type = ?`
		args = append(args, string(direction))
	}

	row := s.db.QueryRowContext(ctx, query, args...)
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // category not found
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category %q: %w", name, err)
	}
	return cat, nil
}

// CreateCategory creates a new category, reactivating a soft-deleted one with
// the same name and type if it exists.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name, group string, categoryType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if categoryType != model.CategoryTypeExpense && categoryType != model.CategoryTypeIncome {
		return nil, fmt.Errorf("invalid category type %q", categoryType)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE name = ? AND type = ?`,
		name, string(categoryType))
	existing, err := scanCategory(row)
	if err == nil {
		if !existing.IsActive {
			if _, err := s.db.ExecContext(ctx,
				`UPDATE categories SET is_active = 1 WHERE id = ?`, existing.ID); err != nil {
				return nil, fmt.Errorf("failed to reactivate category: %w", err)
			}
			existing.IsActive = true
			slog.Info("reactivated existing category", "name", name)
		}
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing category: %w", err)
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, grp, type, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)`,
		name, group, string(categoryType), now)
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	slog.Info("created category", "name", name, "type", categoryType)
	return &model.Category{
		ID:        int(id),
		Name:      name,
		Group:     group,
		Type:      categoryType,
		IsActive:  true,
		CreatedAt: now,
	}, nil
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var cat model.Category
	var typ string
	if err := row.Scan(&cat.ID, &cat.Name, &cat.Group, &typ, &cat.IsActive, &cat.CreatedAt); err != nil {
		return nil, err
	}
	cat.Type = model.CategoryType(typ)
	return &cat, nil
}
