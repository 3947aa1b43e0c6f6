package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kozeni/kozeni/internal/model"
	"github.com/kozeni/kozeni/internal/service"
)

const recordColumns = `id, import_fingerprint, canonical_fingerprint, date, memo, sub_memo, category_label,
	source, source_id, from_account_id, to_account_id, direction, amount, category_id`

// SaveRecords persists a batch of records in a single transaction. Records
// whose import fingerprint already exists are silently skipped; dedup against
// stored data is the importer's job, the unique index is the backstop.
func (s *SQLiteStorage) SaveRecords(ctx context.Context, records []model.Record) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		r := &records[i]
		_, err := stmt.ExecContext(ctx,
			r.ID, r.ImportFingerprint(), r.CanonicalFingerprint(), r.Date, r.Memo, r.SubMemo, r.CategoryLabel,
			r.Source, r.SourceID, r.FromAccountID, r.ToAccountID,
			string(r.Direction), r.Amount, r.CategoryID)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// GetRecordByID fetches a single record.
func (s *SQLiteStorage) GetRecordByID(ctx context.Context, id string) (*model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return r, nil
}

// GetRecords fetches records matching the filter, newest first.
func (s *SQLiteStorage) GetRecords(ctx context.Context, filter service.RecordFilter) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	var conds []string
	var args []any

	if filter.StartDate != nil {
		conds = append(conds, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		conds = append(conds, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Direction != "" {
		conds = append(conds, "direction = ?")
		args = append(args, string(filter.Direction))
	}
	if filter.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, filter.Source)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

// GetUnclassifiedRecords returns records with no resolved category, oldest
// first so classification replays in import order. Transfers are excluded;
// they carry no spending category. limit <= 0 means no limit.
func (s *SQLiteStorage) GetUnclassifiedRecords(ctx context.Context, limit int) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + recordColumns + ` FROM records
		WHERE category_id = 0 AND direction != ?
		ORDER BY date, id`
	args := []any{string(model.DirectionTransfer)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query unclassified records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectRecords(rows)
}

// GetImportFingerprints reports which of the given import-time fingerprints
// already exist in storage.
func (s *SQLiteStorage) GetImportFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	return s.lookupFingerprints(ctx, "import_fingerprint", fingerprints)
}

// GetCanonicalFingerprints reports which of the given post-categorization
// fingerprints already exist in storage. Stored keys are refreshed whenever a
// record's category is resolved, so this reflects the canonical record set.
func (s *SQLiteStorage) GetCanonicalFingerprints(ctx context.Context, fingerprints []string) (map[string]bool, error) {
	return s.lookupFingerprints(ctx, "canonical_fingerprint", fingerprints)
}

// lookupFingerprints checks the given keys against one fingerprint column.
// The lookup is chunked to stay under SQLite's parameter limit.
func (s *SQLiteStorage) lookupFingerprints(ctx context.Context, column string, fingerprints []string) (map[string]bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	existing := make(map[string]bool, len(fingerprints))

	const chunkSize = 500
	for start := 0; start < len(fingerprints); start += chunkSize {
		end := min(start+chunkSize, len(fingerprints))
		chunk := fingerprints[start:end]

		placeholders := strings.Repeat("?,", len(chunk)-1) + "?"
		args := make([]any, len(chunk))
		for i, fp := range chunk {
			args[i] = fp
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT `+column+` FROM records WHERE `+column+` IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query fingerprints: %w", err)
		}

		for rows.Next() {
			var fp string
			if err := rows.Scan(&fp); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
			}
			existing[fp] = true
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to iterate fingerprints: %w", err)
		}
		_ = rows.Close()
	}

	return existing, nil
}

// UpdateRecordCategory assigns a resolved category to a record and refreshes
// its canonical fingerprint, keeping the stored key consistent with the
// record's resolved state.
func (s *SQLiteStorage) UpdateRecordCategory(ctx context.Context, recordID string, categoryID int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return err
	}
	if categoryID <= 0 {
		return fmt.Errorf("categoryID must be positive, got %d", categoryID)
	}

	record, err := s.GetRecordByID(ctx, recordID)
	if err != nil {
		return err
	}
	record.CategoryID = categoryID

	_, err = s.db.ExecContext(ctx,
		`UPDATE records SET category_id = ?, canonical_fingerprint = ? WHERE id = ?`,
		categoryID, record.CanonicalFingerprint(), recordID)
	if err != nil {
		return fmt.Errorf("failed to update record category: %w", err)
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var r model.Record
	var direction string

	err := row.Scan(&r.ID, new(string), new(string), &r.Date, &r.Memo, &r.SubMemo, &r.CategoryLabel,
		&r.Source, &r.SourceID, &r.FromAccountID, &r.ToAccountID,
		&direction, &r.Amount, &r.CategoryID)
	if err != nil {
		return nil, err
	}

	r.Direction, err = model.ParseDirection(direction)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", r.ID, err)
	}
	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]model.Record, error) {
	var records []model.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}
