package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 4

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS records (
					id TEXT PRIMARY KEY,
					import_fingerprint TEXT UNIQUE NOT NULL,
					date DATETIME NOT NULL,
					memo TEXT NOT NULL,
					sub_memo TEXT NOT NULL DEFAULT '',
					category_label TEXT NOT NULL DEFAULT '',
					source TEXT NOT NULL,
					source_id TEXT NOT NULL DEFAULT '',
					from_account_id TEXT NOT NULL DEFAULT '',
					to_account_id TEXT NOT NULL DEFAULT '',
					direction TEXT NOT NULL,
					amount INTEGER NOT NULL,
					category_id INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_records_date ON records(date)`,
				`CREATE INDEX idx_records_category ON records(category_id)`,
				`CREATE INDEX idx_records_direction ON records(direction)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					grp TEXT NOT NULL DEFAULT '',
					type TEXT NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(name, type)
				)`,
				`CREATE INDEX idx_categories_active ON categories(is_active)`,

				`CREATE TABLE IF NOT EXISTS rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					keyword TEXT NOT NULL,
					match_type TEXT NOT NULL DEFAULT 'contains',
					direction TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT 'MANUAL',
					category_name TEXT NOT NULL,
					priority INTEGER NOT NULL DEFAULT 0,
					enabled BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_rules_keyword ON rules(keyword)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Reference categories from rules by id instead of name",
		Up: func(tx *sql.Tx) error {
			// SQLite doesn't support DROP COLUMN directly, so the table is
			// recreated without category_name after the backfill.
			if _, err := tx.Exec(`
				CREATE TABLE rules_new (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					keyword TEXT NOT NULL,
					match_type TEXT NOT NULL DEFAULT 'contains',
					direction TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT 'MANUAL',
					category_id INTEGER NOT NULL,
					priority INTEGER NOT NULL DEFAULT 0,
					enabled BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)
			`); err != nil {
				return fmt.Errorf("failed to create new rules table: %w", err)
			}

			// Rules whose category name no longer resolves are dropped; they
			// could never fire anyway.
			if _, err := tx.Exec(`
				INSERT INTO rules_new (id, keyword, match_type, direction, source, category_id, priority, enabled, created_at)
				SELECT r.id, r.keyword, r.match_type, r.direction, r.source, c.id, r.priority, r.enabled, r.created_at
				FROM rules r
				JOIN categories c ON c.name = r.category_name AND c.type = r.direction
			`); err != nil {
				return fmt.Errorf("failed to backfill rule category ids: %w", err)
			}

			if _, err := tx.Exec(`DROP TABLE rules`); err != nil {
				return fmt.Errorf("failed to drop old rules table: %w", err)
			}
			if _, err := tx.Exec(`ALTER TABLE rules_new RENAME TO rules`); err != nil {
				return fmt.Errorf("failed to rename rules table: %w", err)
			}
			if _, err := tx.Exec(`CREATE INDEX idx_rules_keyword ON rules(keyword)`); err != nil {
				return fmt.Errorf("failed to recreate keyword index: %w", err)
			}
			if _, err := tx.Exec(`CREATE INDEX idx_rules_enabled ON rules(enabled)`); err != nil {
				return fmt.Errorf("failed to create enabled index: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed the default category catalog",
		Up: func(tx *sql.Tx) error {
			seeds := []struct {
				name  string
				group string
				typ   string
			}{
				{"食費", "生活", "expense"},
				{"日用品", "生活", "expense"},
				{"交通費", "生活", "expense"},
				{"水道・光熱費", "固定費", "expense"},
				{"通信費", "固定費", "expense"},
				{"住居費", "固定費", "expense"},
				{"趣味・娯楽", "ゆとり", "expense"},
				{"交際費", "ゆとり", "expense"},
				{"衣服・美容", "ゆとり", "expense"},
				{"健康・医療", "生活", "expense"},
				{"その他", "その他", "expense"},
				{"給与", "収入", "income"},
				{"賞与", "収入", "income"},
				{"臨時収入", "収入", "income"},
				{"その他入金", "収入", "income"},
			}

			stmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (name, grp, type) VALUES (?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare category seed: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, seed := range seeds {
				if _, err := stmt.Exec(seed.name, seed.group, seed.typ); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", seed.name, err)
				}
			}
			return nil
		},
	},
	{
		Version:     4,
		Description: "Track canonical fingerprints on records",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`ALTER TABLE records ADD COLUMN canonical_fingerprint TEXT NOT NULL DEFAULT ''`); err != nil {
				return fmt.Errorf("failed to add canonical fingerprint column: %w", err)
			}
			if _, err := tx.Exec(`CREATE INDEX idx_records_canonical ON records(canonical_fingerprint)`); err != nil {
				return fmt.Errorf("failed to index canonical fingerprints: %w", err)
			}
			return backfillCanonicalFingerprints(tx)
		},
	},
}

// backfillCanonicalFingerprints computes the post-categorization key for every
// stored record. Fingerprints are derived in Go, so this cannot be a plain
// UPDATE statement.
func backfillCanonicalFingerprints(tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT ` + recordColumns + ` FROM records`)
	if err != nil {
		return fmt.Errorf("failed to load records for backfill: %w", err)
	}
	records, err := collectRecords(rows)
	_ = rows.Close()
	if err != nil {
		return fmt.Errorf("failed to scan records for backfill: %w", err)
	}

	stmt, err := tx.Prepare(`UPDATE records SET canonical_fingerprint = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare backfill update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		if _, err := stmt.Exec(records[i].CanonicalFingerprint(), records[i].ID); err != nil {
			return fmt.Errorf("failed to backfill record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
