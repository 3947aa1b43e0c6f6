package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/kozeni/kozeni/internal/storage"
)

// openStorage opens the configured database and brings the schema current.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := expandPath(viper.GetString("database.path"))
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".config", "kozeni", "kozeni.db")
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// expandPath expands a leading ~ and $VAR references in a configured path.
func expandPath(path string) string {
	switch {
	case path == "~":
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	case strings.HasPrefix(path, "~/"):
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// readImportFile loads an import file and applies the tokenizer's caller
// obligations: strip a leading byte-order mark and normalize line endings.
func readImportFile(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied import path
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}
