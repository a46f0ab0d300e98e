package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SQLite backed KeyValueStore over the kv_store table.
type SqliteStore struct {
	DB *sql.DB
}

func NewSqliteStore(db *sql.DB) *SqliteStore {
	return &SqliteStore{DB: db}
}

// Fetch the value stored under key.
func (s *SqliteStore) GetItem(ctx context.Context, key string) (string, bool, error) {
	if s.DB == nil {
		return "", false, errors.New("kv store: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return "", false, errors.New("get kv item: key must not be empty")
	}

	q := `
	SELECT
		value
	FROM kv_store
	WHERE key = ?;
	`

	var value string
	if err := s.DB.QueryRowContext(ctx, q, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get kv item key=%q: %w", key, err)
	}

	return value, true, nil
}

// Store value under key, replacing any previous value.
func (s *SqliteStore) SetItem(ctx context.Context, key string, value string) error {
	if s.DB == nil {
		return errors.New("kv store: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert kv item: key must not be empty")
	}

	q := `
	INSERT OR REPLACE INTO kv_store (
		key,
		value,
		updated_at
	)
	VALUES (?, ?, CURRENT_TIMESTAMP);
	`

	if _, err := s.DB.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("insert kv item key=%q: %w", key, err)
	}

	return nil
}
