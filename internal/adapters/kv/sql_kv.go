package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"standmap-service/internal/platform/obs"
)

// SQLStore is a Postgres-backed KeyValueStore over the kv_store table.
type SQLStore struct {
	DB  *sql.DB
	log *zap.Logger
}

func NewSQLStore(db *sql.DB, log *zap.Logger) *SQLStore {
	return &SQLStore{DB: db, log: log}
}

// Fetch the value stored under key.
func (s *SQLStore) GetItem(ctx context.Context, key string) (_ string, _ bool, err error) {
	defer obs.Time(ctx, s.log, "kv.sql.GetItem")(&err)

	if s.DB == nil {
		return "", false, errors.New("kv store: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return "", false, errors.New("get kv item: key must not be empty")
	}

	q := `
	SELECT value
	FROM kv_store
	WHERE key = $1;
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
func (s *SQLStore) SetItem(ctx context.Context, key string, value string) (err error) {
	defer obs.Time(ctx, s.log, "kv.sql.SetItem")(&err)

	if s.DB == nil {
		return errors.New("kv store: db is nil")
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("insert kv item: key must not be empty")
	}

	q := `
	INSERT INTO kv_store (key, value, updated_at)
	VALUES ($1, $2, CURRENT_TIMESTAMP)
	ON CONFLICT (key) DO UPDATE
	SET value = EXCLUDED.value,
		updated_at = EXCLUDED.updated_at;
	`

	if _, err := s.DB.ExecContext(ctx, q, key, value); err != nil {
		return fmt.Errorf("insert kv item key=%q: %w", key, err)
	}

	return nil
}
