package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"standmap-service/internal/domain"
)

// Initialize the stand catalog schema. Valid for Postgres and SQLite.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createStandsQuery := `
	CREATE TABLE IF NOT EXISTS stands (
		sort_order INTEGER PRIMARY KEY,
		stand_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		img TEXT NOT NULL DEFAULT ''
	);
	`

	statements := []string{
		createStandsQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type StandSeed struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Img  string  `json:"img,omitempty"`
}

// LoadStandsJSON reads and validates a stand catalog file. Order in the
// file is display order.
func LoadStandsJSON(jsonPath string) ([]domain.Stand, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("load stands: read %q: %w", jsonPath, err)
	}

	var data []StandSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return nil, fmt.Errorf("load stands: parse json: %w", err)
	}

	return standsFromSeeds(data)
}

func standsFromSeeds(data []StandSeed) ([]domain.Stand, error) {
	stands := make([]domain.Stand, 0, len(data))
	seen := make(map[string]struct{}, len(data))

	for i, item := range data {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return nil, fmt.Errorf("load stands: item at index %d: name cannot be empty", i+1)
		}

		id := strings.TrimSpace(item.ID)
		if id == "" {
			id = slug(name)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("load stands: item at index %d: duplicate id %q", i+1, id)
		}
		seen[id] = struct{}{}

		coords := domain.NewCoordinate(item.Lat, item.Lng)
		if !coords.Valid() {
			return nil, fmt.Errorf("load stands: item %q: invalid coordinates %v", name, coords)
		}

		stands = append(stands, domain.Stand{
			ID:     id,
			Name:   name,
			Coords: coords,
			Image:  strings.TrimSpace(item.Img),
		})
	}

	return stands, nil
}

// SeedStands replaces the stored catalog with stands, keeping their order.
func SeedStands(ctx context.Context, db *sql.DB, dialect Dialect, stands []domain.Stand) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed stands: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM stands;`); err != nil {
		return fmt.Errorf("seed stands: clear table: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO stands (
		sort_order,
		stand_id,
		name,
		lat,
		lng,
		img
	)
	VALUES (%s, %s, %s, %s, %s, %s);
	`, dialect.bind(1), dialect.bind(2), dialect.bind(3), dialect.bind(4), dialect.bind(5), dialect.bind(6))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("seed stands: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, s := range stands {
		if _, err := stmt.ExecContext(ctx, i, s.ID, s.Name, s.Coords.Lat, s.Coords.Lon, s.Image); err != nil {
			return fmt.Errorf("seed stands: insert stand_id=%s: %w", s.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed stands: commit tx: %w", err)
	}

	return nil
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
