package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/platform/obs"
)

// SQL-backed implementation of the StandCatalog port.
type SQLStandRepository struct {
	DB  *sql.DB
	log *zap.Logger
}

func NewSQLStandRepository(db *sql.DB, log *zap.Logger) *SQLStandRepository {
	return &SQLStandRepository{DB: db, log: log}
}

// Return all stands in display order.
func (s *SQLStandRepository) ListStands(ctx context.Context) (_ []domain.Stand, err error) {
	defer obs.Time(ctx, s.log, "stands.sql.ListStands")(&err)

	if s.DB == nil {
		return nil, errors.New("sql stand repository: DB is nil")
	}

	query := `
	SELECT
		stand_id,
		name,
		lat,
		lng,
		img
	FROM stands
	ORDER BY sort_order;
	`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list stands: query stands table: %w", err)
	}
	defer rows.Close()

	stands := make([]domain.Stand, 0, 16)
	for rows.Next() {
		var st domain.Stand
		err := rows.Scan(&st.ID, &st.Name, &st.Coords.Lat, &st.Coords.Lon, &st.Image)
		if err != nil {
			return nil, fmt.Errorf("list stands: scan row: %w", err)
		}
		stands = append(stands, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list stands: row iteration: %w", err)
	}

	return stands, nil
}
