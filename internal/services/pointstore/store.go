// Package pointstore persists single named coordinates (the saved car
// location) as JSON over a string key/value store.
package pointstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

// DefaultCarKey is the key the browser widget has always used.
const DefaultCarKey = "showRuralCarLocation"

type storedPoint struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type Store struct {
	kv  ports.KeyValueStore
	log *zap.Logger
}

func New(kv ports.KeyValueStore, log *zap.Logger) *Store {
	return &Store{kv: kv, log: log}
}

// Save overwrites the coordinate stored under key.
func (s *Store) Save(ctx context.Context, key string, c domain.Coordinate) error {
	lat, lng := c.Lat, c.Lon
	b, err := json.Marshal(storedPoint{Lat: &lat, Lng: &lng})
	if err != nil {
		return fmt.Errorf("save point %q: marshal: %w", key, err)
	}

	if err := s.kv.SetItem(ctx, key, string(b)); err != nil {
		return fmt.Errorf("save point %q: %w", key, err)
	}
	return nil
}

// Load returns the coordinate under key. Missing, unreadable and malformed
// values are all reported as absent.
func (s *Store) Load(ctx context.Context, key string) (domain.Coordinate, bool) {
	raw, ok, err := s.kv.GetItem(ctx, key)
	if err != nil {
		s.log.Warn("load point: storage read failed", zap.String("key", key), zap.Error(err))
		return domain.Coordinate{}, false
	}
	if !ok {
		return domain.Coordinate{}, false
	}

	c, err := decode(raw)
	if err != nil {
		s.log.Debug("load point: ignoring stored value", zap.String("key", key), zap.Error(err))
		return domain.Coordinate{}, false
	}
	return c, true
}

func decode(raw string) (domain.Coordinate, error) {
	var p storedPoint
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", domain.ErrStorageMalformed, err)
	}
	if p.Lat == nil || p.Lng == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: missing lat/lng", domain.ErrStorageMalformed)
	}

	c := domain.NewCoordinate(*p.Lat, *p.Lng)
	if !c.Valid() {
		return domain.Coordinate{}, fmt.Errorf("%w: out of range %v", domain.ErrStorageMalformed, c)
	}
	return c, nil
}
