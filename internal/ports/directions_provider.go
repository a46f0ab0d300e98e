package ports

import (
	"context"

	"standmap-service/internal/domain"
)

// Contract for retrieving a path between two coordinates from a routing backend.
type DirectionsProvider interface {
	// Return the route from origin to destination.
	GetRoute(ctx context.Context, origin domain.Coordinate, destination domain.Coordinate) (*domain.Route, error)
}
