package ports

import (
	"context"

	"standmap-service/internal/domain"
)

// Port: a boundary for retrieving the static stand catalog.
type StandCatalog interface {
	// Retrieve all stands in display order.
	ListStands(ctx context.Context) ([]domain.Stand, error)
}
