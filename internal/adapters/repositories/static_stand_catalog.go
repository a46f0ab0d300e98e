package repositories

import (
	"context"

	"standmap-service/internal/domain"
)

const johnDeereImage = "assets/images/johndeere.jpg"

// DefaultStands is the catalog the venue shipped with.
func DefaultStands() []domain.Stand {
	return []domain.Stand{
		{ID: "john-dear", Name: "John Dear", Coords: domain.NewCoordinate(-24.980359, -53.339052), Image: johnDeereImage},
		{ID: "jacto", Name: "Jacto", Coords: domain.NewCoordinate(-24.980052, -53.339754)},
		{ID: "prisma", Name: "Prisma", Coords: domain.NewCoordinate(-24.983057, -53.338978)},
		{ID: "new-holland", Name: "New Holland", Coords: domain.NewCoordinate(-24.978958, -53.341273)},
		{ID: "coamo", Name: "Coamo", Coords: domain.NewCoordinate(-24.978659, -53.339032)},
		{ID: "perche", Name: "Perche", Coords: domain.NewCoordinate(-24.97814669824593, -53.34026992321015)},
	}
}

// StaticStandCatalog serves a fixed, in-memory list.
type StaticStandCatalog struct {
	stands []domain.Stand
}

func NewStaticStandCatalog(stands []domain.Stand) *StaticStandCatalog {
	return &StaticStandCatalog{stands: append([]domain.Stand(nil), stands...)}
}

func (c *StaticStandCatalog) ListStands(ctx context.Context) ([]domain.Stand, error) {
	return append([]domain.Stand(nil), c.stands...), nil
}
