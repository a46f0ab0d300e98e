package directions

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"standmap-service/internal/domain"
)

// MockDirectionsProvider returns straight-line routes, walking at ~5 km/h.
// Destinations listed in Fail produce an error.
type MockDirectionsProvider struct {
	mu    sync.Mutex
	calls int
	Fail  map[domain.Coordinate]error
}

func NewMockDirectionsProvider() *MockDirectionsProvider {
	return &MockDirectionsProvider{Fail: make(map[domain.Coordinate]error)}
}

func (p *MockDirectionsProvider) GetRoute(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
	p.mu.Lock()
	p.calls++
	failErr, fail := p.Fail[destination]
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fail {
		return nil, fmt.Errorf("mock route to %v: %w", destination, failErr)
	}

	a := orb.Point{origin.Lon, origin.Lat}
	b := orb.Point{destination.Lon, destination.Lat}
	meters := geo.Distance(a, b)

	return &domain.Route{
		Origin:          origin,
		Destination:     destination,
		Path:            orb.LineString{a, b},
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(meters / 1.4)),
	}, nil
}

// Calls returns how many routes were requested.
func (p *MockDirectionsProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
