package routing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

var (
	venue    = domain.NewCoordinate(-24.98024, -53.33931)
	moved    = domain.NewCoordinate(-24.98030, -53.33940)
	johnDear = domain.NewCoordinate(-24.980359, -53.339052)
)

// gatedProvider blocks every lookup until release is closed or the
// lookup's context ends.
type gatedProvider struct {
	mu      sync.Mutex
	origins []domain.Coordinate
	release chan struct{}
	err     error
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{release: make(chan struct{})}
}

func (p *gatedProvider) GetRoute(ctx context.Context, origin, destination domain.Coordinate) (*domain.Route, error) {
	p.mu.Lock()
	p.origins = append(p.origins, origin)
	p.mu.Unlock()

	select {
	case <-p.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return &domain.Route{
		Origin:      origin,
		Destination: destination,
		Path:        orb.LineString{{origin.Lon, origin.Lat}, {destination.Lon, destination.Lat}},
	}, nil
}

type recorder struct {
	events chan ports.RouteEvent
}

func newRecorder() *recorder {
	return &recorder{events: make(chan ports.RouteEvent, 16)}
}

func (r *recorder) notify(ev ports.RouteEvent) {
	r.events <- ev
}

func (r *recorder) next(t *testing.T) ports.RouteEvent {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for route event")
		return ports.RouteEvent{}
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("unexpected event %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestComputeRouteEmitsStartedThenFound(t *testing.T) {
	p := newGatedProvider()
	close(p.release)
	s := NewService(p, time.Second, zap.NewNop(), nil)
	defer s.Close()

	rec := newRecorder()
	h := s.ComputeRoute(context.Background(), venue, johnDear, rec.notify)
	if h == "" {
		t.Fatalf("empty handle")
	}

	if ev := rec.next(t); ev.Kind != ports.RoutingStarted || ev.Handle != h {
		t.Fatalf("first event = %v (%s), want routingstart (%s)", ev.Kind, ev.Handle, h)
	}
	ev := rec.next(t)
	if ev.Kind != ports.RoutesFound {
		t.Fatalf("second event = %v, want routesfound", ev.Kind)
	}
	if !ev.Route.Destination.Equal(johnDear) {
		t.Fatalf("destination = %v, want %v", ev.Route.Destination, johnDear)
	}
	rec.none(t)
}

func TestComputeRouteReportsFailure(t *testing.T) {
	p := newGatedProvider()
	p.err = errors.New("no route")
	close(p.release)
	s := NewService(p, time.Second, zap.NewNop(), nil)
	defer s.Close()

	rec := newRecorder()
	s.ComputeRoute(context.Background(), venue, johnDear, rec.notify)

	rec.next(t)
	ev := rec.next(t)
	if ev.Kind != ports.RoutingError {
		t.Fatalf("kind = %v, want routingerror", ev.Kind)
	}
	if !errors.Is(ev.Err, domain.ErrRouteComputationFailed) {
		t.Fatalf("err = %v, want ErrRouteComputationFailed", ev.Err)
	}
}

func TestReplaceOriginDropsInFlightResult(t *testing.T) {
	p := newGatedProvider()
	s := NewService(p, time.Second, zap.NewNop(), nil)
	defer s.Close()

	rec := newRecorder()
	h := s.ComputeRoute(context.Background(), venue, johnDear, rec.notify)
	rec.next(t)

	if err := s.ReplaceOrigin(context.Background(), h, moved); err != nil {
		t.Fatalf("ReplaceOrigin: %v", err)
	}
	if ev := rec.next(t); ev.Kind != ports.RoutingStarted {
		t.Fatalf("kind = %v, want routingstart", ev.Kind)
	}

	close(p.release)

	ev := rec.next(t)
	if ev.Kind != ports.RoutesFound {
		t.Fatalf("kind = %v, want routesfound", ev.Kind)
	}
	if !ev.Route.Origin.Equal(moved) {
		t.Fatalf("origin = %v, want %v", ev.Route.Origin, moved)
	}
	if !ev.Route.Destination.Equal(johnDear) {
		t.Fatalf("destination = %v, want %v", ev.Route.Destination, johnDear)
	}
	rec.none(t)
}

func TestDisposeSuppressesEventsAndIsIdempotent(t *testing.T) {
	p := newGatedProvider()
	s := NewService(p, time.Second, zap.NewNop(), nil)
	defer s.Close()

	rec := newRecorder()
	h := s.ComputeRoute(context.Background(), venue, johnDear, rec.notify)
	rec.next(t)

	s.Dispose(h)
	s.Dispose(h)
	close(p.release)
	rec.none(t)

	if s.Active() != 0 {
		t.Fatalf("active = %d, want 0", s.Active())
	}
	if err := s.ReplaceOrigin(context.Background(), h, moved); !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("err = %v, want ErrUnknownHandle", err)
	}
}

func TestComputeRouteTimesOut(t *testing.T) {
	p := newGatedProvider()
	s := NewService(p, 20*time.Millisecond, zap.NewNop(), nil)
	defer s.Close()

	rec := newRecorder()
	s.ComputeRoute(context.Background(), venue, johnDear, rec.notify)
	rec.next(t)

	ev := rec.next(t)
	if ev.Kind != ports.RoutingError {
		t.Fatalf("kind = %v, want routingerror", ev.Kind)
	}
}

func TestComputationOutlivesCallerContext(t *testing.T) {
	p := newGatedProvider()
	s := NewService(p, time.Second, zap.NewNop(), nil)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rec := newRecorder()
	s.ComputeRoute(ctx, venue, johnDear, rec.notify)
	rec.next(t)
	cancel()
	close(p.release)

	if ev := rec.next(t); ev.Kind != ports.RoutesFound {
		t.Fatalf("kind = %v, want routesfound", ev.Kind)
	}
}
