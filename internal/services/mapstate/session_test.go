package mapstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

type fakeSubscription struct {
	mu      sync.Mutex
	stopped int
}

func (s *fakeSubscription) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

type fakeWatcher struct {
	handler func(ports.PositionEvent)
	opts    ports.WatchOptions
	sub     *fakeSubscription
	err     error
}

func (w *fakeWatcher) Start(ctx context.Context, opts ports.WatchOptions, handler func(ports.PositionEvent)) (ports.Subscription, error) {
	if w.err != nil {
		return nil, w.err
	}
	w.handler = handler
	w.opts = opts
	w.sub = &fakeSubscription{}
	return w.sub, nil
}

func startTestSession(t *testing.T, w *fakeWatcher, routes ports.RouteService) (*Session, *fakeView) {
	t.Helper()
	view := newFakeView()
	s, err := StartSession(context.Background(), "device-1", Deps{
		View:     view,
		Notifier: &fakeNotifier{},
		Routes:   routes,
		Points:   newFakePoints(),
		Stands:   testStands,
		Log:      zap.NewNop(),
	}, Options{Center: venue, Zoom: 16}, w, DefaultWatchOptions)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s, view
}

func TestSessionAppliesPushedPositions(t *testing.T) {
	w := &fakeWatcher{}
	s, _ := startTestSession(t, w, &fakeRoutes{})
	ctx := context.Background()

	if !w.opts.EnableHighAccuracy || w.opts.SetView {
		t.Fatalf("watch options = %+v", w.opts)
	}

	w.handler(ports.PositionFound(venue, 5, time.Now()))

	st, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Phase != HasFixNoRoute.String() {
		t.Fatalf("phase = %s, want %s", st.Phase, HasFixNoRoute)
	}
	if st.User == nil || !st.User.Equal(venue) {
		t.Fatalf("user = %v, want %v", st.User, venue)
	}
	if st.Accuracy != 5 {
		t.Fatalf("accuracy = %v, want 5", st.Accuracy)
	}
}

func TestSessionRoutesWithAsyncService(t *testing.T) {
	w := &fakeWatcher{}
	routes := &asyncRoutes{}
	s, _ := startTestSession(t, w, routes)
	ctx := context.Background()

	w.handler(ports.PositionFound(venue, 5, time.Now()))
	if err := s.SelectStand(ctx, idx(0)); err != nil {
		t.Fatalf("SelectStand: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		st, err := s.Status(ctx)
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if st.Phase == HasFixRouteActive.String() {
			if st.Recalculating {
				t.Fatalf("indicator still visible with route active")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("phase = %s, want %s", st.Phase, HasFixRouteActive)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSessionPreconditionErrorsReachCaller(t *testing.T) {
	s, _ := startTestSession(t, &fakeWatcher{}, &fakeRoutes{})

	err := s.SaveCarLocation(context.Background())
	var pe *domain.PreconditionError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PreconditionError", err)
	}
	if pe.Message != MsgLocationNotFound {
		t.Fatalf("message = %q, want %q", pe.Message, MsgLocationNotFound)
	}

	if err := s.RouteToCar(context.Background()); !errors.Is(err, domain.ErrNoSavedCar) {
		t.Fatalf("err = %v, want ErrNoSavedCar", err)
	}
}

func TestSessionCloseStopsWatchAndLoop(t *testing.T) {
	w := &fakeWatcher{}
	s, _ := startTestSession(t, w, &fakeRoutes{})

	before := s.LastActive()
	time.Sleep(time.Millisecond)
	s.Touch()
	if !s.LastActive().After(before) {
		t.Fatalf("Touch did not advance LastActive")
	}

	s.Close(context.Background())
	s.Close(context.Background())

	if w.sub.stopped != 1 {
		t.Fatalf("subscription stopped %d times, want 1", w.sub.stopped)
	}
	if _, err := s.Status(context.Background()); !errors.Is(err, ErrLoopClosed) {
		t.Fatalf("Status after close = %v, want ErrLoopClosed", err)
	}
}

func TestStartSessionWatchFailure(t *testing.T) {
	w := &fakeWatcher{err: errors.New("no gpsd")}
	_, err := StartSession(context.Background(), "device-2", Deps{
		View:   newFakeView(),
		Routes: &fakeRoutes{},
		Points: newFakePoints(),
	}, Options{Center: venue, Zoom: 16}, w, DefaultWatchOptions)
	if err == nil {
		t.Fatalf("StartSession succeeded, want error")
	}
}

// asyncRoutes answers from another goroutine, like the real service.
type asyncRoutes struct {
	mu sync.Mutex
	n  int
}

func (r *asyncRoutes) ComputeRoute(ctx context.Context, origin, destination domain.Coordinate, notify func(ports.RouteEvent)) ports.RouteHandle {
	r.mu.Lock()
	r.n++
	h := ports.RouteHandle("async")
	r.mu.Unlock()

	go func() {
		notify(ports.RouteEvent{Handle: h, Kind: ports.RoutingStarted})
		notify(ports.RouteEvent{Handle: h, Kind: ports.RoutesFound, Route: &domain.Route{Origin: origin, Destination: destination}})
	}()
	return h
}

func (r *asyncRoutes) ReplaceOrigin(ctx context.Context, h ports.RouteHandle, origin domain.Coordinate) error {
	return nil
}

func (r *asyncRoutes) Dispose(h ports.RouteHandle) {}
