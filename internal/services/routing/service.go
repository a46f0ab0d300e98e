// Package routing turns a synchronous DirectionsProvider into the
// asynchronous, handle-based RouteService used by map sessions.
package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/platform/errreport"
	"standmap-service/internal/ports"
)

var ErrUnknownHandle = errors.New("routing: unknown route handle")

// computation is one live route. gen increases every time the route is
// (re)computed; a worker only reports if its gen is still current.
type computation struct {
	origin      domain.Coordinate
	destination domain.Coordinate
	notify      func(ports.RouteEvent)
	cancel      context.CancelFunc
	gen         uint64
}

// Service implements ports.RouteService.
//
// notify callbacks are invoked from worker goroutines while the service
// lock is held, so they must not block or call back into the Service.
// Map sessions satisfy this by posting the event onto their own loop.
type Service struct {
	provider ports.DirectionsProvider
	timeout  time.Duration
	log      *zap.Logger
	reporter *errreport.Reporter

	mu     sync.Mutex
	routes map[ports.RouteHandle]*computation
	wg     sync.WaitGroup
}

func NewService(provider ports.DirectionsProvider, timeout time.Duration, log *zap.Logger, reporter *errreport.Reporter) *Service {
	return &Service{
		provider: provider,
		timeout:  timeout,
		log:      log,
		reporter: reporter,
		routes:   make(map[ports.RouteHandle]*computation),
	}
}

func (s *Service) ComputeRoute(
	ctx context.Context,
	origin domain.Coordinate,
	destination domain.Coordinate,
	notify func(ports.RouteEvent),
) ports.RouteHandle {
	h := ports.RouteHandle(uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()

	c := &computation{origin: origin, destination: destination, notify: notify}
	s.routes[h] = c
	s.startLocked(ctx, h, c)

	return h
}

func (s *Service) ReplaceOrigin(ctx context.Context, h ports.RouteHandle, origin domain.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.routes[h]
	if !ok {
		return fmt.Errorf("replace origin %s: %w", h, ErrUnknownHandle)
	}
	c.origin = origin
	s.startLocked(ctx, h, c)

	return nil
}

func (s *Service) Dispose(h ports.RouteHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.routes[h]
	if !ok {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	delete(s.routes, h)
}

// Active returns the number of routes not yet disposed.
func (s *Service) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routes)
}

// Close cancels every computation and waits for the workers to exit.
func (s *Service) Close() {
	s.mu.Lock()
	for h, c := range s.routes {
		if c.cancel != nil {
			c.cancel()
		}
		delete(s.routes, h)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// startLocked cancels any in-flight work for c and launches a new worker.
func (s *Service) startLocked(parent context.Context, h ports.RouteHandle, c *computation) {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++

	// The computation outlives the request that started it.
	base := context.WithoutCancel(parent)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(base, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	c.cancel = cancel

	gen := c.gen
	origin, destination := c.origin, c.destination

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, h, gen, origin, destination)
	}()
}

func (s *Service) run(ctx context.Context, h ports.RouteHandle, gen uint64, origin, destination domain.Coordinate) {
	s.emit(h, gen, ports.RouteEvent{Handle: h, Kind: ports.RoutingStarted})

	route, err := s.provider.GetRoute(ctx, origin, destination)
	if err != nil {
		if errors.Is(err, context.Canceled) && !s.current(h, gen) {
			return
		}

		err = fmt.Errorf("%w: %v", domain.ErrRouteComputationFailed, err)
		if s.emit(h, gen, ports.RouteEvent{Handle: h, Kind: ports.RoutingError, Err: err}) {
			s.reporter.Capture(err, map[string]string{"component": "routing"})
		}
		return
	}

	s.emit(h, gen, ports.RouteEvent{Handle: h, Kind: ports.RoutesFound, Route: route})
}

func (s *Service) current(h ports.RouteHandle, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.routes[h]
	return ok && c.gen == gen
}

// emit delivers ev unless the route was disposed or recomputed since gen.
func (s *Service) emit(h ports.RouteHandle, gen uint64, ev ports.RouteEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.routes[h]
	if !ok || c.gen != gen {
		s.log.Debug("dropping stale route event",
			zap.String("handle", string(h)),
			zap.Stringer("kind", ev.Kind),
		)
		return false
	}
	c.notify(ev)
	return true
}
