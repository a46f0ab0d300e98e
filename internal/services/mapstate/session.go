package mapstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"standmap-service/internal/ports"
)

// DefaultWatchOptions mirrors what the browser widget asks the platform for:
// high accuracy, no recentering on fixes.
var DefaultWatchOptions = ports.WatchOptions{
	EnableHighAccuracy: true,
	SetView:            false,
	MaxZoom:            16,
}

// Session binds one controller to its loop and position watch.
type Session struct {
	ID string

	loop   *Loop
	ctrl   *Controller
	sub    ports.Subscription
	cancel context.CancelFunc
	log    *zap.Logger

	closeOnce sync.Once

	mu         sync.Mutex
	lastActive time.Time
}

// StartSession runs the loop, renders the initial view and starts watching
// positions. deps.Schedule is replaced with the session loop.
func StartSession(
	ctx context.Context,
	id string,
	deps Deps,
	opts Options,
	watcher ports.PositionWatcher,
	watchOpts ports.WatchOptions,
) (*Session, error) {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	log := deps.Log.With(zap.String("session", id))
	deps.Log = log

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	loop := NewLoop()
	deps.Schedule = func(fn func()) {
		if !loop.Post(fn) {
			log.Debug("loop closed, dropping scheduled work")
		}
	}

	s := &Session{
		ID:         id,
		loop:       loop,
		ctrl:       NewController(deps, opts),
		cancel:     cancel,
		log:        log,
		lastActive: time.Now(),
	}

	go loop.Run(runCtx)

	if err := loop.Call(ctx, func() { s.ctrl.Init(runCtx) }); err != nil {
		s.shutdown()
		return nil, fmt.Errorf("start session %s: init: %w", id, err)
	}

	sub, err := watcher.Start(runCtx, watchOpts, func(ev ports.PositionEvent) {
		loop.Post(func() { s.ctrl.HandlePosition(runCtx, ev) })
	})
	if err != nil {
		s.shutdown()
		return nil, fmt.Errorf("start session %s: watch position: %w", id, err)
	}
	s.sub = sub

	log.Info("map session started")
	return s, nil
}

// Do runs op on the session loop and returns its error.
func (s *Session) Do(ctx context.Context, op func(c *Controller) error) error {
	s.touch()

	var opErr error
	if err := s.loop.Call(ctx, func() { opErr = op(s.ctrl) }); err != nil {
		return err
	}
	return opErr
}

func (s *Session) SelectStand(ctx context.Context, index *int) error {
	return s.Do(ctx, func(c *Controller) error { return c.SelectStand(ctx, index) })
}

func (s *Session) SaveCarLocation(ctx context.Context) error {
	return s.Do(ctx, func(c *Controller) error { return c.SaveCarLocation(ctx) })
}

func (s *Session) RouteToCar(ctx context.Context) error {
	return s.Do(ctx, func(c *Controller) error { return c.RouteToCar(ctx) })
}

func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.Do(ctx, func(c *Controller) error {
		st = c.Status()
		return nil
	})
	return st, err
}

// Touch marks the session as used, e.g. when the client pushes a position.
func (s *Session) Touch() { s.touch() }

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Close stops the watch, tears the controller down and stops the loop.
// Safe to call more than once.
func (s *Session) Close(ctx context.Context) {
	s.closeOnce.Do(func() {
		if s.sub != nil {
			s.sub.Stop()
		}
		if err := s.loop.Call(ctx, s.ctrl.Teardown); err != nil {
			s.log.Warn("teardown did not run", zap.Error(err))
		}
		s.shutdown()
		s.log.Info("map session closed")
	})
}

func (s *Session) shutdown() {
	s.loop.Stop()
	select {
	case <-s.loop.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn("session loop did not stop in time")
	}
	s.cancel()
}
