// Package geolocation provides position sources for map sessions.
package geolocation

import (
	"context"
	"errors"
	"sync"

	"standmap-service/internal/ports"
)

var ErrAlreadyWatching = errors.New("geolocation: watch already active")

// PushWatcher forwards readings that the client pushes to the server
// (the browser's watchPosition results). One watch at a time.
type PushWatcher struct {
	mu      sync.Mutex
	handler func(ports.PositionEvent)
	gen     int
}

func NewPushWatcher() *PushWatcher {
	return &PushWatcher{}
}

func (w *PushWatcher) Start(ctx context.Context, opts ports.WatchOptions, handler func(ports.PositionEvent)) (ports.Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.handler != nil {
		return nil, ErrAlreadyWatching
	}
	w.handler = handler
	w.gen++

	sub := &pushSubscription{w: w, gen: w.gen}
	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			sub.Stop()
		}()
	}
	return sub, nil
}

// Push delivers ev to the active watch. It reports false when nobody is
// watching.
func (w *PushWatcher) Push(ev ports.PositionEvent) bool {
	w.mu.Lock()
	h := w.handler
	w.mu.Unlock()

	if h == nil {
		return false
	}
	h(ev)
	return true
}

func (w *PushWatcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.handler != nil
}

type pushSubscription struct {
	w    *PushWatcher
	gen  int
	once sync.Once
}

func (s *pushSubscription) Stop() {
	s.once.Do(func() {
		s.w.mu.Lock()
		defer s.w.mu.Unlock()
		if s.w.gen == s.gen {
			s.w.handler = nil
		}
	})
}
