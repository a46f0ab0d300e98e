// Package sessions keeps one map session per device.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"standmap-service/internal/adapters/geolocation"
	"standmap-service/internal/adapters/kv"
	"standmap-service/internal/adapters/view"
	"standmap-service/internal/domain"
	"standmap-service/internal/platform/errreport"
	"standmap-service/internal/ports"
	"standmap-service/internal/services/mapstate"
	"standmap-service/internal/services/pointstore"
)

var (
	ErrInvalidDeviceID = errors.New("sessions: invalid device id")
	ErrPushUnsupported = errors.New("sessions: positions come from a server-side source")
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Config struct {
	Map         mapstate.Options
	Watch       ports.WatchOptions
	IdleTimeout time.Duration
}

// Handle is an open session and the pieces the HTTP layer needs.
type Handle struct {
	ID      string
	Session *mapstate.Session
	Scene   *view.Scene
	Watcher ports.PositionWatcher
}

// PushPosition hands a client-side reading to the session.
func (h *Handle) PushPosition(ev ports.PositionEvent) error {
	pw, ok := h.Watcher.(*geolocation.PushWatcher)
	if !ok {
		return ErrPushUnsupported
	}
	h.Session.Touch()
	if !pw.Push(ev) {
		return fmt.Errorf("push position: session %s is not watching", h.ID)
	}
	return nil
}

type Manager struct {
	cfg        Config
	routes     ports.RouteService
	store      ports.KeyValueStore
	stands     []domain.Stand
	newWatcher func() ports.PositionWatcher
	reporter   *errreport.Reporter
	log        *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Handle
}

// NewManager builds a manager. newWatcher is called once per session;
// when nil every session gets a PushWatcher.
func NewManager(
	cfg Config,
	routes ports.RouteService,
	store ports.KeyValueStore,
	stands []domain.Stand,
	newWatcher func() ports.PositionWatcher,
	reporter *errreport.Reporter,
	log *zap.Logger,
) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	if newWatcher == nil {
		newWatcher = func() ports.PositionWatcher { return geolocation.NewPushWatcher() }
	}
	return &Manager{
		cfg:        cfg,
		routes:     routes,
		store:      store,
		stands:     stands,
		newWatcher: newWatcher,
		reporter:   reporter,
		log:        log,
		sessions:   make(map[string]*Handle),
	}
}

// Open returns the session for deviceID, starting one if needed. An empty
// deviceID gets a fresh uuid. created reports whether a session was started.
func (m *Manager) Open(ctx context.Context, deviceID string) (_ *Handle, created bool, err error) {
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	if !deviceIDPattern.MatchString(deviceID) {
		return nil, false, ErrInvalidDeviceID
	}

	if h, ok := m.Get(deviceID); ok {
		h.Session.Touch()
		return h, false, nil
	}

	// Starting a session loads the saved car from storage, so it runs
	// without holding m.mu.
	h, err := m.start(ctx, deviceID)
	if err != nil {
		return nil, false, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[deviceID]; ok {
		m.mu.Unlock()
		closeHandle(ctx, h)
		existing.Session.Touch()
		return existing, false, nil
	}
	m.sessions[deviceID] = h
	m.mu.Unlock()

	return h, true, nil
}

func (m *Manager) start(ctx context.Context, deviceID string) (*Handle, error) {
	hub := view.NewHub(m.log)
	scene := view.NewScene(hub)
	watcher := m.newWatcher()
	points := pointstore.New(kv.NewNamespaced(m.store, deviceID), m.log)

	s, err := mapstate.StartSession(ctx, deviceID, mapstate.Deps{
		View:     scene,
		Notifier: scene,
		Routes:   m.routes,
		Points:   points,
		Stands:   m.stands,
		Reporter: m.reporter,
		Log:      m.log,
	}, m.cfg.Map, watcher, m.cfg.Watch)
	if err != nil {
		hub.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	return &Handle{ID: deviceID, Session: s, Scene: scene, Watcher: watcher}, nil
}

func (m *Manager) Get(deviceID string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.sessions[deviceID]
	return h, ok
}

// Close tears down the session for deviceID. It reports false if there was
// none.
func (m *Manager) Close(ctx context.Context, deviceID string) bool {
	m.mu.Lock()
	h, ok := m.sessions[deviceID]
	delete(m.sessions, deviceID)
	m.mu.Unlock()

	if !ok {
		return false
	}
	closeHandle(ctx, h)
	return true
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ReapIdle closes sessions unused since before now-IdleTimeout.
func (m *Manager) ReapIdle(ctx context.Context, now time.Time) int {
	if m.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.cfg.IdleTimeout)

	var idle []*Handle
	m.mu.Lock()
	for id, h := range m.sessions {
		if h.Session.LastActive().Before(cutoff) {
			idle = append(idle, h)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, h := range idle {
		m.log.Info("reaping idle session", zap.String("session", h.ID))
		closeHandle(ctx, h)
	}
	return len(idle)
}

// Run reaps idle sessions periodically until ctx ends.
func (m *Manager) Run(ctx context.Context) {
	if m.cfg.IdleTimeout <= 0 {
		return
	}
	interval := m.cfg.IdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.ReapIdle(ctx, now)
		}
	}
}

// CloseAll tears down every session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Handle, 0, len(m.sessions))
	for id, h := range m.sessions {
		all = append(all, h)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, h := range all {
		closeHandle(ctx, h)
	}
}

// Subscribe streams the session's view commands.
func (h *Handle) Subscribe(buffer int) (<-chan view.Command, func()) {
	return h.Scene.Hub().Subscribe(buffer)
}

func closeHandle(ctx context.Context, h *Handle) {
	h.Session.Close(ctx)
	h.Scene.Hub().Close()
}
