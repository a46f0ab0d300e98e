package geolocation

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

// TPV is the subset of a gpsd time-position-velocity report we use.
type TPV struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Time  string  `json:"time"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Eph   float64 `json:"eph"`
}

const watchCommand = "?WATCH={\"enable\":true,\"json\":true}\n"

// GPSDWatcher reads fixes from a gpsd daemon, for kiosks and vehicles
// with a local receiver instead of a browser.
type GPSDWatcher struct {
	addr           string
	reconnectDelay time.Duration
	dialTimeout    time.Duration
	log            *zap.Logger
}

func NewGPSDWatcher(addr string, log *zap.Logger) *GPSDWatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &GPSDWatcher{
		addr:           addr,
		reconnectDelay: 2 * time.Second,
		dialTimeout:    5 * time.Second,
		log:            log,
	}
}

// WithReconnectDelay sets the pause between connection attempts.
func (w *GPSDWatcher) WithReconnectDelay(d time.Duration) *GPSDWatcher {
	w.reconnectDelay = d
	return w
}

func (w *GPSDWatcher) Start(ctx context.Context, opts ports.WatchOptions, handler func(ports.PositionEvent)) (ports.Subscription, error) {
	if w.addr == "" {
		return nil, fmt.Errorf("gpsd watcher: empty address")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &gpsdSubscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		w.run(ctx, opts, handler)
	}()

	return sub, nil
}

func (w *GPSDWatcher) run(ctx context.Context, opts ports.WatchOptions, handler func(ports.PositionEvent)) {
	for {
		err := w.session(ctx, opts, handler)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("gpsd connection lost, reconnecting",
			zap.String("addr", w.addr),
			zap.Error(err),
			zap.Duration("delay", w.reconnectDelay),
		)

		timer := time.NewTimer(w.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// session handles one connection until it fails or ctx ends.
func (w *GPSDWatcher) session(ctx context.Context, opts ports.WatchOptions, handler func(ports.PositionEvent)) error {
	d := net.Dialer{Timeout: w.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", w.addr)
	if err != nil {
		if ctx.Err() == nil {
			handler(ports.PositionError(ports.PositionUnavailable, "gpsd unreachable"))
		}
		return fmt.Errorf("dial gpsd: %w", err)
	}
	defer conn.Close()

	w.log.Info("connected to gpsd", zap.String("addr", w.addr))

	if _, err := conn.Write([]byte(watchCommand)); err != nil {
		return fmt.Errorf("enable gpsd watch: %w", err)
	}

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- fmt.Errorf("read gpsd: %w", scanner.Err())
	}()

	var timeout <-chan time.Time
	var timer *time.Timer
	if opts.Timeout > 0 {
		timer = time.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErr:
			return err

		case <-timeout:
			handler(ports.PositionError(ports.PositionTimeout, "no gpsd fix"))
			timer.Reset(opts.Timeout)

		case line := <-lines:
			ev, ok := parseTPV(line)
			if !ok {
				continue
			}
			if opts.MaximumAge > 0 && time.Since(ev.Timestamp) > opts.MaximumAge {
				continue
			}
			handler(ev)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(opts.Timeout)
			}
		}
	}
}

// parseTPV turns a gpsd line into a fix. Mode 2 (2D) and 3 (3D) are fixes.
func parseTPV(line []byte) (ports.PositionEvent, bool) {
	var msg TPV
	if err := json.Unmarshal(line, &msg); err != nil {
		return ports.PositionEvent{}, false
	}
	if msg.Class != "TPV" || msg.Mode < 2 {
		return ports.PositionEvent{}, false
	}

	c := domain.NewCoordinate(msg.Lat, msg.Lon)
	if !c.Valid() {
		return ports.PositionEvent{}, false
	}

	ts := time.Now()
	if msg.Time != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
			ts = parsed
		}
	}
	return ports.PositionFound(c, msg.Eph, ts), true
}

type gpsdSubscription struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop ends the watch and waits for the reader to exit.
func (s *gpsdSubscription) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
