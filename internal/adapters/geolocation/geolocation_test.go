package geolocation

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"standmap-service/internal/domain"
	"standmap-service/internal/ports"
)

func collect() (func(ports.PositionEvent), <-chan ports.PositionEvent) {
	ch := make(chan ports.PositionEvent, 16)
	return func(ev ports.PositionEvent) {
		select {
		case ch <- ev:
		default:
		}
	}, ch
}

func next(t *testing.T, ch <-chan ports.PositionEvent) ports.PositionEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for position event")
		return ports.PositionEvent{}
	}
}

func TestPushWatcherDeliversToActiveWatch(t *testing.T) {
	w := NewPushWatcher()
	handler, events := collect()

	assert.False(t, w.Push(ports.PositionFound(domain.NewCoordinate(1, 2), 3, time.Now())))

	sub, err := w.Start(context.Background(), ports.WatchOptions{}, handler)
	require.NoError(t, err)

	_, err = w.Start(context.Background(), ports.WatchOptions{}, handler)
	assert.ErrorIs(t, err, ErrAlreadyWatching)

	require.True(t, w.Push(ports.PositionFound(domain.NewCoordinate(1, 2), 3, time.Now())))
	ev := next(t, events)
	assert.True(t, ev.Found)
	assert.True(t, ev.Coords.Equal(domain.NewCoordinate(1, 2)))

	sub.Stop()
	sub.Stop()
	assert.False(t, w.Watching())
	assert.False(t, w.Push(ports.PositionError(ports.PermissionDenied, "")))
}

func TestPushWatcherStaleStopDoesNotEndNewWatch(t *testing.T) {
	w := NewPushWatcher()
	handler, _ := collect()

	first, err := w.Start(context.Background(), ports.WatchOptions{}, handler)
	require.NoError(t, err)
	first.Stop()

	_, err = w.Start(context.Background(), ports.WatchOptions{}, handler)
	require.NoError(t, err)
	first.Stop()

	assert.True(t, w.Watching())
}

func TestPushWatcherStopsWithContext(t *testing.T) {
	w := NewPushWatcher()
	handler, _ := collect()
	ctx, cancel := context.WithCancel(context.Background())

	_, err := w.Start(ctx, ports.WatchOptions{}, handler)
	require.NoError(t, err)
	cancel()

	assert.Eventually(t, func() bool { return !w.Watching() }, time.Second, 5*time.Millisecond)
}

// fakeGPSD accepts one client, waits for the WATCH command and writes lines.
func fakeGPSD(t *testing.T, lines ...string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		for _, l := range lines {
			if _, err := fmt.Fprintln(conn, l); err != nil {
				return
			}
		}
		// Keep the connection open until the client goes away.
		buf := make([]byte, 1)
		_, _ = conn.Read(buf)
	}()

	return ln.Addr().String()
}

func TestGPSDWatcherReportsFixes(t *testing.T) {
	addr := fakeGPSD(t,
		`{"class":"VERSION","release":"3.25"}`,
		`{"class":"TPV","mode":1}`,
		`{"class":"TPV","mode":3,"time":"2025-05-10T14:00:00.000Z","lat":-24.98024,"lon":-53.33931,"eph":4.5}`,
	)

	w := NewGPSDWatcher(addr, zap.NewNop())
	handler, events := collect()
	sub, err := w.Start(context.Background(), ports.WatchOptions{EnableHighAccuracy: true}, handler)
	require.NoError(t, err)
	defer sub.Stop()

	ev := next(t, events)
	require.True(t, ev.Found)
	assert.True(t, ev.Coords.Equal(domain.NewCoordinate(-24.98024, -53.33931)))
	assert.Equal(t, 4.5, ev.Accuracy)
	assert.Equal(t, 2025, ev.Timestamp.Year())
}

func TestGPSDWatcherUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	w := NewGPSDWatcher(addr, zap.NewNop()).WithReconnectDelay(10 * time.Millisecond)
	handler, events := collect()
	sub, err := w.Start(context.Background(), ports.WatchOptions{}, handler)
	require.NoError(t, err)

	ev := next(t, events)
	assert.False(t, ev.Found)
	assert.Equal(t, ports.PositionUnavailable, ev.ErrKind)

	sub.Stop()
	sub.Stop()
}

func TestGPSDWatcherTimesOutWithoutFix(t *testing.T) {
	addr := fakeGPSD(t, `{"class":"TPV","mode":1}`)

	w := NewGPSDWatcher(addr, zap.NewNop())
	handler, events := collect()
	sub, err := w.Start(context.Background(), ports.WatchOptions{Timeout: 50 * time.Millisecond}, handler)
	require.NoError(t, err)
	defer sub.Stop()

	ev := next(t, events)
	assert.False(t, ev.Found)
	assert.Equal(t, ports.PositionTimeout, ev.ErrKind)
}

func TestGPSDWatcherRequiresAddress(t *testing.T) {
	_, err := NewGPSDWatcher("", nil).Start(context.Background(), ports.WatchOptions{}, func(ports.PositionEvent) {})
	assert.Error(t, err)
}

func TestParseTPV(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
	}{
		{"3d fix", `{"class":"TPV","mode":3,"lat":1,"lon":2}`, true},
		{"2d fix", `{"class":"TPV","mode":2,"lat":1,"lon":2}`, true},
		{"no fix", `{"class":"TPV","mode":1,"lat":1,"lon":2}`, false},
		{"sky report", `{"class":"SKY","mode":3}`, false},
		{"out of range", `{"class":"TPV","mode":3,"lat":91,"lon":2}`, false},
		{"garbage", `not json`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := parseTPV([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
		})
	}
}
