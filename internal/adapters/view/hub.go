package view

import (
	"sync"

	"go.uber.org/zap"
)

// Hub fans commands out to subscribers. A subscriber that cannot keep up
// loses commands rather than blocking the publisher.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Command
	next   int
	closed bool
	log    *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[int]chan Command), log: log}
}

// Subscribe returns a channel of commands and a func to unsubscribe.
// The channel is closed on unsubscribe or when the hub closes.
func (h *Hub) Subscribe(buffer int) (<-chan Command, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Command, buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
}

func (h *Hub) Publish(cmd Command) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- cmd:
		default:
			h.log.Warn("subscriber too slow, dropping command",
				zap.Int("subscriber", id),
				zap.Uint64("seq", cmd.Seq),
			)
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
