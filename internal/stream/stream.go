package stream

import (
	"context"
	"sync"

	"folio.dev/internal/audit"
	"folio.dev/internal/obs"
)

const defaultBuffer = 16

// Hub delivers audit entries to live subscribers. A subscriber that falls
// behind by more than its buffer misses entries; Publish never blocks.
type Hub struct {
	buffer int

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan audit.Entry
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// New returns an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{buffer: defaultBuffer, subs: make(map[*subscriber]struct{})}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe returns a channel of entries published from now on. The channel
// is closed once ctx is done.
func (h *Hub) Subscribe(ctx context.Context) <-chan audit.Entry {
	sub := &subscriber{ch: make(chan audit.Entry, h.buffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	obs.StreamSubscribers(len(h.subs))
	h.mu.Unlock()

	context.AfterFunc(ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, sub)
		close(sub.ch)
		obs.StreamSubscribers(len(h.subs))
	})
	return sub.ch
}

// Publish implements audit.Publisher.
func (h *Hub) Publish(e audit.Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- e:
		default:
			obs.StreamDropped()
		}
	}
}

// Subscribers reports how many subscriptions are open.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
