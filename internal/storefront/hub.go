package storefront

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront/internal/cart"
	"github.com/noah-isme/storefront/internal/money"
	"github.com/noah-isme/storefront/internal/obs"
)

const defaultSubscriberBuffer = 8

// Hub fans cart renders out to stream subscribers. Render never blocks: a
// subscriber that falls behind loses its oldest pending view.
type Hub struct {
	money  money.Convention
	logger zerolog.Logger
	buffer int

	mu     sync.Mutex
	subs   map[string]chan CartView
	closed bool
}

// NewHub returns a Hub formatting views with conv.
func NewHub(conv money.Convention, logger zerolog.Logger) *Hub {
	return &Hub{
		money:  conv,
		logger: logger,
		buffer: defaultSubscriberBuffer,
		subs:   make(map[string]chan CartView),
	}
}

// Render implements cart.Renderer.
func (h *Hub) Render(snap cart.Snapshot) {
	view := NewCartView(snap, h.money)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- view:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- view:
		default:
			h.logger.Debug().Str("subscriber", id).Msg("render_dropped")
		}
	}
}

// Subscribe registers a new stream. The returned cancel func must be called
// once the subscriber goes away; it closes the channel.
func (h *Hub) Subscribe() (string, <-chan CartView, func()) {
	id := uuid.NewString()
	ch := make(chan CartView, h.buffer)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return id, ch, func() {}
	}
	h.subs[id] = ch
	h.mu.Unlock()
	obs.AddRenderSubscribers(1)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.drop(id)
	}
	return id, ch, cancel
}

// Close ends every stream and refuses new ones. It is registered as a server
// shutdown hook so long-lived streams do not hold up a graceful stop.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id := range h.subs {
		h.drop(id)
	}
}

func (h *Hub) drop(id string) {
	ch, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(ch)
	obs.AddRenderSubscribers(-1)
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
