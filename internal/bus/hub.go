package bus

import (
	"sync"

	"github.com/roach88/cartsync/internal/cart"
)

// Hub is an in-process bus. Endpoints opened with the same name see each
// other's messages.
//
// Thread-safety: all methods are safe for concurrent use.
type Hub struct {
	mu       sync.Mutex
	channels map[string]map[*HubEndpoint]struct{}
	buffer   int
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-endpoint receive buffer size.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		channels: make(map[string]map[*HubEndpoint]struct{}),
		buffer:   defaultBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Open attaches a new endpoint to the named channel.
func (h *Hub) Open(name string) *HubEndpoint {
	ep := &HubEndpoint{
		hub:  h,
		name: name,
		ch:   make(chan Message, h.buffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[name] == nil {
		h.channels[name] = make(map[*HubEndpoint]struct{})
	}
	h.channels[name][ep] = struct{}{}
	return ep
}

// Endpoints returns the number of open endpoints on a channel.
func (h *Hub) Endpoints(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.channels[name])
}

func (h *Hub) broadcast(from *HubEndpoint, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ep := range h.channels[from.name] {
		if ep == from {
			continue
		}
		// Each receiver gets its own copy of the cart.
		ep.deliver(Message{Type: m.Type, Sender: m.Sender, Payload: clonePayload(m), CartID: m.CartID})
	}
}

func (h *Hub) detach(ep *HubEndpoint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.channels[ep.name]; set != nil {
		delete(set, ep)
		if len(set) == 0 {
			delete(h.channels, ep.name)
		}
	}
}

func clonePayload(m Message) cart.Cart {
	if m.Payload == nil {
		return nil
	}
	return m.Payload.Clone()
}

// HubEndpoint is one tab's attachment to a Hub channel.
type HubEndpoint struct {
	hub  *Hub
	name string

	mu     sync.Mutex
	ch     chan Message
	closed bool
}

// Publish validates m and delivers it to every sibling endpoint.
func (ep *HubEndpoint) Publish(m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	ep.mu.Lock()
	closed := ep.closed
	ep.mu.Unlock()
	if closed {
		return ErrClosed
	}
	ep.hub.broadcast(ep, m)
	return nil
}

// Messages returns the receive channel.
func (ep *HubEndpoint) Messages() <-chan Message {
	return ep.ch
}

// Close detaches the endpoint and closes its receive channel.
func (ep *HubEndpoint) Close() error {
	ep.hub.detach(ep)

	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return nil
	}
	ep.closed = true
	close(ep.ch)
	return nil
}

// deliver enqueues without blocking. When the buffer is full the oldest
// pending message is dropped; the newest snapshot always survives.
func (ep *HubEndpoint) deliver(m Message) {
	ep.mu.Lock()
	defer ep.mu.Unlock()
	if ep.closed {
		return
	}
	for {
		select {
		case ep.ch <- m:
			return
		default:
		}
		select {
		case <-ep.ch:
		default:
		}
	}
}
