// Package bus implements the tab bus: a same-profile publish/subscribe channel
// that lets sibling tabs observe each other's cart mutations.
//
// Semantics follow a browser BroadcastChannel: a message published on an
// endpoint is delivered to every other open endpoint with the same channel
// name, never back to the publisher. Ordering is per-publisher arrival order;
// there is no global order and no delivery guarantee across transports.
//
// Two transports are provided:
//   - Hub: in-process fan-out, used when several tabs live in one process and
//     by tests
//   - Spool: cross-process fan-out through a shared directory watched with
//     fsnotify
package bus

import "errors"

// Channel is one tab's endpoint on the bus.
type Channel interface {
	// Publish delivers m to every other endpoint of the channel.
	Publish(m Message) error

	// Messages returns the receive side. It is closed by Close.
	Messages() <-chan Message

	// Close detaches the endpoint. Further Publish calls fail with ErrClosed.
	Close() error
}

// ErrClosed is returned when publishing on a closed endpoint.
var ErrClosed = errors.New("bus: channel closed")

// defaultBuffer is the per-endpoint receive buffer.
const defaultBuffer = 64
