package bus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/cartsync/internal/cart"
)

// DefaultChannel is the channel name shared by every tab of a profile.
const DefaultChannel = "cart_channel"

// MessageType distinguishes the two kinds of bus messages.
type MessageType string

const (
	// TypeSync carries a full cart snapshot. Receivers replace their cart.
	TypeSync MessageType = "sync"
	// TypeCartMeta announces a freshly created remote cart id.
	TypeCartMeta MessageType = "cart_meta"
)

// Message is one bus envelope.
type Message struct {
	Type   MessageType
	Sender string

	// Payload is set for TypeSync.
	Payload cart.Cart

	// CartID is set for TypeCartMeta.
	CartID string
}

// Sync builds a sync message. The cart is copied.
func Sync(sender string, c cart.Cart) Message {
	return Message{Type: TypeSync, Sender: sender, Payload: c.Clone()}
}

// CartMeta builds a cart_meta message.
func CartMeta(sender, cartID string) Message {
	return Message{Type: TypeCartMeta, Sender: sender, CartID: cartID}
}

// envelope is the wire shape: {type, sender, payload|cartId}.
type envelope struct {
	Type    MessageType     `json:"type"`
	Sender  string          `json:"sender"`
	Payload json.RawMessage `json:"payload,omitempty"`
	CartID  string          `json:"cartId,omitempty"`
}

// ErrMalformed wraps every decode failure.
var ErrMalformed = errors.New("bus: malformed message")

// Validate checks the message invariants enforced on both ends of the wire.
func (m Message) Validate() error {
	if m.Sender == "" {
		return fmt.Errorf("%w: missing sender", ErrMalformed)
	}
	switch m.Type {
	case TypeSync:
		if m.Payload == nil {
			return fmt.Errorf("%w: sync without payload", ErrMalformed)
		}
	case TypeCartMeta:
		if m.CartID == "" {
			return fmt.Errorf("%w: cart_meta without cartId", ErrMalformed)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, m.Type)
	}
	return nil
}

// Encode serializes a message to its JSON envelope.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	env := envelope{Type: m.Type, Sender: m.Sender, CartID: m.CartID}
	if m.Type == TypeSync {
		payload, err := json.Marshal(m.Payload)
		if err != nil {
			return nil, fmt.Errorf("bus: encode payload: %w", err)
		}
		env.Payload = payload
	}
	return json.Marshal(env)
}

// Decode parses a JSON envelope. A sync payload must be a JSON array; null
// entries inside it are dropped.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	m := Message{Type: env.Type, Sender: env.Sender, CartID: env.CartID}
	if env.Type == TypeSync {
		var items []*cart.Item
		if err := json.Unmarshal(env.Payload, &items); err != nil || items == nil {
			return Message{}, fmt.Errorf("%w: sync payload is not an array", ErrMalformed)
		}
		m.Payload = make(cart.Cart, 0, len(items))
		for _, it := range items {
			if it != nil {
				m.Payload = append(m.Payload, *it)
			}
		}
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
