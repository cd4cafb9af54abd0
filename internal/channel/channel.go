// Package channel provides the bidirectional event channel the chat core
// talks through: named events with structured payloads, delivered
// asynchronously. The process holds a single connection shared by every
// subsystem; subscriptions are explicit handles released on teardown so a
// stale handler can never outlive the state it was registered for.
package channel

import (
	"encoding/json"

	"github.com/loungechat/internal/protocol"
)

// Handler receives the raw payload of one delivered event. Handlers for a
// single connection are invoked sequentially, never concurrently, and each
// runs to completion before the next event is dispatched.
type Handler func(payload json.RawMessage)

// Subscription is the capability handle returned by Subscribe. Cancel
// unregisters the handler; events delivered afterwards are dropped.
type Subscription interface {
	Cancel()
}

// Channel is the transport surface consumed by the chat controllers.
// Implementations: Conn (websocket). Tests substitute an in-memory fake.
type Channel interface {
	// Emit sends one event to the server. Fire-and-forget: the server is
	// the sole authority on whether it took effect.
	Emit(event protocol.EventType, payload any) error
	// Subscribe registers a handler for a server-pushed event.
	Subscribe(event protocol.EventType, h Handler) Subscription
}
