package bus

import "time"

// Event kinds published by the bridge. The "session." namespace carries
// lifecycle events, "chat." carries relayed conversation traffic.
const (
	KindStatus      = "session.status"
	KindPairingCode = "session.pairing_code"
	KindConnected   = "session.connected"
	KindError       = "session.error"
	KindChats       = "chat.list"
	KindMessages    = "chat.messages"
	KindNewMessage  = "chat.new_message"
	KindMessageSent = "chat.message_sent"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
