package chatnet

import "context"

// EventKind enumerates the event types a Client surfaces.
type EventKind int

const (
	// EventPairingCode carries a fresh pairing code. May fire more than
	// once while pairing is pending; each code replaces the previous one.
	EventPairingCode EventKind = iota
	// EventReady fires when the session is authorized and usable.
	EventReady
	// EventDisconnected fires when the session is lost, including
	// pairing failures. Reason holds a human-readable cause.
	EventDisconnected
	// EventMessage carries an inbound or self-sent message observed live.
	EventMessage
)

// Event is a single item on a Client's event stream.
type Event struct {
	Kind    EventKind
	Code    string
	Reason  string
	Message Message
}

// Client is the capability interface for one physical chat-network
// account. Implementations surface lifecycle and message events on
// Events() and accept commands for the single paired session.
//
// Start begins connecting: an unpaired client emits EventPairingCode
// items until the phone scans one, then EventReady; an already-paired
// client emits EventReady directly. Stop tears the session down and
// releases held resources; the Events channel is not closed, callers
// stop reading via their own context.
type Client interface {
	Start(ctx context.Context) error
	Stop()
	Events() <-chan Event
	SendText(ctx context.Context, chatID, body string) (Message, error)
	FetchChats(ctx context.Context) ([]Chat, error)
	FetchMessages(ctx context.Context, chatID string, limit int) ([]Message, error)
}
