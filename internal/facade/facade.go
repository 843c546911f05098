// Package facade gives UI-style consumers a stable, stateful view of
// the bridge: a last-known snapshot plus fire-and-forget commands.
// Errors never surface as return values; they land in the snapshot the
// way a connection banner would show them.
package facade

import "github.com/ssantosv/zapbridge/internal/chatnet"

// Snapshot is the facade's current view of the session. ActiveChatID
// names the chat Messages belongs to; inbound messages for other chats
// only bump the chat list.
type Snapshot struct {
	Connected    bool
	PairingCode  string
	PairingImage string
	Chats        []chatnet.Chat
	ActiveChatID string
	Messages     []chatnet.Message
	Err          string
}

// Client is the surface UIs program against. Commands are asynchronous:
// results arrive as snapshot updates. Closing the facade never tears
// down the underlying session, which other consumers may share.
type Client interface {
	Snapshot() Snapshot
	// Updates signals snapshot changes. Coalesced: one pending signal
	// at most, read the snapshot after each receive.
	Updates() <-chan struct{}

	SendMessage(chatID, body string)
	GetChats()
	GetMessages(chatID string)
	DisconnectSession()
	ReconnectSession()

	Close() error
}

// notConnectedErr is the guard message shown when a command is issued
// against a session that is not up.
const notConnectedErr = "chat network not connected"
