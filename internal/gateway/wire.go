package gateway

import "encoding/json"

// Server→client event types.
const (
	EventStatus      = "status"
	EventPairingCode = "pairing-code"
	EventConnected   = "connected"
	EventChats       = "chats"
	EventMessages    = "messages"
	EventNewMessage  = "new-message"
	EventMessageSent = "message-sent"
	EventError       = "error"
)

// Client→server command types.
const (
	CmdSendMessage = "send-message"
	CmdGetChats    = "get-chats"
	CmdGetMessages = "get-messages"
	CmdDisconnect  = "disconnect-session"
	CmdReconnect   = "reconnect-session"
)

// Envelope is the wire frame for both directions.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// StatusPayload is the session snapshot pushed to every subscriber on
// connect and on each state change. PairingImage is a PNG data URL for
// browser-style consumers; PairingCode is the raw code for terminal
// rendering.
type StatusPayload struct {
	IsConnected  bool   `json:"isConnected"`
	PairingCode  string `json:"pairingCode,omitempty"`
	PairingImage string `json:"pairingImage,omitempty"`
}

// PairingPayload carries a fresh pairing code.
type PairingPayload struct {
	Code  string `json:"code"`
	Image string `json:"image,omitempty"`
}

// SendMessagePayload is the send-message command body, shared with the
// POST /send-message HTTP endpoint.
type SendMessagePayload struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// GetMessagesPayload is the get-messages command body.
type GetMessagesPayload struct {
	ChatID string `json:"chatId"`
}

// SendResultPayload is the POST /send-message response body.
type SendResultPayload struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
}

func marshalEnvelope(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}
