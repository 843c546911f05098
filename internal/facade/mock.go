package facade

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ssantosv/zapbridge/internal/chatnet"
)

// Mock is a daemon-free facade for UI development. It starts connected
// with canned conversations and echoes sends back into the snapshot.
type Mock struct {
	mu       sync.Mutex
	snap     Snapshot
	messages map[string][]chatnet.Message
	updates  chan struct{}
}

// NewMock creates a mock facade seeded with demo data.
func NewMock() *Mock {
	now := time.Now().Unix()
	m := &Mock{
		messages: make(map[string][]chatnet.Message),
		updates:  make(chan struct{}, 1),
	}
	m.snap = Snapshot{
		Connected: true,
		Chats: []chatnet.Chat{
			{ID: "5511999990000@c.us", Name: "Maria Souza", LastMessage: "oi, tudo bem?", Timestamp: now - 120, UnreadCount: 1},
			{ID: "5511888880000@c.us", Name: "João Lima", LastMessage: "fechado!", Timestamp: now - 3600},
		},
	}
	m.messages["5511999990000@c.us"] = []chatnet.Message{
		{ID: uuid.NewString(), ChatID: "5511999990000@c.us", Body: "oi, tudo bem?", Timestamp: now - 120, Direction: chatnet.Inbound, Kind: chatnet.KindText},
	}
	m.messages["5511888880000@c.us"] = []chatnet.Message{
		{ID: uuid.NewString(), ChatID: "5511888880000@c.us", Body: "fechado!", Timestamp: now - 3600, Direction: chatnet.Inbound, Kind: chatnet.KindText},
	}
	return m
}

func (m *Mock) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

func (m *Mock) Updates() <-chan struct{} {
	return m.updates
}

// SendMessage echoes the message straight into the mock conversation.
func (m *Mock) SendMessage(chatID, body string) {
	m.mu.Lock()
	if !m.snap.Connected {
		m.snap.Err = notConnectedErr
		m.mu.Unlock()
		m.notify()
		return
	}

	chatID = chatnet.NormalizeChatID(chatID)
	msg := chatnet.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Body:      body,
		Timestamp: time.Now().Unix(),
		Direction: chatnet.Outbound,
		Kind:      chatnet.KindText,
	}
	m.messages[chatID] = append(m.messages[chatID], msg)
	if chatID == m.snap.ActiveChatID {
		m.snap.Messages = append(m.snap.Messages, msg)
	}
	for i := range m.snap.Chats {
		if m.snap.Chats[i].ID == chatID {
			m.snap.Chats[i].LastMessage = body
			m.snap.Chats[i].Timestamp = msg.Timestamp
		}
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Mock) GetChats() {
	m.mu.Lock()
	if !m.snap.Connected {
		m.snap.Err = notConnectedErr
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Mock) GetMessages(chatID string) {
	m.mu.Lock()
	if !m.snap.Connected {
		m.snap.Err = notConnectedErr
		m.mu.Unlock()
		m.notify()
		return
	}
	chatID = chatnet.NormalizeChatID(chatID)
	m.snap.ActiveChatID = chatID
	m.snap.Messages = append([]chatnet.Message(nil), m.messages[chatID]...)
	for i := range m.snap.Chats {
		if m.snap.Chats[i].ID == chatID {
			m.snap.Chats[i].UnreadCount = 0
		}
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Mock) DisconnectSession() {
	m.mu.Lock()
	m.snap.Connected = false
	m.snap.PairingCode = ""
	m.snap.PairingImage = ""
	m.mu.Unlock()
	m.notify()
}

func (m *Mock) ReconnectSession() {
	m.mu.Lock()
	m.snap.Connected = true
	m.snap.Err = ""
	m.mu.Unlock()
	m.notify()
}

func (m *Mock) Close() error { return nil }

func (m *Mock) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}
