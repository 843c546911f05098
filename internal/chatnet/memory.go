package chatnet

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryClient is an in-process Client for demos and tests. It pairs
// with a scripted code, keeps chats and messages in maps, and lets
// callers inject events directly. Running the daemon with the "memory"
// backend gives a fully working bridge without a phone.
type MemoryClient struct {
	mu       sync.Mutex
	chats    map[string]*Chat
	messages map[string][]Message
	events   chan Event
	paired   bool
	stopped  bool

	// AutoPairAfter, when non-zero, makes Start emit the scripted
	// pairing code and then EventReady after the given delay.
	AutoPairAfter time.Duration
}

// DemoPairingCode is the code MemoryClient emits on Start.
const DemoPairingCode = "ZAP-DEMO-0000"

// NewMemoryClient creates an in-memory client seeded with a couple of
// demo conversations.
func NewMemoryClient() *MemoryClient {
	c := &MemoryClient{
		chats:    make(map[string]*Chat),
		messages: make(map[string][]Message),
		events:   make(chan Event, 64),
	}
	c.seed()
	return c
}

func (c *MemoryClient) seed() {
	now := time.Now().Unix()
	c.chats["5511999990000@c.us"] = &Chat{
		ID: "5511999990000@c.us", Name: "Maria Souza",
		LastMessage: "oi, tudo bem?", Timestamp: now - 120, UnreadCount: 1,
	}
	c.chats["5511888880000@c.us"] = &Chat{
		ID: "5511888880000@c.us", Name: "João Lima",
		LastMessage: "fechado!", Timestamp: now - 3600,
	}
	c.messages["5511999990000@c.us"] = []Message{
		{ID: uuid.NewString(), ChatID: "5511999990000@c.us", Body: "oi, tudo bem?", Timestamp: now - 120, Direction: Inbound, Kind: KindText},
	}
	c.messages["5511888880000@c.us"] = []Message{
		{ID: uuid.NewString(), ChatID: "5511888880000@c.us", Body: "fechado!", Timestamp: now - 3600, Direction: Inbound, Kind: KindText},
	}
}

// Start emits the scripted pairing flow. With AutoPairAfter set it
// completes pairing on its own; otherwise the test drives it via the
// Emit helpers.
func (c *MemoryClient) Start(_ context.Context) error {
	c.mu.Lock()
	c.stopped = false
	delay := c.AutoPairAfter
	c.mu.Unlock()

	c.EmitPairingCode(DemoPairingCode)
	if delay > 0 {
		go func() {
			time.Sleep(delay)
			c.EmitReady()
		}()
	}
	return nil
}

// Stop marks the client stopped. Further events are discarded.
func (c *MemoryClient) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.paired = false
	c.mu.Unlock()
}

// Events returns the event stream.
func (c *MemoryClient) Events() <-chan Event {
	return c.events
}

// SendText records an outbound message and returns its normalized form.
func (c *MemoryClient) SendText(_ context.Context, chatID, body string) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paired {
		return Message{}, fmt.Errorf("session not ready")
	}

	chatID = NormalizeChatID(chatID)
	msg := Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Body:      body,
		Timestamp: time.Now().Unix(),
		Direction: Outbound,
		Kind:      KindText,
	}
	c.messages[chatID] = append(c.messages[chatID], msg)
	if chat, ok := c.chats[chatID]; ok {
		chat.LastMessage = body
		chat.Timestamp = msg.Timestamp
	} else {
		c.chats[chatID] = &Chat{ID: chatID, Name: chatID, LastMessage: body, Timestamp: msg.Timestamp}
	}
	return msg, nil
}

// FetchChats returns the known chats, newest first.
func (c *MemoryClient) FetchChats(_ context.Context) ([]Chat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paired {
		return nil, fmt.Errorf("session not ready")
	}
	chats := make([]Chat, 0, len(c.chats))
	for _, chat := range c.chats {
		chats = append(chats, *chat)
	}
	sortChatsByTimestamp(chats)
	return chats, nil
}

// FetchMessages returns up to limit messages for a chat, oldest first.
func (c *MemoryClient) FetchMessages(_ context.Context, chatID string, limit int) ([]Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paired {
		return nil, fmt.Errorf("session not ready")
	}
	msgs := c.messages[NormalizeChatID(chatID)]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// EmitPairingCode injects a pairing-code event.
func (c *MemoryClient) EmitPairingCode(code string) {
	c.emit(Event{Kind: EventPairingCode, Code: code})
}

// EmitReady marks the client paired and injects a ready event.
func (c *MemoryClient) EmitReady() {
	c.mu.Lock()
	c.paired = true
	c.mu.Unlock()
	c.emit(Event{Kind: EventReady})
}

// EmitDisconnected marks the client unpaired and injects a disconnect.
func (c *MemoryClient) EmitDisconnected(reason string) {
	c.mu.Lock()
	c.paired = false
	c.mu.Unlock()
	c.emit(Event{Kind: EventDisconnected, Reason: reason})
}

// EmitInbound records and injects an inbound message as if the network
// delivered it live.
func (c *MemoryClient) EmitInbound(chatID, body string) Message {
	chatID = NormalizeChatID(chatID)
	msg := Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Body:      body,
		Timestamp: time.Now().Unix(),
		Direction: Inbound,
		Kind:      KindText,
	}
	c.mu.Lock()
	c.messages[chatID] = append(c.messages[chatID], msg)
	if chat, ok := c.chats[chatID]; ok {
		chat.LastMessage = body
		chat.Timestamp = msg.Timestamp
		chat.UnreadCount++
	} else {
		c.chats[chatID] = &Chat{ID: chatID, Name: chatID, LastMessage: body, Timestamp: msg.Timestamp, UnreadCount: 1}
	}
	c.mu.Unlock()
	c.emit(Event{Kind: EventMessage, Message: msg})
	return msg
}

func (c *MemoryClient) emit(evt Event) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}
	select {
	case c.events <- evt:
	default:
	}
}

func sortChatsByTimestamp(chats []Chat) {
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].Timestamp > chats[j].Timestamp
	})
}
