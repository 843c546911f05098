package facade

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/gateway"
	"go.uber.org/zap"
)

const redialDelay = time.Second

// Live is the websocket-backed facade. It dials the bridge's /ws
// endpoint, keeps redialing while the daemon is away, and folds every
// broadcast event into the snapshot. The daemon replays the status
// snapshot on every connect, so a redial self-heals the view.
type Live struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	snap Snapshot

	updates chan struct{}
	done    chan struct{}
	closed  bool
}

// NewLive starts a facade against the given websocket URL, e.g.
// ws://127.0.0.1:3001/ws. The connection is established in the
// background; commands issued before it is up surface an error in the
// snapshot instead of failing.
func NewLive(url string, logger *zap.Logger) *Live {
	l := &Live{
		url:     url,
		logger:  logger,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Snapshot returns a copy of the current view. The Chats and Messages
// slices are shared; treat them as read-only.
func (l *Live) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Updates signals snapshot changes.
func (l *Live) Updates() <-chan struct{} {
	return l.updates
}

// SendMessage relays a text to one chat. Guarded locally: issuing it
// against a down session only flags the snapshot.
func (l *Live) SendMessage(chatID, body string) {
	if !l.guard() {
		return
	}
	l.send(gateway.CmdSendMessage, gateway.SendMessagePayload{ChatID: chatID, Message: body})
}

// GetChats requests a fresh chat list.
func (l *Live) GetChats() {
	if !l.guard() {
		return
	}
	l.send(gateway.CmdGetChats, struct{}{})
}

// GetMessages requests recent messages for one chat and makes it the
// active chat, so live messages for it land in the snapshot.
func (l *Live) GetMessages(chatID string) {
	if !l.guard() {
		return
	}
	l.mu.Lock()
	l.snap.ActiveChatID = chatnet.NormalizeChatID(chatID)
	l.mu.Unlock()
	l.send(gateway.CmdGetMessages, gateway.GetMessagesPayload{ChatID: chatID})
}

// DisconnectSession tears the shared session down. Unguarded: it is
// valid from any state.
func (l *Live) DisconnectSession() {
	l.send(gateway.CmdDisconnect, struct{}{})
}

// ReconnectSession restarts the shared session. Unguarded, same as the
// disconnect: a consumer recovering a dead session must be able to ask
// for it.
func (l *Live) ReconnectSession() {
	l.send(gateway.CmdReconnect, struct{}{})
}

// Close shuts the facade down. The bridge session itself is untouched:
// other consumers keep it.
func (l *Live) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	conn := l.conn
	l.mu.Unlock()

	close(l.done)
	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (l *Live) run() {
	for {
		select {
		case <-l.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(l.url, nil)
		if err != nil {
			l.setErr("bridge unavailable")
			select {
			case <-l.done:
				return
			case <-time.After(redialDelay):
			}
			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close()
			return
		}
		l.conn = conn
		l.mu.Unlock()

		l.readLoop(conn)

		l.mu.Lock()
		l.conn = nil
		closed := l.closed
		if !closed {
			l.snap.Connected = false
		}
		l.mu.Unlock()
		if closed {
			return
		}
		l.notify()
	}
}

func (l *Live) readLoop(conn *websocket.Conn) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		var env gateway.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			l.logger.Warn("dropping malformed frame from bridge", zap.Error(err))
			continue
		}
		l.apply(env)
	}
}

// apply folds one broadcast event into the snapshot.
func (l *Live) apply(env gateway.Envelope) {
	l.mu.Lock()
	switch env.Type {
	case gateway.EventStatus:
		var p gateway.StatusPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			l.snap.Connected = p.IsConnected
			l.snap.PairingCode = p.PairingCode
			l.snap.PairingImage = p.PairingImage
		}

	case gateway.EventPairingCode:
		var p gateway.PairingPayload
		if json.Unmarshal(env.Payload, &p) == nil {
			l.snap.PairingCode = p.Code
			l.snap.PairingImage = p.Image
		}

	case gateway.EventConnected:
		var connected bool
		if json.Unmarshal(env.Payload, &connected) == nil {
			l.snap.Connected = connected
			if connected {
				l.snap.PairingCode = ""
				l.snap.PairingImage = ""
				l.snap.Err = ""
			}
		}

	case gateway.EventChats:
		var chats []chatnet.Chat
		if json.Unmarshal(env.Payload, &chats) == nil {
			l.snap.Chats = chats
		}

	case gateway.EventMessages:
		var msgs []chatnet.Message
		if json.Unmarshal(env.Payload, &msgs) == nil {
			l.snap.Messages = msgs
		}

	case gateway.EventNewMessage, gateway.EventMessageSent:
		var msg chatnet.Message
		if json.Unmarshal(env.Payload, &msg) == nil {
			l.foldMessage(msg)
		}

	case gateway.EventError:
		var msg string
		if json.Unmarshal(env.Payload, &msg) == nil {
			l.snap.Err = msg
		}
	}
	l.mu.Unlock()
	l.notify()
}

// foldMessage applies one live message under l.mu: appended to the
// active conversation, reflected in the chat list either way.
func (l *Live) foldMessage(msg chatnet.Message) {
	if msg.ChatID == l.snap.ActiveChatID {
		l.snap.Messages = append(l.snap.Messages, msg)
	}

	found := false
	for i := range l.snap.Chats {
		if l.snap.Chats[i].ID != msg.ChatID {
			continue
		}
		found = true
		l.snap.Chats[i].LastMessage = msg.Body
		l.snap.Chats[i].Timestamp = msg.Timestamp
		if msg.Direction == chatnet.Inbound && msg.ChatID != l.snap.ActiveChatID {
			l.snap.Chats[i].UnreadCount++
		}
	}
	if !found {
		chat := chatnet.Chat{ID: msg.ChatID, Name: msg.ChatID, LastMessage: msg.Body, Timestamp: msg.Timestamp}
		if msg.Direction == chatnet.Inbound {
			chat.UnreadCount = 1
		}
		l.snap.Chats = append(l.snap.Chats, chat)
	}
	sort.SliceStable(l.snap.Chats, func(i, j int) bool {
		return l.snap.Chats[i].Timestamp > l.snap.Chats[j].Timestamp
	})
}

// guard enforces the local connected check on conversation commands.
// The supervisor guard is authoritative; this one just keeps obviously
// doomed commands off the wire.
func (l *Live) guard() bool {
	l.mu.Lock()
	if !l.snap.Connected {
		l.snap.Err = notConnectedErr
		l.mu.Unlock()
		l.notify()
		return false
	}
	l.mu.Unlock()
	return true
}

func (l *Live) send(typ string, payload any) {
	frame, err := json.Marshal(payload)
	if err != nil {
		return
	}
	env, err := json.Marshal(gateway.Envelope{Type: typ, Payload: frame})
	if err != nil {
		return
	}

	l.mu.Lock()
	conn := l.conn
	if conn == nil {
		l.snap.Err = "bridge unavailable"
		l.mu.Unlock()
		l.notify()
		return
	}
	err = conn.WriteMessage(websocket.TextMessage, env)
	l.mu.Unlock()
	if err != nil {
		l.logger.Warn("command write failed", zap.String("type", typ), zap.Error(err))
	}
}

func (l *Live) setErr(msg string) {
	l.mu.Lock()
	l.snap.Err = msg
	l.mu.Unlock()
	l.notify()
}

func (l *Live) notify() {
	select {
	case l.updates <- struct{}{}:
	default:
	}
}
