package wa

import (
	"context"
	"fmt"
	"sync"

	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/session"
	"github.com/ssantosv/zapbridge/internal/store"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// Client is the whatsmeow-backed chatnet.Client. It owns the device
// credentials for one paired account and keeps the relay cache current:
// WhatsApp exposes history only as sync events, so FetchChats and
// FetchMessages read from the cache instead of issuing network calls.
type Client struct {
	wm     *whatsmeow.Client
	cache  *store.DB
	logger *zap.Logger
	events chan chatnet.Event

	mu      sync.Mutex
	stopped bool
}

// NewClient creates a whatsmeow client for the given session. The
// credential store lives next to the relay cache in the session dir.
func NewClient(ctx context.Context, sessionName string, cache *store.DB, logger *zap.Logger) (*Client, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("ZapBridge", [3]uint32{0, 1, 0})

	dbPath := session.CredentialDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	c := &Client{
		wm:     whatsmeow.NewClient(deviceStore, nil),
		cache:  cache,
		logger: logger,
		events: make(chan chatnet.Event, 64),
	}
	c.wm.AddEventHandler(c.handleEvent)
	return c, nil
}

// IsPaired returns whether the device holds valid credentials.
func (c *Client) IsPaired() bool {
	return c.wm.Store.ID != nil
}

// Start begins connecting. An unpaired device runs the QR pairing flow;
// pairing codes stream out as events until the phone scans one.
func (c *Client) Start(ctx context.Context) error {
	if c.IsPaired() {
		c.logger.Info("credentials found, connecting")
		if err := c.wm.Connect(); err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	}

	// GetQRChannel must be called before Connect.
	qrChan, err := c.wm.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}
	if err := c.wm.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				c.logger.Info("pairing code issued")
				c.emit(chatnet.Event{Kind: chatnet.EventPairingCode, Code: item.Code})
			case "success":
				// The ready event arrives via events.Connected.
			case "timeout":
				c.logger.Warn("pairing code expired")
				c.emit(chatnet.Event{Kind: chatnet.EventDisconnected, Reason: "pairing code expired"})
			default:
				if item.Error != nil {
					c.logger.Warn("pairing failed", zap.Error(item.Error))
					c.emit(chatnet.Event{Kind: chatnet.EventDisconnected, Reason: item.Error.Error()})
				}
			}
		}
	}()

	return nil
}

// Stop disconnects from the network and discards the relay cache. A new
// pairing may belong to a different account, so nothing cached survives
// a teardown.
func (c *Client) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	c.wm.RemoveEventHandlers()
	c.wm.Disconnect()
	if err := c.cache.Clear(); err != nil {
		c.logger.Warn("failed to clear relay cache", zap.Error(err))
	}
	c.logger.Info("whatsapp client stopped")
}

// Events returns the event stream.
func (c *Client) Events() <-chan chatnet.Event {
	return c.events
}

// SendText sends a text message and records it in the relay cache.
func (c *Client) SendText(ctx context.Context, chatID, body string) (chatnet.Message, error) {
	jid, err := toJID(chatID)
	if err != nil {
		return chatnet.Message{}, fmt.Errorf("parse chat id: %w", err)
	}

	resp, err := c.wm.SendMessage(ctx, jid, &waE2E.Message{
		Conversation: proto.String(body),
	})
	if err != nil {
		return chatnet.Message{}, fmt.Errorf("send message: %w", err)
	}

	msg := chatnet.Message{
		ID:        resp.ID,
		ChatID:    chatIDFromJID(jid),
		Body:      body,
		Timestamp: resp.Timestamp.Unix(),
		Direction: chatnet.Outbound,
		Kind:      chatnet.KindText,
	}
	c.ingest(msg, "")
	return msg, nil
}

// FetchChats returns the cached chats for the current pairing.
func (c *Client) FetchChats(_ context.Context) ([]chatnet.Chat, error) {
	return c.cache.ListChats(100)
}

// FetchMessages returns cached messages for a chat, oldest first.
func (c *Client) FetchMessages(_ context.Context, chatID string, limit int) ([]chatnet.Message, error) {
	return c.cache.ListMessages(chatnet.NormalizeChatID(chatID), limit)
}

func (c *Client) emit(evt chatnet.Event) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return
	}
	select {
	case c.events <- evt:
	default:
		c.logger.Warn("event buffer full, dropping event")
	}
}

// ingest records a relayed message and bumps its chat in the cache.
func (c *Client) ingest(msg chatnet.Message, chatName string) {
	if err := c.cache.UpsertChat(&chatnet.Chat{
		ID:          msg.ChatID,
		Name:        chatName,
		LastMessage: msg.Body,
		Timestamp:   msg.Timestamp,
	}); err != nil {
		c.logger.Error("failed to cache chat", zap.Error(err), zap.String("chat_id", msg.ChatID))
		return
	}
	if err := c.cache.UpsertMessage(&msg); err != nil {
		c.logger.Error("failed to cache message", zap.Error(err), zap.String("msg_id", msg.ID))
	}
}
