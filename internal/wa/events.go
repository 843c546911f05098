package wa

import (
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// handleEvent is the whatsmeow event handler. Raw events are normalized
// into chatnet events; history sync only feeds the relay cache and is
// never re-emitted live.
func (c *Client) handleEvent(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		c.logger.Info("whatsapp session ready")
		c.emit(chatnet.Event{Kind: chatnet.EventReady})
	case *events.Disconnected:
		c.logger.Warn("whatsapp connection lost")
		c.emit(chatnet.Event{Kind: chatnet.EventDisconnected, Reason: "connection lost"})
	case *events.LoggedOut:
		c.logger.Warn("whatsapp logged out", zap.String("reason", evt.Reason.String()))
		c.emit(chatnet.Event{Kind: chatnet.EventDisconnected, Reason: "logged out: " + evt.Reason.String()})
	case *events.Message:
		c.handleMessage(evt)
	case *events.HistorySync:
		c.handleHistorySync(evt)
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	msg := parseLiveMessage(evt)
	name := ""
	if msg.Direction == chatnet.Inbound {
		name = evt.Info.PushName
	}
	c.ingest(msg, name)
	c.emit(chatnet.Event{Kind: chatnet.EventMessage, Message: msg})
}

func (c *Client) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	count := 0
	for _, conv := range data.GetConversations() {
		chatID := chatIDFromRaw(conv.GetID())
		if chatID == "" {
			continue
		}

		if err := c.cache.UpsertChat(&chatnet.Chat{
			ID:          chatID,
			Name:        conv.GetName(),
			UnreadCount: int(conv.GetUnreadCount()),
		}); err != nil {
			c.logger.Error("failed to cache history chat", zap.Error(err), zap.String("chat_id", chatID))
			continue
		}

		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			msg := parseHistoryMessage(chatID, wmsg)
			c.ingest(msg, "")
			count++
		}
	}

	if count > 0 {
		c.logger.Info("history batch cached", zap.Int("messages", count))
	}
}
