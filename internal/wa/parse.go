package wa

import (
	"strings"

	"github.com/ssantosv/zapbridge/internal/chatnet"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// parseLiveMessage normalizes a live whatsmeow message event.
func parseLiveMessage(evt *events.Message) chatnet.Message {
	return chatnet.Message{
		ID:        evt.Info.ID,
		ChatID:    chatIDFromJID(evt.Info.Chat),
		Body:      extractTextBody(evt.Message),
		Timestamp: evt.Info.Timestamp.Unix(),
		Direction: chatnet.DirectionFromMe(evt.Info.IsFromMe),
		Kind:      detectKind(evt.Message),
	}
}

// parseHistoryMessage normalizes a history sync message.
func parseHistoryMessage(chatID string, wmsg *waWeb.WebMessageInfo) chatnet.Message {
	return chatnet.Message{
		ID:        wmsg.GetKey().GetID(),
		ChatID:    chatID,
		Body:      extractTextBody(wmsg.GetMessage()),
		Timestamp: int64(wmsg.GetMessageTimestamp()),
		Direction: chatnet.DirectionFromMe(wmsg.GetKey().GetFromMe()),
		Kind:      detectKind(wmsg.GetMessage()),
	}
}

// toJID maps a normalized chat ID onto a whatsmeow JID. The bridge's
// canonical "@c.us" addresses translate to the user server; anything
// else (groups, broadcast) is parsed as-is.
func toJID(chatID string) (types.JID, error) {
	chatID = chatnet.NormalizeChatID(chatID)
	if user, ok := strings.CutSuffix(chatID, chatnet.CanonicalSuffix); ok {
		return types.NewJID(user, types.DefaultUserServer), nil
	}
	return types.ParseJID(chatID)
}

// chatIDFromJID maps a whatsmeow JID back to the bridge's canonical
// chat ID. Device/agent suffixes are stripped so live and history
// messages agree on the same chat.
func chatIDFromJID(jid types.JID) string {
	jid = jid.ToNonAD()
	if jid.Server == types.DefaultUserServer {
		return jid.User + chatnet.CanonicalSuffix
	}
	return jid.String()
}

// chatIDFromRaw maps a raw JID string (history sync conversation ID)
// onto the canonical chat ID. Unparseable values pass through.
func chatIDFromRaw(raw string) string {
	if raw == "" {
		return ""
	}
	jid, err := types.ParseJID(raw)
	if err != nil {
		return raw
	}
	return chatIDFromJID(jid)
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func detectKind(msg *waE2E.Message) string {
	if msg == nil {
		return chatnet.KindUnknown
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return chatnet.KindText
	case msg.GetImageMessage() != nil:
		return chatnet.KindImage
	case msg.GetVideoMessage() != nil:
		return chatnet.KindVideo
	case msg.GetAudioMessage() != nil:
		return chatnet.KindAudio
	case msg.GetDocumentMessage() != nil:
		return chatnet.KindDocument
	case msg.GetStickerMessage() != nil:
		return chatnet.KindSticker
	case msg.GetContactMessage() != nil:
		return chatnet.KindContact
	case msg.GetLocationMessage() != nil:
		return chatnet.KindLocation
	default:
		return chatnet.KindUnknown
	}
}
