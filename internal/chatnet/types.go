package chatnet

// Direction indicates which way a message travelled relative to the
// paired account.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// DirectionFromMe maps the network's fromMe flag onto a Direction.
func DirectionFromMe(fromMe bool) Direction {
	if fromMe {
		return Outbound
	}
	return Inbound
}

// Message kinds. Only text messages are actionable by consumers; other
// kinds are relayed with an empty body so the UI can show a placeholder.
const (
	KindText     = "text"
	KindImage    = "image"
	KindVideo    = "video"
	KindAudio    = "audio"
	KindDocument = "document"
	KindSticker  = "sticker"
	KindContact  = "contact"
	KindLocation = "location"
	KindUnknown  = "unknown"
)

// Chat is a conversation thread known to the paired account.
type Chat struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	LastMessage string `json:"lastMessage"`
	Timestamp   int64  `json:"timestamp"`
	UnreadCount int    `json:"unreadCount"`
}

// Message is a single normalized chat message. Timestamp is seconds
// since epoch on the network's clock. Messages are immutable once
// observed.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Body      string    `json:"body"`
	Timestamp int64     `json:"timestamp"`
	Direction Direction `json:"direction"`
	Kind      string    `json:"type"`
}
