package store

import (
	"fmt"

	"github.com/ssantosv/zapbridge/internal/chatnet"
)

// UpsertMessage inserts a message, keyed by (chat_id, msg_id). Replays
// of the same message (live event plus history sync) are idempotent.
func (db *DB) UpsertMessage(m *chatnet.Message) error {
	_, err := db.Exec(`
		INSERT INTO messages (chat_id, msg_id, body, direction, kind, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chat_id, msg_id) DO UPDATE SET
			body = excluded.body,
			kind = excluded.kind`,
		m.ChatID, m.ID, m.Body, string(m.Direction), m.Kind, m.Timestamp)
	if err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit messages for a chat, oldest first.
func (db *DB) ListMessages(chatID string, limit int) ([]chatnet.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT chat_id, msg_id, body, direction, kind, timestamp FROM (
			SELECT chat_id, msg_id, body, direction, kind, timestamp
			FROM messages WHERE chat_id = ?
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []chatnet.Message
	for rows.Next() {
		var m chatnet.Message
		var direction string
		if err := rows.Scan(&m.ChatID, &m.ID, &m.Body, &direction, &m.Kind, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Direction = chatnet.Direction(direction)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
