package store

import (
	"fmt"

	"github.com/ssantosv/zapbridge/internal/chatnet"
)

// UpsertChat inserts or updates a chat. The newest message wins the
// preview; the name is only overwritten by a non-empty value.
func (db *DB) UpsertChat(c *chatnet.Chat) error {
	_, err := db.Exec(`
		INSERT INTO chats (chat_id, name, last_message, timestamp, unread_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE chats.name END,
			last_message = CASE WHEN excluded.timestamp >= chats.timestamp THEN excluded.last_message ELSE chats.last_message END,
			timestamp = MAX(chats.timestamp, excluded.timestamp),
			unread_count = CASE WHEN excluded.unread_count > 0 THEN excluded.unread_count ELSE chats.unread_count END`,
		c.ID, c.Name, c.LastMessage, c.Timestamp, c.UnreadCount)
	if err != nil {
		return fmt.Errorf("upsert chat: %w", err)
	}
	return nil
}

// ListChats returns cached chats ordered by last activity, newest first.
func (db *DB) ListChats(limit int) ([]chatnet.Chat, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT chat_id, name, last_message, timestamp, unread_count
		FROM chats ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var chats []chatnet.Chat
	for rows.Next() {
		var c chatnet.Chat
		if err := rows.Scan(&c.ID, &c.Name, &c.LastMessage, &c.Timestamp, &c.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
