package models

import "time"

// OfflineMessage is a payload queued for a user who had no live connection
// when delivery was attempted. Queues are capped per user (newest kept) and
// entries expire after a fixed retention window.
type OfflineMessage struct {
	ID          string         `json:"id"`
	UserID      string         `json:"user_id"`
	Payload     map[string]any `json:"payload"`
	PayloadType string         `json:"payload_type"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// ChannelHistoryEntry is a durable record of a message broadcast to a
// channel, ordered and paginated by CreatedAt.
type ChannelHistoryEntry struct {
	ID          string         `json:"id"`
	Channel     string         `json:"channel"`
	Payload     map[string]any `json:"payload"`
	PayloadType string         `json:"payload_type"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ChatMessage is a durable, addressed message between two users.
//
// Why int64 for ID (not UUID)? Chat messages are the highest-volume table,
// they are only ever created through this service, and the bigserial id
// doubles as the pagination cursor: higher id = newer message.
type ChatMessage struct {
	ID         int64      `json:"id"`
	FromUserID string     `json:"from_user_id"`
	ToUserID   string     `json:"to_user_id"`
	Body       string     `json:"body"`
	ChatType   string     `json:"chat_type"`
	CreatedAt  time.Time  `json:"created_at"`
	ReadAt     *time.Time `json:"read_at,omitempty"`
}

// UnreadStats summarizes what is waiting for a user.
type UnreadStats struct {
	OfflineMessages int `json:"offline_messages"`
	UnreadChats     int `json:"unread_chats"`
	Total           int `json:"total"`
}

// CleanupCounts reports what a retention sweep removed.
type CleanupCounts struct {
	Offline int `json:"offline"`
	Channel int `json:"channel"`
	Chat    int `json:"chat"`
}

// BrokerStats is the observability snapshot exposed to the domain layer.
type BrokerStats struct {
	Connections   int `json:"connections"`
	Authenticated int `json:"authenticated"`
	Channels      int `json:"channels"`
}
