package repository

import (
	"context"
	"time"

	"github.com/lalith-99/streamgate/internal/models"
)

// Every method takes a context because every implementation that matters
// does I/O (Redis, Postgres). The in-memory implementations accept the
// context for interface parity and ignore it.

// OfflineStore holds per-user queues of messages awaiting reconnection.
// Implementations enforce the per-user cap (newest kept, oldest evicted)
// on insert; expiry is enforced both on read and by CleanupExpired.
type OfflineStore interface {
	Store(ctx context.Context, msg models.OfflineMessage) error

	// List returns up to limit messages, most recent first; limit <= 0
	// returns the whole queue. Entries past their expiry are filtered out
	// even if the sweep has not run yet.
	List(ctx context.Context, userID string, limit int) ([]models.OfflineMessage, error)

	// Clear drops a user's entire queue. No-op for an unknown user.
	Clear(ctx context.Context, userID string) error

	// CleanupExpired removes entries whose ExpiresAt is not after now and
	// returns how many were removed.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// HistoryStore is the capped, time-ordered log of channel broadcasts.
type HistoryStore interface {
	Append(ctx context.Context, entry models.ChannelHistoryEntry) error

	// List returns up to limit entries for the channel, oldest-to-newest
	// within the page (replay order). A non-zero before restricts the page
	// to entries created strictly before that instant; the zero time means
	// the most recent page. Unknown channel returns an empty slice.
	List(ctx context.Context, channel string, limit int, before time.Time) ([]models.ChannelHistoryEntry, error)

	// CleanupExpired trims entries created before the cutoff across all
	// channels and returns how many were removed.
	CleanupExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// ChatStore is the durable table of addressed user-to-user messages.
type ChatStore interface {
	// Create persists a message and returns it with ID and CreatedAt set.
	Create(ctx context.Context, fromUserID, toUserID, body, chatType string) (*models.ChatMessage, error)

	// ListBetween returns messages exchanged between the two users in
	// either direction, chronologically ascending. before is an exclusive
	// message-id cursor; 0 means the most recent page.
	ListBetween(ctx context.Context, userA, userB string, before int64, limit int) ([]models.ChatMessage, error)

	// MarkRead sets read_at on every unread message addressed to userID
	// from fromUserID and returns the number updated. Idempotent.
	MarkRead(ctx context.Context, userID, fromUserID string) (int, error)

	// CountUnread returns how many messages addressed to userID are
	// still unread.
	CountUnread(ctx context.Context, userID string) (int, error)

	// PurgeOlderThan deletes messages created before the cutoff regardless
	// of read state and returns how many were deleted.
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}
