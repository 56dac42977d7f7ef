package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lalith-99/streamgate/internal/models"
)

// ChatStore persists addressed user-to-user messages in the chat_messages
// table. Messages use bigserial ids: higher id means newer message, which
// doubles as the pagination cursor.
type ChatStore struct {
	pool *pgxpool.Pool
}

func NewChatStore(pool *pgxpool.Pool) *ChatStore {
	return &ChatStore{pool: pool}
}

func (s *ChatStore) Create(ctx context.Context, fromUserID, toUserID, body, chatType string) (*models.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (from_user_id, to_user_id, body, chat_type, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, from_user_id, to_user_id, body, chat_type, created_at, read_at`

	var msg models.ChatMessage
	err := s.pool.QueryRow(ctx, query, fromUserID, toUserID, body, chatType).Scan(
		&msg.ID,
		&msg.FromUserID,
		&msg.ToUserID,
		&msg.Body,
		&msg.ChatType,
		&msg.CreatedAt,
		&msg.ReadAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return &msg, nil
}

func (s *ChatStore) ListBetween(ctx context.Context, userA, userB string, before int64, limit int) ([]models.ChatMessage, error) {
	// The pair matches in either direction. The query pages newest-first
	// on the id cursor; the result is reversed below because callers want
	// chronological display order.
	var query string
	var args []any

	if before > 0 {
		query = `
			SELECT id, from_user_id, to_user_id, body, chat_type, created_at, read_at
			FROM chat_messages
			WHERE ((from_user_id = $1 AND to_user_id = $2)
			    OR (from_user_id = $2 AND to_user_id = $1))
			  AND id < $3
			ORDER BY id DESC
			LIMIT $4`
		args = []any{userA, userB, before, limit}
	} else {
		query = `
			SELECT id, from_user_id, to_user_id, body, chat_type, created_at, read_at
			FROM chat_messages
			WHERE (from_user_id = $1 AND to_user_id = $2)
			   OR (from_user_id = $2 AND to_user_id = $1)
			ORDER BY id DESC
			LIMIT $3`
		args = []any{userA, userB, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.FromUserID,
			&msg.ToUserID,
			&msg.Body,
			&msg.ChatType,
			&msg.CreatedAt,
			&msg.ReadAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	// Reverse into ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, userID, fromUserID string) (int, error) {
	// The read_at IS NULL filter makes this idempotent: a second call
	// finds nothing left to update and reports 0.
	query := `
		UPDATE chat_messages
		SET read_at = now()
		WHERE to_user_id = $1 AND from_user_id = $2 AND read_at IS NULL`

	tag, err := s.pool.Exec(ctx, query, userID, fromUserID)
	if err != nil {
		return 0, fmt.Errorf("mark chat messages read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *ChatStore) CountUnread(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT count(*)
		FROM chat_messages
		WHERE to_user_id = $1 AND read_at IS NULL`

	var count int
	if err := s.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread chat messages: %w", err)
	}
	return count, nil
}

func (s *ChatStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM chat_messages WHERE created_at < $1`

	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge chat messages: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
