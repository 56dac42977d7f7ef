// Package persistence composes the offline queue, the channel history log,
// and the durable chat table behind the operations the broker and the
// domain layer call. The stores are authoritative for message content; the
// hub's in-process maps hold connections and channels only.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lalith-99/streamgate/internal/models"
	"github.com/lalith-99/streamgate/internal/protocol"
	"github.com/lalith-99/streamgate/internal/repository"
)

// Retention configures the three expiry windows.
type Retention struct {
	Offline time.Duration
	History time.Duration
	Chat    time.Duration
}

type Service struct {
	offline   repository.OfflineStore
	history   repository.HistoryStore
	chat      repository.ChatStore
	retention Retention
	logger    *zap.Logger
}

func NewService(
	offline repository.OfflineStore,
	history repository.HistoryStore,
	chat repository.ChatStore,
	retention Retention,
	logger *zap.Logger,
) *Service {
	if retention.Offline <= 0 {
		retention.Offline = 7 * 24 * time.Hour
	}
	if retention.History <= 0 {
		retention.History = 7 * 24 * time.Hour
	}
	if retention.Chat <= 0 {
		retention.Chat = 30 * 24 * time.Hour
	}
	return &Service{
		offline:   offline,
		history:   history,
		chat:      chat,
		retention: retention,
		logger:    logger,
	}
}

// StoreOfflineMessage queues a payload for a user with no live connection.
func (s *Service) StoreOfflineMessage(ctx context.Context, userID string, payload map[string]any, payloadType string) (*models.OfflineMessage, error) {
	now := time.Now()
	msg := models.OfflineMessage{
		ID:          uuid.NewString(),
		UserID:      userID,
		Payload:     payload,
		PayloadType: payloadType,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.retention.Offline),
	}
	if err := s.offline.Store(ctx, msg); err != nil {
		return nil, fmt.Errorf("store offline message: %w", err)
	}
	return &msg, nil
}

func (s *Service) GetOfflineMessages(ctx context.Context, userID string, limit int) ([]models.OfflineMessage, error) {
	return s.offline.List(ctx, userID, limit)
}

func (s *Service) ClearOfflineMessages(ctx context.Context, userID string) error {
	return s.offline.Clear(ctx, userID)
}

// StoreChannelMessage appends a broadcast payload to the channel's history.
func (s *Service) StoreChannelMessage(ctx context.Context, channel string, payload map[string]any, payloadType string) error {
	entry := models.ChannelHistoryEntry{
		ID:          uuid.NewString(),
		Channel:     channel,
		Payload:     payload,
		PayloadType: payloadType,
		CreatedAt:   time.Now(),
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return fmt.Errorf("store channel message: %w", err)
	}
	return nil
}

// GetChannelHistory returns a page of history in replay order (oldest to
// newest within the page). A non-zero before paginates backwards.
func (s *Service) GetChannelHistory(ctx context.Context, channel string, limit int, before time.Time) ([]models.ChannelHistoryEntry, error) {
	return s.history.List(ctx, channel, limit, before)
}

// StoreChatMessage writes the durable chat message, then queues an offline
// notification so the recipient learns about it on reconnect even if not
// currently live. The durable write is the source of truth: if it fails,
// nothing is queued and the caller must not assume delivery. A failure of
// the follow-up offline enqueue is logged but does not fail the operation,
// since the durable message already exists and remains retrievable.
func (s *Service) StoreChatMessage(ctx context.Context, fromUserID, toUserID, body, chatType string) (*models.ChatMessage, error) {
	msg, err := s.chat.Create(ctx, fromUserID, toUserID, body, chatType)
	if err != nil {
		return nil, fmt.Errorf("store chat message: %w", err)
	}

	payload := map[string]any{
		"chat_message_id": msg.ID,
		"from_user_id":    msg.FromUserID,
		"body":            msg.Body,
		"chat_type":       msg.ChatType,
		"created_at":      msg.CreatedAt,
	}
	if _, err := s.StoreOfflineMessage(ctx, toUserID, payload, protocol.TypeChatMessage); err != nil {
		s.logger.Error("chat message stored but offline notification failed",
			zap.Int64("chat_message_id", msg.ID),
			zap.String("to_user_id", toUserID),
			zap.Error(err),
		)
	}
	return msg, nil
}

// GetChatHistory returns messages between the two users in either
// direction, chronologically ascending, most recent page when before is 0.
func (s *Service) GetChatHistory(ctx context.Context, userA, userB string, limit int, before int64) ([]models.ChatMessage, error) {
	return s.chat.ListBetween(ctx, userA, userB, before, limit)
}

// MarkChatMessagesAsRead bulk-marks everything unread from one sender.
// Idempotent: the second call in a row reports 0.
func (s *Service) MarkChatMessagesAsRead(ctx context.Context, userID, fromUserID string) (int, error) {
	return s.chat.MarkRead(ctx, userID, fromUserID)
}

func (s *Service) GetUnreadMessageStats(ctx context.Context, userID string) (*models.UnreadStats, error) {
	offline, err := s.offline.List(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("count offline messages: %w", err)
	}
	unread, err := s.chat.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread chats: %w", err)
	}
	return &models.UnreadStats{
		OfflineMessages: len(offline),
		UnreadChats:     unread,
		Total:           len(offline) + unread,
	}, nil
}

// CleanupExpiredMessages runs the retention sweep across all three stores
// and reports per-category removal counts. Store failures are logged and
// the sweep continues; a partial sweep this hour finishes next hour.
func (s *Service) CleanupExpiredMessages(ctx context.Context) models.CleanupCounts {
	now := time.Now()
	var counts models.CleanupCounts

	offline, err := s.offline.CleanupExpired(ctx, now)
	if err != nil {
		s.logger.Error("offline cleanup failed", zap.Error(err))
	}
	counts.Offline = offline

	channel, err := s.history.CleanupExpired(ctx, now.Add(-s.retention.History))
	if err != nil {
		s.logger.Error("channel history cleanup failed", zap.Error(err))
	}
	counts.Channel = channel

	chat, err := s.chat.PurgeOlderThan(ctx, now.Add(-s.retention.Chat))
	if err != nil {
		s.logger.Error("chat purge failed", zap.Error(err))
	}
	counts.Chat = chat

	if counts.Offline+counts.Channel+counts.Chat > 0 {
		s.logger.Info("retention sweep completed",
			zap.Int("offline", counts.Offline),
			zap.Int("channel", counts.Channel),
			zap.Int("chat", counts.Chat),
		)
	}
	return counts
}

// QueueForUser adapts the offline queue to the hub's fallback interface:
// the undeliverable envelope is stored whole so a reconnecting client can
// replay it exactly, message_id included.
func (s *Service) QueueForUser(ctx context.Context, userID string, env protocol.Envelope) error {
	payload := map[string]any{
		"type":       env.Type,
		"data":       env.Data,
		"message_id": env.MessageID,
		"timestamp":  env.Timestamp,
	}
	_, err := s.StoreOfflineMessage(ctx, userID, payload, env.Type)
	return err
}

// RecordBroadcast adapts channel history to the hub's recorder interface.
func (s *Service) RecordBroadcast(ctx context.Context, channel string, env protocol.Envelope) error {
	return s.StoreChannelMessage(ctx, channel, map[string]any{
		"type":       env.Type,
		"data":       env.Data,
		"message_id": env.MessageID,
	}, env.Type)
}
