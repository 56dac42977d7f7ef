package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lalith-99/streamgate/internal/models"
)

type ChatStore struct {
	mu     sync.Mutex
	nextID int64
	msgs   []models.ChatMessage // ascending by id
}

func NewChatStore() *ChatStore {
	return &ChatStore{nextID: 1}
}

func (s *ChatStore) Create(ctx context.Context, fromUserID, toUserID, body, chatType string) (*models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := models.ChatMessage{
		ID:         s.nextID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Body:       body,
		ChatType:   chatType,
		CreatedAt:  time.Now(),
	}
	s.nextID++
	s.msgs = append(s.msgs, msg)

	out := msg
	return &out, nil
}

func (s *ChatStore) ListBetween(ctx context.Context, userA, userB string, before int64, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]models.ChatMessage, 0)
	for _, msg := range s.msgs {
		pair := (msg.FromUserID == userA && msg.ToUserID == userB) ||
			(msg.FromUserID == userB && msg.ToUserID == userA)
		if !pair {
			continue
		}
		if before > 0 && msg.ID >= before {
			continue
		}
		matched = append(matched, msg)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (s *ChatStore) MarkRead(ctx context.Context, userID, fromUserID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	updated := 0
	for i := range s.msgs {
		msg := &s.msgs[i]
		if msg.ToUserID == userID && msg.FromUserID == fromUserID && msg.ReadAt == nil {
			t := now
			msg.ReadAt = &t
			updated++
		}
	}
	return updated, nil
}

func (s *ChatStore) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range s.msgs {
		if s.msgs[i].ToUserID == userID && s.msgs[i].ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (s *ChatStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.msgs[:0]
	removed := 0
	for _, msg := range s.msgs {
		if msg.CreatedAt.Before(cutoff) {
			removed++
		} else {
			kept = append(kept, msg)
		}
	}
	s.msgs = kept
	return removed, nil
}
