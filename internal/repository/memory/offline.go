// Package memory holds in-process implementations of the repository
// interfaces. They mirror the semantics of the Redis and Postgres stores
// exactly and back two things: local development without infrastructure,
// and the test suites of the hub and persistence layers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lalith-99/streamgate/internal/models"
)

type OfflineStore struct {
	mu     sync.Mutex
	cap    int
	queues map[string][]models.OfflineMessage // newest first
}

func NewOfflineStore(queueCap int) *OfflineStore {
	if queueCap <= 0 {
		queueCap = 100
	}
	return &OfflineStore{
		cap:    queueCap,
		queues: make(map[string][]models.OfflineMessage),
	}
}

func (s *OfflineStore) Store(ctx context.Context, msg models.OfflineMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := append([]models.OfflineMessage{msg}, s.queues[msg.UserID]...)
	if len(q) > s.cap {
		q = q[:s.cap]
	}
	s.queues[msg.UserID] = q
	return nil
}

func (s *OfflineStore) List(ctx context.Context, userID string, limit int) ([]models.OfflineMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	out := make([]models.OfflineMessage, 0, max(limit, 0))
	for _, msg := range s.queues[userID] {
		if !msg.ExpiresAt.After(now) {
			continue
		}
		out = append(out, msg)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *OfflineStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.queues, userID)
	return nil
}

func (s *OfflineStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, q := range s.queues {
		kept := q[:0]
		for _, msg := range q {
			if msg.ExpiresAt.After(now) {
				kept = append(kept, msg)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.queues, userID)
		} else {
			s.queues[userID] = kept
		}
	}
	return removed, nil
}
