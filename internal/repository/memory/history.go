package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lalith-99/streamgate/internal/models"
)

type HistoryStore struct {
	mu   sync.Mutex
	cap  int
	logs map[string][]models.ChannelHistoryEntry // ascending by CreatedAt
}

func NewHistoryStore(historyCap int) *HistoryStore {
	if historyCap <= 0 {
		historyCap = 1000
	}
	return &HistoryStore{
		cap:  historyCap,
		logs: make(map[string][]models.ChannelHistoryEntry),
	}
}

func (s *HistoryStore) Append(ctx context.Context, entry models.ChannelHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.logs[entry.Channel], entry)
	// Appends normally arrive in time order; a re-sort covers clock skew
	// between writers without changing the common case.
	if n := len(log); n > 1 && log[n-1].CreatedAt.Before(log[n-2].CreatedAt) {
		sort.SliceStable(log, func(i, j int) bool {
			return log[i].CreatedAt.Before(log[j].CreatedAt)
		})
	}
	if len(log) > s.cap {
		log = log[len(log)-s.cap:]
	}
	s.logs[entry.Channel] = log
	return nil
}

func (s *HistoryStore) List(ctx context.Context, channel string, limit int, before time.Time) ([]models.ChannelHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[channel]
	filtered := log
	if !before.IsZero() {
		filtered = filtered[:0:0]
		for _, entry := range log {
			if entry.CreatedAt.Before(before) {
				filtered = append(filtered, entry)
			}
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}

	out := make([]models.ChannelHistoryEntry, len(filtered))
	copy(out, filtered)
	return out, nil
}

func (s *HistoryStore) CleanupExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for channel, log := range s.logs {
		kept := log[:0]
		for _, entry := range log {
			if entry.CreatedAt.Before(cutoff) {
				removed++
			} else {
				kept = append(kept, entry)
			}
		}
		if len(kept) == 0 {
			delete(s.logs, channel)
		} else {
			s.logs[channel] = kept
		}
	}
	return removed, nil
}
