// Package redisstore implements the offline-message queue and the channel
// history log on Redis. Both are natural fits: the offline queue is a
// capped list (LPUSH + LTRIM + EXPIRE), history is a sorted set scored by
// creation time (ZADD + ZREMRANGEBYRANK).
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lalith-99/streamgate/internal/models"
)

const offlineKeyPrefix = "streamgate:offline:"

type OfflineStore struct {
	client    *redis.Client
	cap       int
	retention time.Duration
}

func NewOfflineStore(client *redis.Client, queueCap int, retention time.Duration) *OfflineStore {
	if queueCap <= 0 {
		queueCap = 100
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &OfflineStore{client: client, cap: queueCap, retention: retention}
}

func offlineKey(userID string) string {
	return offlineKeyPrefix + userID
}

func (s *OfflineStore) Store(ctx context.Context, msg models.OfflineMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal offline message: %w", err)
	}

	key := offlineKey(msg.UserID)
	// LPUSH + LTRIM keeps newest-first order with the cap enforced on
	// every insert; the key-level TTL bounds abandoned queues.
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, raw)
	pipe.LTrim(ctx, key, 0, int64(s.cap-1))
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store offline message: %w", err)
	}
	return nil
}

func (s *OfflineStore) List(ctx context.Context, userID string, limit int) ([]models.OfflineMessage, error) {
	// limit <= 0 means the whole queue.
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raws, err := s.client.LRange(ctx, offlineKey(userID), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list offline messages: %w", err)
	}

	now := time.Now()
	out := make([]models.OfflineMessage, 0, len(raws))
	for _, raw := range raws {
		var msg models.OfflineMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal offline message: %w", err)
		}
		// Per-entry expiry runs ahead of the key TTL and the sweep.
		if msg.ExpiresAt.After(now) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (s *OfflineStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, offlineKey(userID)).Err(); err != nil {
		return fmt.Errorf("clear offline messages: %w", err)
	}
	return nil
}

func (s *OfflineStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	removed := 0

	iter := s.client.Scan(ctx, 0, offlineKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		raws, err := s.client.LRange(ctx, key, 0, -1).Result()
		if err != nil {
			return removed, fmt.Errorf("scan offline queue %s: %w", key, err)
		}

		kept := make([]any, 0, len(raws))
		for _, raw := range raws {
			var msg models.OfflineMessage
			if err := json.Unmarshal([]byte(raw), &msg); err != nil {
				// Unreadable entries are dropped with the expired ones.
				removed++
				continue
			}
			if msg.ExpiresAt.After(now) {
				kept = append(kept, raw)
			} else {
				removed++
			}
		}
		if len(kept) == len(raws) {
			continue
		}

		// Rebuild the queue atomically. RPUSH in newest-first order
		// reproduces the list layout LPUSH maintains.
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, key)
		if len(kept) > 0 {
			pipe.RPush(ctx, key, kept...)
			pipe.Expire(ctx, key, s.retention)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, fmt.Errorf("rewrite offline queue %s: %w", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan offline queues: %w", err)
	}
	return removed, nil
}
