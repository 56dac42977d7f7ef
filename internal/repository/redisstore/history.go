package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lalith-99/streamgate/internal/models"
)

const historyKeyPrefix = "streamgate:history:"

type HistoryStore struct {
	client    *redis.Client
	cap       int
	retention time.Duration
}

func NewHistoryStore(client *redis.Client, historyCap int, retention time.Duration) *HistoryStore {
	if historyCap <= 0 {
		historyCap = 1000
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &HistoryStore{client: client, cap: historyCap, retention: retention}
}

func historyKey(channel string) string {
	return historyKeyPrefix + channel
}

func (s *HistoryStore) Append(ctx context.Context, entry models.ChannelHistoryEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}

	key := historyKey(entry.Channel)
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(entry.CreatedAt.UnixMilli()),
		Member: raw,
	})
	// Drop everything below the newest cap entries.
	pipe.ZRemRangeByRank(ctx, key, 0, int64(-(s.cap + 1)))
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}

func (s *HistoryStore) List(ctx context.Context, channel string, limit int, before time.Time) ([]models.ChannelHistoryEntry, error) {
	max := "+inf"
	if !before.IsZero() {
		// Exclusive bound: strictly older than the cursor.
		max = "(" + strconv.FormatInt(before.UnixMilli(), 10)
	}

	raws, err := s.client.ZRevRangeByScore(ctx, historyKey(channel), &redis.ZRangeBy{
		Min:    "-inf",
		Max:    max,
		Offset: 0,
		Count:  int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list channel history: %w", err)
	}

	// ZRevRangeByScore returns newest first; replay order is oldest first.
	out := make([]models.ChannelHistoryEntry, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var entry models.ChannelHistoryEntry
		if err := json.Unmarshal([]byte(raws[i]), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal history entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *HistoryStore) CleanupExpired(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)

	iter := s.client.Scan(ctx, 0, historyKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", max).Result()
		if err != nil {
			return removed, fmt.Errorf("trim history %s: %w", iter.Val(), err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan history keys: %w", err)
	}
	return removed, nil
}
