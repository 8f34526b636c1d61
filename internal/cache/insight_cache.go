package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"contextinsight/internal/model"
)

type InsightCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewInsightCache(client *redisv9.Client, ttl time.Duration) *InsightCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &InsightCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *InsightCache) Get(ctx context.Context, sessionID string) (*model.ContextInsight, bool, error) {
	raw, err := c.client.Get(ctx, c.insightKey(sessionID)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get insight failed: %w", err)
	}

	var insight model.ContextInsight
	if err := json.Unmarshal(raw, &insight); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached insight failed: %w", err)
	}
	return &insight, true, nil
}

// Version returns the invalidation counter of the session. Pass it to Set so
// that a row read before a concurrent write is never cached.
func (c *InsightCache) Version(ctx context.Context, sessionID string) (int64, error) {
	version, err := c.client.Get(ctx, c.versionKey(sessionID)).Int64()
	if errors.Is(err, redisv9.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get insight version failed: %w", err)
	}
	return version, nil
}

// Set caches insight only while the session version still equals version.
// A stale write is skipped without error.
func (c *InsightCache) Set(ctx context.Context, insight *model.ContextInsight, version int64) error {
	payload, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("marshal insight cache failed: %w", err)
	}

	versionKey := c.versionKey(insight.SessionID)
	err = c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		current, err := tx.Get(ctx, versionKey).Int64()
		if err != nil && !errors.Is(err, redisv9.Nil) {
			return err
		}
		if current != version {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Set(ctx, c.insightKey(insight.SessionID), payload, c.ttl)
			return nil
		})
		return err
	}, versionKey)
	if errors.Is(err, redisv9.TxFailedErr) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis set insight failed: %w", err)
	}
	return nil
}

// Delete drops the cached insight and bumps the session version.
func (c *InsightCache) Delete(ctx context.Context, sessionID string) error {
	versionKey := c.versionKey(sessionID)
	_, err := c.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Del(ctx, c.insightKey(sessionID))
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete insight failed: %w", err)
	}
	return nil
}

func (c *InsightCache) insightKey(sessionID string) string {
	return "context:insight:" + sessionID
}

func (c *InsightCache) versionKey(sessionID string) string {
	return "context:insight:version:" + sessionID
}
