package bots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const botCacheKeyPrefix = "bot_mirror:"

// Cache fronts GetByProviderID on the webhook hot path with TTL'd JSON
// values in redis. All methods are nil-safe: a nil Cache (redis not
// configured) degrades to repository reads.
type Cache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewCache wraps a redis client. Returns nil when redisClient is nil so
// callers can pass the result around without nil checks.
func NewCache(redisClient *redis.Client, ttl time.Duration) *Cache {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{redis: redisClient, ttl: ttl}
}

// Get returns the cached bot, or (nil, nil) on a miss.
func (c *Cache) Get(ctx context.Context, providerID string) (*Bot, error) {
	if c == nil || c.redis == nil {
		return nil, nil
	}
	data, err := c.redis.Get(ctx, botCacheKey(providerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("bots: cache get: %w", err)
	}
	var bot Bot
	if err := json.Unmarshal(data, &bot); err != nil {
		// A corrupt entry is treated as a miss and dropped.
		_ = c.redis.Del(ctx, botCacheKey(providerID)).Err()
		return nil, nil
	}
	return &bot, nil
}

// Put stores the bot under its provider id.
func (c *Cache) Put(ctx context.Context, bot *Bot) error {
	if c == nil || c.redis == nil || bot == nil {
		return nil
	}
	data, err := json.Marshal(bot)
	if err != nil {
		return fmt.Errorf("bots: cache marshal: %w", err)
	}
	if err := c.redis.Set(ctx, botCacheKey(bot.ProviderID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("bots: cache put: %w", err)
	}
	return nil
}

// Invalidate drops the cached bot after an update or delete.
func (c *Cache) Invalidate(ctx context.Context, providerID string) error {
	if c == nil || c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, botCacheKey(providerID)).Err(); err != nil {
		return fmt.Errorf("bots: cache invalidate: %w", err)
	}
	return nil
}

func botCacheKey(providerID string) string {
	return botCacheKeyPrefix + providerID
}
