package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"papanskor/internal/scoreboard/model"
)

// ShareCache keeps resolved share tokens in Redis under "share:<token>".
type ShareCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewShareCache(client *redis.Client, prefix string, ttl time.Duration) *ShareCache {
	if prefix == "" {
		prefix = "share:"
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ShareCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ShareCache) key(token string) string {
	return c.prefix + token
}

// Get returns nil, nil on a miss.
func (c *ShareCache) Get(ctx context.Context, token string) (*model.ShareResolution, error) {
	b, err := c.client.Get(ctx, c.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var res model.ShareResolution
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *ShareCache) Set(ctx context.Context, token string, res model.ShareResolution) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(token), b, c.ttl).Err()
}

// Invalidate drops the given tokens, e.g. when their scoreboard is deleted.
func (c *ShareCache) Invalidate(ctx context.Context, tokens ...string) error {
	keys := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t != "" {
			keys = append(keys, c.key(t))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
