package repository

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papanskor/internal/scoreboard/model"
)

func newCache(t *testing.T, ttl time.Duration) (*ShareCache, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewShareCache(client, "test:share:", ttl), m
}

func TestShareCacheSetGetInvalidate(t *testing.T) {
	cache, m := newCache(t, time.Minute)
	ctx := context.Background()

	miss, err := cache.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, miss)

	res := model.ShareResolution{DocumentID: "doc-1", Access: model.ShareView}
	require.NoError(t, cache.Set(ctx, "tok", res))
	assert.True(t, m.Exists("test:share:tok"))

	got, err := cache.Get(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res, *got)

	require.NoError(t, cache.Invalidate(ctx, "tok", ""))
	got, err = cache.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestShareCacheExpires(t *testing.T) {
	cache, m := newCache(t, 2*time.Second)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "tok", model.ShareResolution{DocumentID: "doc-1", Access: model.ShareControl}))
	m.FastForward(3 * time.Second)

	got, err := cache.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Nil(t, got)
}
