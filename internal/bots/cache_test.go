package bots

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	bot := &Bot{ID: "local-1", ProviderID: "bot-1", Name: "Intake", Domain: DomainMedical}
	require.NoError(t, cache.Put(ctx, bot))

	got, err := cache.Get(ctx, "bot-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Intake", got.Name)
	assert.Equal(t, DomainMedical, got.Domain)
}

func TestCacheMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	got, err := cache.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &Bot{ProviderID: "bot-1", Name: "Intake"}))
	require.NoError(t, cache.Invalidate(ctx, "bot-1"))

	got, err := cache.Get(ctx, "bot-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCacheCorruptEntryTreatedAsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("bot_mirror:bot-1", "{not json"))

	got, err := cache.Get(ctx, "bot-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists("bot_mirror:bot-1"), "corrupt entry is dropped")
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.Put(ctx, &Bot{ProviderID: "bot-1", Name: "Intake"}))
	mr.FastForward(2 * time.Minute)

	got, err := cache.Get(ctx, "bot-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	got, err := cache.Get(ctx, "bot-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, cache.Put(ctx, &Bot{ProviderID: "bot-1"}))
	assert.NoError(t, cache.Invalidate(ctx, "bot-1"))
}
