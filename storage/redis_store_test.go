package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-digest/models"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisStore(rdb), mr
}

func TestRedisStoreInsertIfAbsent(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()
	l := listing("https://example.com/imovel/1", 2100, time.Now())

	first, err := store.InsertIfAbsent(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, models.Inserted, first)

	second, err := store.InsertIfAbsent(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, models.AlreadyExists, second)

	assert.True(t, mr.Exists(redisListingPrefix+l.ID))
	members, err := mr.ZMembers(redisUpdatedIndex)
	require.NoError(t, err)
	assert.Equal(t, []string{l.ID}, members)
}

func TestRedisStoreScanSince(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	_, err := store.InsertIfAbsent(ctx, listing("https://example.com/recent", 1500, now.Add(-time.Hour)))
	require.NoError(t, err)
	_, err = store.InsertIfAbsent(ctx, listing("https://example.com/old", 1700, now.Add(-12*time.Hour)))
	require.NoError(t, err)

	got, err := store.ScanSince(ctx, now.Add(-8*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/recent", got[0].ID)
	assert.Equal(t, 1500.0, got[0].Price)
	assert.Equal(t, "https://example.com/recent", got[0].DetailURL)

	got, err = store.ScanSince(ctx, now.Add(-30*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisStorePing(t *testing.T) {
	store, _ := newTestRedisStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
