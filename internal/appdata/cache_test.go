package appdata

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute), mr
}

func TestCacheVersionInitialises(t *testing.T) {
	cache, _ := newTestCache(t)

	ver, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), ver)

	again, err := cache.Version(context.Background())
	require.NoError(t, err)
	require.Equal(t, ver, again)
}

func TestFetchJSONPopulatesOnce(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "appdata", "snapshot")
	require.NoError(t, err)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return Snapshot{Projects: []ProjectSummary{{ID: 1, Code: "PRJ-A", Name: "Alpha"}}}, nil
	}

	var first Snapshot
	require.NoError(t, cache.FetchJSON(ctx, key, &first, loader))
	require.Len(t, first.Projects, 1)

	var second Snapshot
	require.NoError(t, cache.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestBumpChangesKey(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	before, err := cache.BuildKey(ctx, "appdata", "snapshot")
	require.NoError(t, err)

	require.NoError(t, cache.Bump(ctx))

	after, err := cache.BuildKey(ctx, "appdata", "snapshot")
	require.NoError(t, err)
	require.NotEqual(t, before, after)
}

func TestNilCacheFallsThrough(t *testing.T) {
	var cache *Cache
	ctx := context.Background()

	key, err := cache.BuildKey(ctx, "appdata", "snapshot")
	require.NoError(t, err)

	var snap Snapshot
	err = cache.FetchJSON(ctx, key, &snap, func(context.Context) (any, error) {
		return Snapshot{Materials: []MaterialSummary{{ID: 10, Code: "CEM"}}}, nil
	})
	require.NoError(t, err)
	require.Len(t, snap.Materials, 1)
	require.NoError(t, cache.Bump(ctx))
}
