package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestVersionedFetchJSON(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := NewVersioned(client, "test", time.Minute)
	ctx := context.Background()

	key, err := c.Key(ctx, "items")
	require.NoError(t, err)
	require.Equal(t, "test:items:v1", key)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	var first []string
	require.NoError(t, c.FetchJSON(ctx, key, &first, loader))
	var second []string
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, []string{"a", "b"}, second)
	require.Equal(t, 1, calls)

	ver, err := c.Bump(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, ver)

	key, err = c.Key(ctx, "items")
	require.NoError(t, err)
	require.Equal(t, "test:items:v2", key)
	require.NoError(t, c.FetchJSON(ctx, key, &second, loader))
	require.Equal(t, 2, calls)
}

func TestVersionedNilClientLoadsDirectly(t *testing.T) {
	c := NewVersioned(nil, "test", time.Minute)
	key, err := c.Key(context.Background(), "x")
	require.NoError(t, err)
	require.Equal(t, "test:x", key)

	var out map[string]int
	require.NoError(t, c.FetchJSON(context.Background(), key, &out, func(context.Context) (any, error) {
		return map[string]int{"n": 1}, nil
	}))
	require.Equal(t, 1, out["n"])
}

func TestNewFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := New(context.Background(), Options{Addr: addr})
	require.Error(t, err)
}
