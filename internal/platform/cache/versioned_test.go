package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type report struct {
	Total int `json:"total"`
}

func newTestCache(t *testing.T) *Versioned {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewVersioned(client, "summary", time.Minute)
}

func TestFetchJSONCachesUntilBump(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	calls := 0
	loader := func(context.Context) (any, error) {
		calls++
		return report{Total: calls * 10}, nil
	}

	var got report
	require.NoError(t, c.FetchJSON(ctx, &got, loader, "acct"))
	require.Equal(t, 10, got.Total)

	require.NoError(t, c.FetchJSON(ctx, &got, loader, "acct"))
	require.Equal(t, 10, got.Total)
	require.Equal(t, 1, calls)

	require.NoError(t, c.Bump(ctx))
	require.NoError(t, c.FetchJSON(ctx, &got, loader, "acct"))
	require.Equal(t, 20, got.Total)
	require.Equal(t, 2, calls)
}

func TestBuildKeyIncludesVersion(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	key, err := c.BuildKey(ctx, "invoices", "a1")
	require.NoError(t, err)
	require.Equal(t, "summary:invoices:a1:v1", key)

	require.NoError(t, c.Bump(ctx))
	key, err = c.BuildKey(ctx, "invoices", "a1")
	require.NoError(t, err)
	require.Equal(t, "summary:invoices:a1:v2", key)
}

func TestNilClientFallsThroughToLoader(t *testing.T) {
	c := NewVersioned(nil, "summary", time.Minute)
	calls := 0
	var got report
	for i := 0; i < 2; i++ {
		require.NoError(t, c.FetchJSON(context.Background(), &got, func(context.Context) (any, error) {
			calls++
			return report{Total: 7}, nil
		}, "k"))
	}
	require.Equal(t, 7, got.Total)
	require.Equal(t, 2, calls)
	require.NoError(t, c.Bump(context.Background()))
}
