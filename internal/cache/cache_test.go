package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTTLCacheExpiry(t *testing.T) {
	c := cache.NewTTLCache[string, int](4)
	c.Set("a", 1, time.Hour)
	c.Set("b", 2, 0)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Get("b")
	assert.False(t, ok, "zero ttl is not stored")

	c.Delete("a")
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestTTLCacheBounded(t *testing.T) {
	c := cache.NewTTLCache[int, int](2)
	for i := 0; i < 10; i++ {
		c.Set(i, i, time.Hour)
	}
	v, ok := c.Get(9)
	assert.True(t, ok)
	assert.Equal(t, 9, v)
}

func TestLoaderReadsThroughAndInvalidates(t *testing.T) {
	loader := cache.NewLoader(cache.NewMemoryStore(), time.Minute, zap.NewNop())
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"Bracelets", "Colliers"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.Load(ctx, loader, "catalog", "categories", load)
		require.NoError(t, err)
		assert.Equal(t, []string{"Bracelets", "Colliers"}, got)
	}
	assert.Equal(t, 1, calls)

	loader.Invalidate(ctx, "catalog")
	_, err := cache.Load(ctx, loader, "catalog", "categories", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	loader := cache.NewLoader(cache.NewMemoryStore(), time.Minute, zap.NewNop())
	calls := 0
	load := func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("db down")
		}
		return 7, nil
	}

	_, err := cache.Load(context.Background(), loader, "ns", "k", load)
	assert.Error(t, err)
	v, err := cache.Load(context.Background(), loader, "ns", "k", load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestNilLoaderCallsThrough(t *testing.T) {
	var loader *cache.Loader
	v, err := cache.Load(context.Background(), loader, "ns", "k", func(context.Context) (int, error) { return 3, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	loader.Invalidate(context.Background(), "ns")
}
