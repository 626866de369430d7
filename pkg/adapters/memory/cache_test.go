package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/switchlink/pkg/adapters/memory"
	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_Contract(t *testing.T) {
	ports.RunCacheContract(t, memory.NewCache())
}

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := memory.NewCache(memory.WithClock(func() time.Time { return now }))

	require.NoError(t, cache.Set(ctx, "k", []byte("v"), time.Minute))
	require.NoError(t, cache.Set(ctx, "forever", []byte("v"), 0))

	now = now.Add(59 * time.Second)
	_, err := cache.Get(ctx, "k")
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = cache.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = cache.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemoryCache_Subscribers(t *testing.T) {
	ctx := context.Background()
	cache := memory.NewCache()

	id, err := cache.Subscribe(ctx, "qt_1", func([]byte) {})
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Subscribers("qt_1"))

	require.NoError(t, cache.Unsubscribe(ctx, "qt_1", id))
	assert.Equal(t, 0, cache.Subscribers("qt_1"))
}
