package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCacheContract runs a suite of tests to verify that a Cache implementation
// adheres to the defined interface contract.
func RunCacheContract(t *testing.T, cache Cache) {
	ctx := context.Background()
	suffix := time.Now().Format("20060102150405.000000")

	receive := func(t *testing.T, ch <-chan []byte) []byte {
		t.Helper()
		select {
		case msg := <-ch:
			return msg
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for published message")
			return nil
		}
	}

	t.Run("Set and Get", func(t *testing.T) {
		key := "contract-key-" + suffix
		require.NoError(t, cache.Set(ctx, key, []byte(`{"a":1}`), time.Minute))

		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(got))
	})

	t.Run("Get Missing", func(t *testing.T) {
		_, err := cache.Get(ctx, "contract-missing-"+suffix)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Set Without TTL", func(t *testing.T) {
		key := "contract-nottl-" + suffix
		require.NoError(t, cache.Set(ctx, key, []byte("x"), 0))
		got, err := cache.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "x", string(got))
	})

	t.Run("Members", func(t *testing.T) {
		key := "contract-set-" + suffix
		empty, err := cache.Members(ctx, key)
		require.NoError(t, err)
		assert.Empty(t, empty)

		require.NoError(t, cache.AddMember(ctx, key, "PEER1"))
		require.NoError(t, cache.AddMember(ctx, key, "PEER2"))
		require.NoError(t, cache.AddMember(ctx, key, "PEER1"))

		got, err := cache.Members(ctx, key)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"PEER1", "PEER2"}, got)
	})

	t.Run("Publish and Subscribe", func(t *testing.T) {
		channel := "contract-channel-" + suffix
		ch := make(chan []byte, 4)
		id, err := cache.Subscribe(ctx, channel, func(payload []byte) { ch <- payload })
		require.NoError(t, err)
		defer func() { _ = cache.Unsubscribe(ctx, channel, id) }()

		require.NoError(t, cache.Publish(ctx, channel, []byte("hello")))
		assert.Equal(t, "hello", string(receive(t, ch)))
	})

	t.Run("Fan Out", func(t *testing.T) {
		channel := "contract-fanout-" + suffix
		first := make(chan []byte, 1)
		second := make(chan []byte, 1)

		id1, err := cache.Subscribe(ctx, channel, func(payload []byte) { first <- payload })
		require.NoError(t, err)
		id2, err := cache.Subscribe(ctx, channel, func(payload []byte) { second <- payload })
		require.NoError(t, err)
		assert.NotEqual(t, id1, id2)

		require.NoError(t, cache.Publish(ctx, channel, []byte("m1")))
		assert.Equal(t, "m1", string(receive(t, first)))
		assert.Equal(t, "m1", string(receive(t, second)))

		require.NoError(t, cache.Unsubscribe(ctx, channel, id1))
		require.NoError(t, cache.Publish(ctx, channel, []byte("m2")))
		assert.Equal(t, "m2", string(receive(t, second)))

		select {
		case msg := <-first:
			t.Fatalf("unsubscribed handler received %q", msg)
		case <-time.After(100 * time.Millisecond):
		}
		require.NoError(t, cache.Unsubscribe(ctx, channel, id2))
	})

	t.Run("Publish Without Subscribers", func(t *testing.T) {
		assert.NoError(t, cache.Publish(ctx, fmt.Sprintf("contract-nobody-%s", suffix), []byte("x")))
	})
}
