package ports

import (
	"context"
	"time"
)

// SubscriptionID identifies one subscription on a channel.
type SubscriptionID uint64

// MessageHandler receives the raw payload of a published message.
// Handlers must not block; adapters may invoke them from a delivery goroutine.
type MessageHandler func(payload []byte)

// Cache is the shared store used both for transaction persistence and for
// delivering asynchronous notifications to waiting requests.
type Cache interface {
	// Get returns the value at key, or domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// AddMember adds member to the set at key.
	AddMember(ctx context.Context, key, member string) error

	// Members lists the set at key. A missing set is empty, not an error.
	Members(ctx context.Context, key string) ([]string, error)

	// Publish delivers payload to every live subscription on channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe registers h on channel. It returns once the subscription is
	// live, so a message published afterwards is guaranteed to reach h.
	Subscribe(ctx context.Context, channel string, h MessageHandler) (SubscriptionID, error)

	// Unsubscribe removes a subscription. Once it returns, h is not called again.
	Unsubscribe(ctx context.Context, channel string, id SubscriptionID) error
}
