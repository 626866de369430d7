package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key and channel.
const DefaultPrefix = "switchlink:"

type subscription struct {
	pubsub *backend.PubSub
	done   chan struct{}
}

// Cache implements ports.Cache using Redis strings, sets and pub/sub.
// Each subscription owns a dedicated pub/sub connection.
type Cache struct {
	client *backend.Client
	prefix string

	mu     sync.Mutex
	nextID ports.SubscriptionID
	subs   map[ports.SubscriptionID]*subscription
}

type Option func(*Cache)

// WithPrefix sets the namespace for keys and channels.
func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		c.prefix = prefix
	}
}

// New creates a new Redis cache with options.
func New(address, password string, db int, opts ...Option) *Cache {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis cache from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Cache {
	c := &Cache{
		client: client,
		prefix: DefaultPrefix,
		subs:   make(map[ports.SubscriptionID]*subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Client exposes the underlying client, e.g. to share it with a Locker.
func (c *Cache) Client() *backend.Client {
	return c.client
}

func (c *Cache) key(k string) string {
	return c.prefix + k
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

// Set stores value. A zero ttl keeps the key forever.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *Cache) AddMember(ctx context.Context, key, member string) error {
	if err := c.client.SAdd(ctx, c.key(key), member).Err(); err != nil {
		return fmt.Errorf("failed to add set member: %w", err)
	}
	return nil
}

func (c *Cache) Members(ctx context.Context, key string) ([]string, error) {
	members, err := c.client.SMembers(ctx, c.key(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list set members: %w", err)
	}
	return members, nil
}

func (c *Cache) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := c.client.Publish(ctx, c.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish on %s: %w", channel, err)
	}
	return nil
}

// Subscribe waits for the server to confirm the subscription before returning.
func (c *Cache) Subscribe(ctx context.Context, channel string, h ports.MessageHandler) (ports.SubscriptionID, error) {
	ps := c.client.Subscribe(ctx, c.key(channel))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return 0, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &subscription{pubsub: ps, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for msg := range ps.Channel() {
			h([]byte(msg.Payload))
		}
	}()

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.subs[id] = sub
	c.mu.Unlock()
	return id, nil
}

// Unsubscribe closes the subscription and waits for its delivery loop to stop.
func (c *Cache) Unsubscribe(ctx context.Context, channel string, id ports.SubscriptionID) error {
	c.mu.Lock()
	sub, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if !ok {
		return nil
	}

	if err := sub.pubsub.Close(); err != nil {
		return fmt.Errorf("failed to unsubscribe from %s: %w", channel, err)
	}
	select {
	case <-sub.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases every open subscription and the client.
func (c *Cache) Close() error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[ports.SubscriptionID]*subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		_ = sub.pubsub.Close()
	}
	return c.client.Close()
}
