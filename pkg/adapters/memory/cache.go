package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/switchlink/pkg/domain"
	"github.com/aretw0/switchlink/pkg/ports"
)

type entry struct {
	value   []byte
	expires time.Time
}

// Cache implements ports.Cache in memory.
// Published messages are delivered synchronously on the publisher's goroutine.
// Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	data   map[string]entry
	sets   map[string]map[string]struct{}
	subs   map[string]map[ports.SubscriptionID]ports.MessageHandler
	nextID ports.SubscriptionID
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now for TTL evaluation.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a new in-memory cache.
func NewCache(opts ...Option) *Cache {
	c := &Cache{
		data: make(map[string]entry),
		sets: make(map[string]map[string]struct{}),
		subs: make(map[string]map[ports.SubscriptionID]ports.MessageHandler),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns a copy of the value so callers cannot mutate the cache.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.data[key]
	if !ok || (!e.expires.IsZero() && !c.now().Before(e.expires)) {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = e
	return nil
}

func (c *Cache) AddMember(ctx context.Context, key, member string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.sets[key]
	if !ok {
		set = make(map[string]struct{})
		c.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

// Members returns the set sorted for stable output.
func (c *Cache) Members(ctx context.Context, key string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.sets[key]))
	for m := range c.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// Publish delivers payload to a snapshot of the current subscribers.
func (c *Cache) Publish(ctx context.Context, channel string, payload []byte) error {
	c.mu.RLock()
	handlers := make([]ports.MessageHandler, 0, len(c.subs[channel]))
	for _, h := range c.subs[channel] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(append([]byte(nil), payload...))
	}
	return nil
}

func (c *Cache) Subscribe(ctx context.Context, channel string, h ports.MessageHandler) (ports.SubscriptionID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	if c.subs[channel] == nil {
		c.subs[channel] = make(map[ports.SubscriptionID]ports.MessageHandler)
	}
	c.subs[channel][id] = h
	return id, nil
}

func (c *Cache) Unsubscribe(ctx context.Context, channel string, id ports.SubscriptionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs[channel], id)
	if len(c.subs[channel]) == 0 {
		delete(c.subs, channel)
	}
	return nil
}

// Subscribers reports how many subscriptions are live on channel.
func (c *Cache) Subscribers(channel string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs[channel])
}
