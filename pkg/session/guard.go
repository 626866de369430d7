package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/switchlink/internal/logging"
	"github.com/aretw0/switchlink/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed holder can block a transaction.
const DefaultLockTTL = 2 * time.Minute

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Guard orchestrates access to transactions, one holder at a time per id.
// It uses Reference Counting to garbage collect unused locks.
type Guard struct {
	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Guard.
type Option func(*Guard)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(g *Guard) {
		g.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(g *Guard) {
		g.ttl = ttl
	}
}

// WithLogger configures a logger for the Guard.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// NewGuard creates a new Guard.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(id) after unlocking.
func (g *Guard) acquire(id string) *lockEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[id]
	if !exists {
		entry = &lockEntry{}
		g.locks[id] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (g *Guard) release(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.locks[id]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(g.locks, id)
	}
}

// WithLock executes fn while holding the lock for the transaction.
func (g *Guard) WithLock(ctx context.Context, id string, fn func(context.Context) error) error {
	entry := g.acquire(id)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		g.release(id)
	}()

	if g.locker != nil {
		unlock, err := g.locker.Lock(ctx, id, g.ttl)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				g.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"transaction_id", id,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Active reports how many transactions currently have a lock entry.
func (g *Guard) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
