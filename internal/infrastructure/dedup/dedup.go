// Package dedup remembers client idempotency keys for a bounded retention
// window so retried sends are stored and broadcast only once.
package dedup

import (
	"sync"
	"time"

	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
)

const (
	DefaultRetention     = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

type Options struct {
	Retention     time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
}

type Cache struct {
	entries   map[string]time.Time
	mu        sync.Mutex
	retention time.Duration
	clock     clock.Clock
	stopSweep chan struct{}
	sweepOnce sync.Once
}

// New starts the periodic sweep. Call Close to stop it.
func New(options Options) *Cache {
	if options.Retention <= 0 {
		options.Retention = DefaultRetention
	}
	if options.SweepInterval <= 0 {
		options.SweepInterval = DefaultSweepInterval
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	c := &Cache{
		entries:   make(map[string]time.Time),
		retention: options.Retention,
		clock:     options.Clock,
		stopSweep: make(chan struct{}),
	}

	go c.sweepLoop(options.Clock.NewTicker(options.SweepInterval))

	return c
}

// TryClaim returns true for the first caller presenting key within the
// retention window and false for every later one. An empty key is never
// recorded and always passes.
func (c *Cache) TryClaim(key string) bool {
	if key == "" {
		return true
	}

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if claimedAt, ok := c.entries[key]; ok && now.Sub(claimedAt) < c.retention {
		return false
	}

	c.entries[key] = now
	return true
}

// Release forgets key so a later retry can claim it again.
func (c *Cache) Release(key string) {
	if key == "" {
		return
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep drops every entry older than the retention window and returns how
// many were removed.
func (c *Cache) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, claimedAt := range c.entries {
		if now.Sub(claimedAt) >= c.retention {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) Close() error {
	c.sweepOnce.Do(func() {
		close(c.stopSweep)
	})
	return nil
}

func (c *Cache) sweepLoop(ticker clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C():
			c.Sweep(now)
		case <-c.stopSweep:
			return
		}
	}
}
