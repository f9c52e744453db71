package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
)

var epoch = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func newTestCache(t *testing.T) (*Cache, *clock.Fake) {
	t.Helper()

	fake := clock.NewFake(epoch)
	c := New(Options{Retention: 5 * time.Minute, SweepInterval: time.Minute, Clock: fake})
	t.Cleanup(func() { _ = c.Close() })
	return c, fake
}

func TestTryClaim(t *testing.T) {
	c, fake := newTestCache(t)

	require.True(t, c.TryClaim("u1:k1"))
	assert.False(t, c.TryClaim("u1:k1"))
	assert.True(t, c.TryClaim("u2:k1"))

	fake.Advance(4*time.Minute + 59*time.Second)
	assert.False(t, c.TryClaim("u1:k1"), "still inside the retention window")

	fake.Advance(time.Second)
	assert.True(t, c.TryClaim("u1:k1"), "expired keys are free even before a sweep")
}

func TestEmptyKeyIsNeverRecorded(t *testing.T) {
	c, _ := newTestCache(t)

	assert.True(t, c.TryClaim(""))
	assert.True(t, c.TryClaim(""))
	assert.Equal(t, 0, c.Len())
}

func TestRelease(t *testing.T) {
	c, _ := newTestCache(t)

	require.True(t, c.TryClaim("k"))
	c.Release("k")
	assert.True(t, c.TryClaim("k"))
}

func TestSweep(t *testing.T) {
	c, _ := newTestCache(t)

	c.TryClaim("old")
	removed := c.Sweep(epoch.Add(time.Minute))
	assert.Equal(t, 0, removed)

	removed = c.Sweep(epoch.Add(5 * time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, c.Len())
}

func TestSweepLoopRunsWithoutClaims(t *testing.T) {
	c, fake := newTestCache(t)

	c.TryClaim("k")
	fake.Advance(6 * time.Minute)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestConcurrentClaimsHaveOneWinner(t *testing.T) {
	c, _ := newTestCache(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryClaim("same") {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}
