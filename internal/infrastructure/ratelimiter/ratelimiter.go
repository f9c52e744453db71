package ratelimiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const defaultSourceKey = "X-RateLimit-Key"

// Limiter guards HTTP entry points per request source.
type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	Close()
}

type RateLimiter struct {
	limit           rate.Limit
	maxBurst        int
	idleTTL         time.Duration
	sourceHeaderKey string
	buckets         sync.Map // string -> *bucket
	done            chan struct{}
	closeOnce       sync.Once
}

type bucket struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	// IdleTTL is how long an unused source keeps its bucket.
	IdleTTL         time.Duration
	SourceHeaderKey string
}

func New(options Options) *RateLimiter {
	if options.IdleTTL == 0 {
		options.IdleTTL = 10 * time.Minute
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.SourceHeaderKey == "" {
		options.SourceHeaderKey = defaultSourceKey
	}

	rl := &RateLimiter{
		limit:           rate.Limit(options.MaxRatePerSecond),
		maxBurst:        options.MaxBurst,
		idleTTL:         options.IdleTTL,
		sourceHeaderKey: options.SourceHeaderKey,
		done:            make(chan struct{}),
	}
	go rl.cleanupIdle(time.Minute)
	return rl
}

func (rl *RateLimiter) getBucket(sourceKey string) *bucket {
	val, _ := rl.buckets.LoadOrStore(sourceKey, &bucket{limiter: rate.NewLimiter(rl.limit, rl.maxBurst)})
	b := val.(*bucket)

	b.mu.Lock()
	b.lastSeen = time.Now()
	b.mu.Unlock()
	return b
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	return rl.getBucket(sourceKey).limiter.Allow()
}

func (rl *RateLimiter) Remaining(sourceKey string) int {
	tokens := rl.getBucket(sourceKey).limiter.Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
		return key
	}

	// Fall back to the client address without the ephemeral port.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) cleanupIdle(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.removeIdle(time.Now())
		case <-rl.done:
			return
		}
	}
}

func (rl *RateLimiter) removeIdle(now time.Time) {
	rl.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)

		b.mu.Lock()
		idle := now.Sub(b.lastSeen) > rl.idleTTL
		b.mu.Unlock()

		if idle {
			rl.buckets.Delete(key)
		}
		return true
	})
}
