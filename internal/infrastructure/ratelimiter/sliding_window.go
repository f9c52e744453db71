package ratelimiter

import (
	"sync"
	"time"

	"github.com/hilthontt/ticketchat/internal/infrastructure/clock"
)

const (
	DefaultSendLimit  = 10
	DefaultSendWindow = time.Minute
)

// SlidingWindow bounds how many events a key may produce over a trailing
// window. A timestamp t counts while now-t < window, so an event exactly
// one window after an earlier one no longer sees it.
type SlidingWindow struct {
	windows   sync.Map // string -> *keyWindow
	limit     int
	window    time.Duration
	done      chan struct{}
	closeOnce sync.Once
}

type keyWindow struct {
	mu     sync.Mutex
	stamps []time.Time
	// dead is set once cleanup has unlinked the window from the map.
	dead bool
}

type SlidingWindowOptions struct {
	Limit           int
	Window          time.Duration
	CleanupInterval time.Duration
	Clock           clock.Clock
}

func NewSlidingWindow(options SlidingWindowOptions) *SlidingWindow {
	if options.Limit <= 0 {
		options.Limit = DefaultSendLimit
	}
	if options.Window <= 0 {
		options.Window = DefaultSendWindow
	}
	if options.CleanupInterval <= 0 {
		options.CleanupInterval = options.Window
	}
	if options.Clock == nil {
		options.Clock = clock.Real()
	}

	sw := &SlidingWindow{
		limit:  options.Limit,
		window: options.Window,
		done:   make(chan struct{}),
	}
	go sw.startCleanup(options.Clock.NewTicker(options.CleanupInterval))
	return sw
}

// Allow records an event for key at now and reports whether it fits
// within the limit. Rejected events are not recorded.
func (sw *SlidingWindow) Allow(key string, now time.Time) bool {
	for {
		val, _ := sw.windows.LoadOrStore(key, &keyWindow{})
		w := val.(*keyWindow)

		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}

		w.prune(now, sw.window)
		if len(w.stamps) >= sw.limit {
			w.mu.Unlock()
			return false
		}
		w.stamps = append(w.stamps, now)
		w.mu.Unlock()
		return true
	}
}

func (sw *SlidingWindow) Remaining(key string, now time.Time) int {
	val, ok := sw.windows.Load(key)
	if !ok {
		return sw.limit
	}
	w := val.(*keyWindow)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune(now, sw.window)
	return max(sw.limit-len(w.stamps), 0)
}

func (sw *SlidingWindow) Limit() int {
	return sw.limit
}

// Cleanup unlinks keys whose timestamps have all left the window.
func (sw *SlidingWindow) Cleanup(now time.Time) {
	sw.windows.Range(func(key, value any) bool {
		w := value.(*keyWindow)

		w.mu.Lock()
		w.prune(now, sw.window)
		if len(w.stamps) == 0 {
			w.dead = true
			sw.windows.Delete(key)
		}
		w.mu.Unlock()
		return true
	})
}

func (sw *SlidingWindow) Close() {
	sw.closeOnce.Do(func() {
		close(sw.done)
	})
}

func (sw *SlidingWindow) startCleanup(ticker clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C():
			sw.Cleanup(now)
		case <-sw.done:
			return
		}
	}
}

func (w *keyWindow) prune(now time.Time, window time.Duration) {
	drop := 0
	for drop < len(w.stamps) && now.Sub(w.stamps[drop]) >= window {
		drop++
	}
	if drop > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[drop:]...)
	}
}
