package http

import (
	"sync"
	"sync/atomic"
	"time"
)

// Write endpoints get a per-IP budget; reads bypass the limiter entirely
// since they are cached.
const (
	writeBudget = 30
	writeWindow = time.Minute
)

// rateLimiter tracks write requests per client IP over a fixed window.
type rateLimiter struct {
	mu           sync.Mutex
	windows      map[string]*ipWindow
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type ipWindow struct {
	openedAt time.Time
	count    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		windows:     make(map[string]*ipWindow),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropIdleWindows()
		case <-rl.stopCleanup:
			return
		}
	}
}

// dropIdleWindows forgets IPs whose window closed long ago so the map does
// not grow unbounded.
func (rl *rateLimiter) dropIdleWindows() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * writeWindow)
	for ip, w := range rl.windows {
		if w.openedAt.Before(cutoff) {
			delete(rl.windows, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow reports whether the IP still has write budget in its current window.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[clientIP]
	if !ok || now.Sub(w.openedAt) > writeWindow {
		rl.windows[clientIP] = &ipWindow{openedAt: now, count: 1}
		return true
	}

	w.count++
	if w.count > writeBudget {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}
