package safety

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter used to keep REST request weight
// under exchange quotas, most importantly during history preload.
type RateLimiter struct {
	name       string
	capacity   int
	tokens     int
	refillRate int // tokens added per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a rate limiter that starts with a full bucket.
func NewRateLimiter(name string, capacity, refillRate int) *RateLimiter {
	return &RateLimiter{
		name:       name,
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow consumes one token if available.
func (rl *RateLimiter) Allow() bool {
	return rl.AllowN(1)
}

// AllowN consumes n tokens if available.
func (rl *RateLimiter) AllowN(n int) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refill()
	if rl.tokens >= n {
		rl.tokens -= n
		return true
	}
	return false
}

// Wait blocks until one token is available or the context is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	return rl.WaitN(ctx, 1)
}

// WaitN blocks until n tokens are available or the context is done.
func (rl *RateLimiter) WaitN(ctx context.Context, n int) error {
	for {
		if rl.AllowN(n) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.waitFor(n)):
		}
	}
}

func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill)
	if elapsed < time.Second {
		return
	}

	added := int(elapsed.Seconds()) * rl.refillRate
	if added > 0 {
		rl.tokens += added
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}
}

func (rl *RateLimiter) waitFor(n int) time.Duration {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	rl.refill()
	if rl.tokens >= n {
		return 0
	}

	missing := n - rl.tokens
	seconds := float64(missing) / float64(rl.refillRate)
	// Small buffer for timer precision.
	return time.Duration(seconds*1000+100) * time.Millisecond
}

// Manager holds named rate limiters shared across components.
type Manager struct {
	limiters map[string]*RateLimiter
	mutex    sync.RWMutex
}

// NewManager creates an empty rate limiter manager.
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*RateLimiter)}
}

// GetOrCreate returns the limiter registered under name, creating it with
// the given parameters on first use.
func (m *Manager) GetOrCreate(name string, capacity, refillRate int) *RateLimiter {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if rl, ok := m.limiters[name]; ok {
		return rl
	}
	rl := NewRateLimiter(name, capacity, refillRate)
	m.limiters[name] = rl
	return rl
}

// Get returns the limiter registered under name, if any.
func (m *Manager) Get(name string) (*RateLimiter, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	rl, ok := m.limiters[name]
	return rl, ok
}
