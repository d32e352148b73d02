// Package operator provides a Unix domain socket control plane for a
// running thermite engine, grounded on the teacher's
// internal/operator/server.go, with rate limiting adapted from
// internal/budget/token_bucket.go.
package operator

import (
	"sync"
	"sync/atomic"
	"time"
)

// TokenBucket is a thread-safe token bucket rate limiter, guarding the
// switch command so an operator script cannot thrash the payload
// compile/buffer-init path faster than it can settle.
type TokenBucket struct {
	mu           sync.Mutex
	capacity     int
	tokens       int
	refillPeriod time.Duration

	consumedTotal atomic.Uint64
	refillCount   atomic.Uint64

	stop chan struct{}
}

// NewTokenBucket creates a TokenBucket with the given capacity and starts
// its refill goroutine. capacity and refillPeriod must be > 0. Call
// Close to stop the refill goroutine.
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	if capacity <= 0 {
		panic("operator.TokenBucket: capacity must be > 0")
	}
	if refillPeriod <= 0 {
		panic("operator.TokenBucket: refillPeriod must be > 0")
	}
	b := &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		stop:         make(chan struct{}),
	}
	go b.refillLoop()
	return b
}

func (b *TokenBucket) refillLoop() {
	ticker := time.NewTicker(b.refillPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.mu.Lock()
			b.tokens = b.capacity
			b.mu.Unlock()
			b.refillCount.Add(1)
		case <-b.stop:
			return
		}
	}
}

// Allow consumes one token if available. Returns false if the bucket is
// empty and the caller should reject the request.
func (b *TokenBucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens > 0 {
		b.tokens--
		b.consumedTotal.Add(1)
		return true
	}
	return false
}

// Remaining returns the current token count.
func (b *TokenBucket) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokens
}

// Close stops the refill goroutine. Safe to call once.
func (b *TokenBucket) Close() {
	close(b.stop)
}
