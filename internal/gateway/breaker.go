package gateway

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// circuitBreaker tracks consecutive failures for one gateway. After the
// failure threshold is hit the breaker opens and short-circuits calls for a
// cool-down window; the first call after the window runs as a half-open
// probe, and its outcome decides whether the breaker closes again.
type circuitBreaker struct {
	mu           sync.Mutex
	state        breakerState
	failures     int
	threshold    int
	coolDown     time.Duration
	openedAt     time.Time
	now          func() time.Time
}

func newCircuitBreaker(threshold int, coolDown time.Duration) *circuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if coolDown <= 0 {
		coolDown = 30 * time.Second
	}
	return &circuitBreaker{
		threshold: threshold,
		coolDown:  coolDown,
		now:       time.Now,
	}
}

// allow reports whether a call may proceed. Moving open -> half-open happens
// here, when the cool-down has elapsed.
func (b *circuitBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if b.now().Sub(b.openedAt) >= b.coolDown {
			b.state = breakerHalfOpen
			return true
		}
		return false
	}
	return false
}

func (b *circuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.state = breakerClosed
}

func (b *circuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

func (b *circuitBreaker) isOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && b.now().Sub(b.openedAt) < b.coolDown
}
