package platform

import (
	"sync"
	"sync/atomic"
	"time"
)

// BreakerState is the state of the platform circuit breaker
type BreakerState int32

const (
	// BreakerClosed lets calls through
	BreakerClosed BreakerState = 0

	// BreakerOpen rejects calls without contacting the platform
	BreakerOpen BreakerState = 1

	// BreakerHalfOpen lets trial calls through after the cool-down
	BreakerHalfOpen BreakerState = 2
)

const (
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30 * time.Second
	halfOpenProbeSuccesses  = 2
)

// Breaker stops calls to an unreachable platform after a run of transport failures.
// Only failures where the platform could not answer (network errors, 5xx) count; 4xx
// responses are the caller's problem and leave the breaker alone.
type Breaker struct {
	state       atomic.Int32
	failures    atomic.Int64
	successes   atomic.Int64
	lastFailure atomic.Int64 // unix nanos
	threshold   int64
	cooldown    time.Duration
	mu          sync.Mutex
}

// NewBreaker creates a breaker that opens after threshold consecutive failures and
// probes again after cooldown.
func NewBreaker(threshold int64, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = defaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = defaultBreakerCooldown
	}
	return &Breaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed. An open breaker whose cool-down elapsed
// moves to half-open and allows the call.
func (b *Breaker) Allow() bool {
	if BreakerState(b.state.Load()) != BreakerOpen {
		return true
	}
	last := b.lastFailure.Load()
	if last > 0 && time.Since(time.Unix(0, last)) > b.cooldown {
		b.transition(BreakerHalfOpen)
		return true
	}
	return false
}

// Success records a call the platform answered.
func (b *Breaker) Success() {
	b.failures.Store(0)
	if BreakerState(b.state.Load()) != BreakerHalfOpen {
		return
	}
	if b.successes.Add(1) >= halfOpenProbeSuccesses {
		b.transition(BreakerClosed)
	}
}

// Failure records a call the platform could not answer.
func (b *Breaker) Failure() {
	b.successes.Store(0)
	b.lastFailure.Store(time.Now().UnixNano())
	failures := b.failures.Add(1)

	switch BreakerState(b.state.Load()) {
	case BreakerClosed:
		if failures >= b.threshold {
			b.transition(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.transition(BreakerOpen)
	}
}

// State returns the current state.
func (b *Breaker) State() BreakerState {
	return BreakerState(b.state.Load())
}

// Reset closes the breaker and clears its counters.
func (b *Breaker) Reset() {
	b.transition(BreakerClosed)
	b.lastFailure.Store(0)
}

func (b *Breaker) transition(to BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if BreakerState(b.state.Load()) == to {
		return
	}
	b.state.Store(int32(to))

	switch to {
	case BreakerClosed:
		b.failures.Store(0)
		b.successes.Store(0)
	case BreakerHalfOpen:
		b.successes.Store(0)
	}
}

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	}
	return "unknown"
}
