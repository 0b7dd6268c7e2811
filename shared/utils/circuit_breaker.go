package utils

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the breaker is refusing calls
var ErrCircuitOpen = errors.New("circuit breaker is open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker fails fast against a dependency that keeps erroring. After
// maxFailures consecutive failures it rejects calls with ErrCircuitOpen
// until resetTimeout has passed, then lets a single probe call through; a
// successful probe closes the breaker again.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
	probing     bool
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// Call executes fn unless the breaker is open. The fn error is returned
// as-is so callers keep their own error taxonomy.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()
	cb.record(err == nil)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateOpen:
		if time.Since(cb.lastFailure) <= cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.state = stateHalfOpen
		cb.probing = false
		fallthrough
	case stateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if ok {
		cb.state = stateClosed
		cb.failures = 0
		cb.probing = false
		return
	}

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.state == stateHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = stateOpen
	}
}
