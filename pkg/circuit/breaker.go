package circuit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	// StateClosed - circuit is closed, requests pass through
	StateClosed State = iota
	// StateOpen - circuit is open, requests fail fast
	StateOpen
	// StateHalfOpen - circuit is probing whether the dependency recovered
	StateHalfOpen
)

// String returns string representation of state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// MarshalText lets State render as its name in JSON stats
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	mu sync.Mutex

	maxFailures      int
	openTimeout      time.Duration
	successThreshold int
	isFailure        func(error) bool
	now              func() time.Time

	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time

	totalRequests   int64
	totalSuccesses  int64
	totalFailures   int64
	totalRejections int64

	onStateChange func(from, to State)
}

// Config holds circuit breaker configuration
type Config struct {
	// MaxFailures is the number of consecutive failures before opening
	MaxFailures int

	// Timeout is how long the circuit stays open before a probe is allowed
	Timeout time.Duration

	// SuccessThreshold is the number of half-open successes needed to close
	SuccessThreshold int

	// IsFailure decides which errors count against the circuit.
	// Nil means every non-nil error does.
	IsFailure func(error) bool

	// OnStateChange is called asynchronously when state changes
	OnStateChange func(from, to State)

	// Now overrides the clock, for tests
	Now func() time.Time
}

// DefaultConfig returns default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          10 * time.Second,
		SuccessThreshold: 2,
	}
}

// New creates a new circuit breaker
func New(config Config) *Breaker {
	defaults := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = defaults.SuccessThreshold
	}
	if config.IsFailure == nil {
		config.IsFailure = func(err error) bool { return err != nil }
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &Breaker{
		maxFailures:      config.MaxFailures,
		openTimeout:      config.Timeout,
		successThreshold: config.SuccessThreshold,
		isFailure:        config.IsFailure,
		now:              config.Now,
		state:            StateClosed,
		lastStateChange:  config.Now(),
		onStateChange:    config.OnStateChange,
	}
}

// Call executes fn with circuit breaker protection. A canceled ctx is
// returned without calling fn and without touching the counters.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn(ctx)
	b.afterCall(err)
	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalRequests++

	switch b.state {
	case StateClosed, StateHalfOpen:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastStateChange) >= b.openTimeout {
			b.setState(StateHalfOpen)
			return nil
		}

		b.totalRejections++
		return &CircuitOpenError{
			State:           b.state,
			Failures:        b.failures,
			LastFailureTime: b.lastFailureTime,
		}

	default:
		return fmt.Errorf("unknown circuit breaker state: %d", b.state)
	}
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isFailure(err) {
		b.onFailure()
	} else {
		b.onSuccess()
	}
}

func (b *Breaker) onSuccess() {
	b.totalSuccesses++
	b.failures = 0

	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.successThreshold {
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) onFailure() {
	b.totalFailures++
	b.failures++
	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.maxFailures {
			b.setState(StateOpen)
		}

	case StateHalfOpen:
		// a single failed probe reopens
		b.setState(StateOpen)
	}
}

// setState must be called with b.mu held
func (b *Breaker) setState(newState State) {
	oldState := b.state
	if oldState == newState {
		return
	}

	b.state = newState
	b.successes = 0
	b.lastStateChange = b.now()

	if b.onStateChange != nil {
		go b.onStateChange(oldState, newState)
	}
}

// GetState returns the current state
func (b *Breaker) GetState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset resets the circuit breaker to closed state
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.setState(StateClosed)
	b.failures = 0
	b.successes = 0
}

// GetStats returns circuit breaker statistics
func (b *Breaker) GetStats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:           b.state,
		Failures:        b.failures,
		Successes:       b.successes,
		TotalRequests:   b.totalRequests,
		TotalSuccesses:  b.totalSuccesses,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	State           State     `json:"state"`
	Failures        int       `json:"failures"`
	Successes       int       `json:"successes"`
	TotalRequests   int64     `json:"total_requests"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalFailures   int64     `json:"total_failures"`
	TotalRejections int64     `json:"total_rejections"`
	LastFailureTime time.Time `json:"last_failure_time"`
	LastStateChange time.Time `json:"last_state_change"`
}

// CircuitOpenError is returned when the circuit is open
type CircuitOpenError struct {
	State           State
	Failures        int
	LastFailureTime time.Time
}

// Error implements the error interface
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker is %s (failures: %d, last failure: %s)",
		e.State.String(), e.Failures, e.LastFailureTime.Format(time.RFC3339))
}

// IsCircuitOpen checks if err is, or wraps, a circuit open error
func IsCircuitOpen(err error) bool {
	var target *CircuitOpenError
	return errors.As(err, &target)
}
