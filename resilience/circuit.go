package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonwraymond/cmdbus/bus"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is operating normally.
	StateClosed State = iota
	// StateOpen means the circuit is blocking all requests.
	StateOpen
	// StateHalfOpen means the circuit is testing if the dependency recovered.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the breaker in errors and hooks.
	// Default: "default"
	Name string

	// FailureThreshold is the number of consecutive failures that opens the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before a trial call.
	// Default: 30s
	ResetTimeout time.Duration

	// HalfOpenMaxCalls is the number of trial calls admitted while half-open.
	// Default: 1
	HalfOpenMaxCalls int

	// OnStateChange is called after every transition, outside the breaker lock.
	OnStateChange func(name string, from, to State)

	// IsFailure decides whether an error counts against the breaker.
	// Default: DefaultIsFailure
	IsFailure func(err error) bool

	// Clock supplies the current time.
	// Default: time.Now
	Clock Clock
}

// DefaultCircuitBreakerConfig returns the documented breaker defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// DefaultIsFailure counts every error except business outcomes and caller
// cancellation.
func DefaultIsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	kind := bus.KindOf(err)
	return !kind.Business() && kind != bus.KindCanceled
}

// CircuitBreaker guards one dependency.
//
// Contract:
// - Concurrency: safe for concurrent use; the lock is never held while the
//   protected call runs.
// - Errors: rejected calls get *CircuitBreakerOpenError.
type CircuitBreaker struct {
	config CircuitBreakerConfig

	mu             sync.Mutex
	state          State
	failures       int
	lastFailure    time.Time
	halfOpenTrials int
	successes      int64
	rejections     int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if config.Name == "" {
		config.Name = def.Name
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = def.ResetTimeout
	}
	if config.HalfOpenMaxCalls <= 0 {
		config.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	if config.IsFailure == nil {
		config.IsFailure = DefaultIsFailure
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
	}
}

// Name returns the breaker name.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

// CanExecute admits or rejects a call. An admitted call must be followed by
// exactly one RecordSuccess or RecordFailure.
func (cb *CircuitBreaker) CanExecute() error {
	cb.mu.Lock()
	var changes []transition

	state := cb.currentStateLocked(&changes)
	var err error
	switch state {
	case StateOpen:
		retryAfter := cb.config.ResetTimeout - cb.config.Clock().Sub(cb.lastFailure)
		if retryAfter < 0 {
			retryAfter = 0
		}
		cb.rejections++
		err = &CircuitBreakerOpenError{Name: cb.config.Name, RetryAfter: retryAfter}
	case StateHalfOpen:
		if cb.halfOpenTrials >= cb.config.HalfOpenMaxCalls {
			cb.rejections++
			err = &CircuitBreakerOpenError{Name: cb.config.Name}
		} else {
			cb.halfOpenTrials++
		}
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return err
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	var changes []transition

	cb.successes++
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.failures = 0
		cb.halfOpenTrials = 0
		cb.setStateLocked(StateClosed, &changes)
	}
	cb.mu.Unlock()

	cb.notify(changes)
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	var changes []transition

	now := cb.config.Clock()
	switch cb.state {
	case StateClosed:
		cb.failures++
		cb.lastFailure = now
		if cb.failures >= cb.config.FailureThreshold {
			cb.setStateLocked(StateOpen, &changes)
		}
	case StateHalfOpen:
		cb.lastFailure = now
		cb.halfOpenTrials = 0
		cb.setStateLocked(StateOpen, &changes)
	}
	cb.mu.Unlock()

	cb.notify(changes)
}

// Record classifies err with IsFailure and records the outcome. An error
// that is not a failure, such as a business error or a cancellation, only
// gives back its half-open trial slot.
func (cb *CircuitBreaker) Record(err error) {
	switch {
	case err == nil:
		cb.RecordSuccess()
	case cb.config.IsFailure(err):
		cb.RecordFailure()
	default:
		cb.releaseTrial()
	}
}

func (cb *CircuitBreaker) releaseTrial() {
	cb.mu.Lock()
	if cb.state == StateHalfOpen && cb.halfOpenTrials > 0 {
		cb.halfOpenTrials--
	}
	cb.mu.Unlock()
}

// Execute runs op through the breaker.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) (any, error)) (any, error) {
	if err := cb.CanExecute(); err != nil {
		return nil, err
	}

	v, err := op(ctx)
	cb.Record(err)
	return v, err
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	var changes []transition
	state := cb.currentStateLocked(&changes)
	cb.mu.Unlock()

	cb.notify(changes)
	return state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	var changes []transition
	cb.failures = 0
	cb.halfOpenTrials = 0
	cb.lastFailure = time.Time{}
	cb.setStateLocked(StateClosed, &changes)
	cb.mu.Unlock()

	cb.notify(changes)
}

// Snapshot returns a point-in-time copy of the breaker's state.
func (cb *CircuitBreaker) Snapshot() CircuitBreakerSnapshot {
	cb.mu.Lock()
	var changes []transition
	snap := CircuitBreakerSnapshot{
		Name:           cb.config.Name,
		State:          cb.currentStateLocked(&changes),
		Failures:       cb.failures,
		HalfOpenTrials: cb.halfOpenTrials,
		LastFailure:    cb.lastFailure,
		Successes:      cb.successes,
		Rejections:     cb.rejections,
	}
	cb.mu.Unlock()

	cb.notify(changes)
	return snap
}

// Config returns the normalized breaker configuration.
func (cb *CircuitBreaker) Config() CircuitBreakerConfig {
	return cb.config
}

type transition struct {
	from, to State
}

// currentStateLocked applies the time-based Open to HalfOpen edge.
func (cb *CircuitBreaker) currentStateLocked(changes *[]transition) State {
	if cb.state == StateOpen && cb.config.Clock().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
		cb.halfOpenTrials = 0
		cb.setStateLocked(StateHalfOpen, changes)
	}
	return cb.state
}

func (cb *CircuitBreaker) setStateLocked(state State, changes *[]transition) {
	if cb.state == state {
		return
	}
	*changes = append(*changes, transition{from: cb.state, to: state})
	cb.state = state
}

func (cb *CircuitBreaker) notify(changes []transition) {
	if cb.config.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		cb.config.OnStateChange(cb.config.Name, c.from, c.to)
	}
}

// CircuitBreakerSnapshot contains circuit breaker statistics.
type CircuitBreakerSnapshot struct {
	Name           string
	State          State
	Failures       int
	HalfOpenTrials int
	LastFailure    time.Time
	Successes      int64
	Rejections     int64
}
