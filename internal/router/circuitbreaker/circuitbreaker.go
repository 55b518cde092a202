package circuitbreaker

import (
	"sync"
	"time"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// State represents the state of one provider's circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpen:
		return "Open"
	case StateHalfOpen:
		return "HalfOpen"
	default:
		return "Unknown"
	}
}

const (
	defaultFailureThreshold = 3
	defaultResetTimeout     = 30 * time.Second
)

// Config configures a CircuitBreaker. Zero values take the defaults.
type Config struct {
	// FailureThreshold is the number of consecutive gateway failures that
	// opens the circuit.
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a trial
	// request is let through.
	ResetTimeout time.Duration
	// Now is the clock; tests replace it.
	Now func() time.Time
}

type providerState struct {
	state               State
	consecutiveFailures int
	openUntil           time.Time
}

// CircuitBreaker tracks gateway health per wallet provider and stops new
// payment sessions from being opened against a gateway that keeps failing.
type CircuitBreaker struct {
	mu        sync.Mutex
	providers map[payment.Provider]*providerState
	cfg       Config
}

func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaultResetTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &CircuitBreaker{
		providers: make(map[payment.Provider]*providerState),
		cfg:       cfg,
	}
}

// stateFor must be called with cb.mu held.
func (cb *CircuitBreaker) stateFor(p payment.Provider) *providerState {
	ps, ok := cb.providers[p]
	if !ok {
		ps = &providerState{state: StateClosed}
		cb.providers[p] = ps
	}
	return ps
}

// AllowRequest reports whether a new session may be opened for p. An open
// circuit whose timeout has passed moves to half-open and lets one through.
func (cb *CircuitBreaker) AllowRequest(p payment.Provider) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	ps := cb.stateFor(p)
	switch ps.state {
	case StateOpen:
		if cb.cfg.Now().Before(ps.openUntil) {
			return false
		}
		ps.state = StateHalfOpen
		ps.consecutiveFailures = 0
		return true
	default:
		return true
	}
}

// RecordFailure records a gateway failure for p.
func (cb *CircuitBreaker) RecordFailure(p payment.Provider) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	ps := cb.stateFor(p)
	switch ps.state {
	case StateClosed:
		ps.consecutiveFailures++
		if ps.consecutiveFailures >= cb.cfg.FailureThreshold {
			cb.open(ps)
		}
	case StateHalfOpen:
		cb.open(ps)
	case StateOpen:
		// already open; the timeout is not extended
	}
}

func (cb *CircuitBreaker) open(ps *providerState) {
	ps.state = StateOpen
	ps.consecutiveFailures = cb.cfg.FailureThreshold
	ps.openUntil = cb.cfg.Now().Add(cb.cfg.ResetTimeout)
}

// RecordSuccess records a healthy gateway exchange for p. It closes a
// half-open circuit.
func (cb *CircuitBreaker) RecordSuccess(p payment.Provider) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	ps := cb.stateFor(p)
	switch ps.state {
	case StateClosed, StateHalfOpen:
		ps.state = StateClosed
		ps.consecutiveFailures = 0
	case StateOpen:
		// only a trial request may close the circuit
	}
}

// GetProviderStatus returns p's state and consecutive failure count without
// moving it between states.
func (cb *CircuitBreaker) GetProviderStatus(p payment.Provider) (State, int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	ps, ok := cb.providers[p]
	if !ok {
		return StateClosed, 0
	}
	return ps.state, ps.consecutiveFailures
}
