package router

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/payment"
	"github.com/yourorg/wallet-checkout/internal/router/circuitbreaker"
)

var (
	// ErrNoAdapter is returned for a provider without a registered adapter.
	ErrNoAdapter = errors.New("router: no adapter registered for provider")
	// ErrCircuitOpen is returned while a provider's gateway is failing.
	ErrCircuitOpen = errors.New("router: circuit open for provider")
)

// Router picks the adapter for a provider and gates it with the circuit
// breaker. There is no fallback between wallets: the user chose one.
type Router struct {
	adapters       map[payment.Provider]adapter.WalletProviderAdapter
	circuitBreaker *circuitbreaker.CircuitBreaker
}

func NewRouter(cb *circuitbreaker.CircuitBreaker, adapters ...adapter.WalletProviderAdapter) (*Router, error) {
	if cb == nil {
		return nil, errors.New("router: circuit breaker cannot be nil")
	}
	r := &Router{
		adapters:       make(map[payment.Provider]adapter.WalletProviderAdapter, len(adapters)),
		circuitBreaker: cb,
	}
	for _, a := range adapters {
		p := a.Provider()
		if !p.Valid() {
			return nil, fmt.Errorf("router: adapter for invalid provider %s", p)
		}
		if _, dup := r.adapters[p]; dup {
			return nil, fmt.Errorf("router: duplicate adapter for provider %s", p)
		}
		r.adapters[p] = a
	}
	return r, nil
}

// Adapter returns the adapter registered for p, ignoring the breaker.
func (r *Router) Adapter(p payment.Provider) (adapter.WalletProviderAdapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoAdapter, p)
	}
	return a, nil
}

// Route returns the adapter to open a new payment session with.
func (r *Router) Route(p payment.Provider) (adapter.WalletProviderAdapter, error) {
	a, err := r.Adapter(p)
	if err != nil {
		return nil, err
	}
	if !r.circuitBreaker.AllowRequest(p) {
		return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, p)
	}
	return a, nil
}

// Activator returns p's adapter if it supports setup and update flows.
func (r *Router) Activator(p payment.Provider) (adapter.Activator, bool) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, false
	}
	act, ok := a.(adapter.Activator)
	return act, ok
}

func (r *Router) RecordSuccess(p payment.Provider) { r.circuitBreaker.RecordSuccess(p) }

func (r *Router) RecordFailure(p payment.Provider) { r.circuitBreaker.RecordFailure(p) }

// CircuitState reports the breaker state for p.
func (r *Router) CircuitState(p payment.Provider) circuitbreaker.State {
	state, _ := r.circuitBreaker.GetProviderStatus(p)
	return state
}

// Providers lists the providers with a registered adapter.
func (r *Router) Providers() []payment.Provider {
	out := make([]payment.Provider, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
