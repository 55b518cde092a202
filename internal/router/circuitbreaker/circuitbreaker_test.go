package circuitbreaker_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/wallet-checkout/internal/payment"
	"github.com/yourorg/wallet-checkout/internal/router/circuitbreaker"
)

const (
	testProvider    = payment.DeviceWallet
	anotherProvider = payment.GenericWallet
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestNewCircuitBreaker(t *testing.T) {
	t.Run("Default config", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
		require.NotNil(t, cb)
		assert.True(t, cb.AllowRequest(testProvider), "Should allow by default")
		cb.RecordFailure(testProvider)
		cb.RecordFailure(testProvider)
		assert.True(t, cb.AllowRequest(testProvider), "Should still be closed after 2 failures")
		cb.RecordFailure(testProvider)
		assert.False(t, cb.AllowRequest(testProvider), "Should be open after 3 failures with default config")
	})

	t.Run("Custom config", func(t *testing.T) {
		cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 2})
		cb.RecordFailure(testProvider)
		assert.True(t, cb.AllowRequest(testProvider), "Should still be closed after 1 failure")
		cb.RecordFailure(testProvider)
		assert.False(t, cb.AllowRequest(testProvider), "Should be open after 2 failures with custom config")
	})
}

func TestCircuitBreaker_StateTransitions(t *testing.T) {
	newBreaker := func() (*circuitbreaker.CircuitBreaker, *fakeClock) {
		clock := newFakeClock()
		return circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			FailureThreshold: 2,
			ResetTimeout:     time.Minute,
			Now:              clock.Now,
		}), clock
	}

	t.Run("Closed_To_Open", func(t *testing.T) {
		cb, _ := newBreaker()

		state, failures := cb.GetProviderStatus(testProvider)
		assert.Equal(t, circuitbreaker.StateClosed, state)
		assert.Equal(t, 0, failures)

		cb.RecordFailure(testProvider)
		state, failures = cb.GetProviderStatus(testProvider)
		assert.Equal(t, circuitbreaker.StateClosed, state)
		assert.Equal(t, 1, failures)

		cb.RecordFailure(testProvider)
		state, failures = cb.GetProviderStatus(testProvider)
		assert.Equal(t, circuitbreaker.StateOpen, state)
		assert.Equal(t, 2, failures)
		assert.False(t, cb.AllowRequest(testProvider))
	})

	t.Run("Open_To_HalfOpen", func(t *testing.T) {
		cb, clock := newBreaker()
		cb.RecordFailure(testProvider)
		cb.RecordFailure(testProvider)

		clock.Advance(59 * time.Second)
		assert.False(t, cb.AllowRequest(testProvider), "Still open before the reset timeout")

		clock.Advance(time.Second)
		assert.True(t, cb.AllowRequest(testProvider), "Trial request allowed")
		state, failures := cb.GetProviderStatus(testProvider)
		assert.Equal(t, circuitbreaker.StateHalfOpen, state)
		assert.Equal(t, 0, failures)
	})

	t.Run("HalfOpen_To_Closed_OnSuccess", func(t *testing.T) {
		cb, clock := newBreaker()
		cb.RecordFailure(testProvider)
		cb.RecordFailure(testProvider)
		clock.Advance(time.Minute)
		require.True(t, cb.AllowRequest(testProvider))

		cb.RecordSuccess(testProvider)
		state, failures := cb.GetProviderStatus(testProvider)
		assert.Equal(t, circuitbreaker.StateClosed, state)
		assert.Equal(t, 0, failures)
	})

	t.Run("HalfOpen_To_Open_OnFailure", func(t *testing.T) {
		cb, clock := newBreaker()
		cb.RecordFailure(testProvider)
		cb.RecordFailure(testProvider)
		clock.Advance(time.Minute)
		require.True(t, cb.AllowRequest(testProvider))

		cb.RecordFailure(testProvider)
		state, failures := cb.GetProviderStatus(testProvider)
		assert.Equal(t, circuitbreaker.StateOpen, state)
		assert.Equal(t, 2, failures, "Failures pinned to the threshold while open")

		clock.Advance(30 * time.Second)
		assert.False(t, cb.AllowRequest(testProvider), "A fresh timeout applies")
	})
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 3})

	cb.RecordFailure(testProvider)
	cb.RecordFailure(testProvider)
	cb.RecordSuccess(testProvider)

	state, failures := cb.GetProviderStatus(testProvider)
	assert.Equal(t, circuitbreaker.StateClosed, state)
	assert.Equal(t, 0, failures)
}

func TestCircuitBreaker_MultipleProviders(t *testing.T) {
	clock := newFakeClock()
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1, ResetTimeout: time.Second, Now: clock.Now})

	cb.RecordFailure(testProvider)
	assert.False(t, cb.AllowRequest(testProvider))
	assert.True(t, cb.AllowRequest(anotherProvider), "Providers are tracked independently")

	clock.Advance(time.Second)
	assert.True(t, cb.AllowRequest(testProvider))
	cb.RecordSuccess(testProvider)
	state, _ := cb.GetProviderStatus(testProvider)
	assert.Equal(t, circuitbreaker.StateClosed, state)
}

func TestCircuitBreaker_OpenIgnoresFurtherRecords(t *testing.T) {
	cb := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{FailureThreshold: 1})

	cb.RecordFailure(testProvider)
	cb.RecordFailure(testProvider)
	cb.RecordSuccess(testProvider)

	state, failures := cb.GetProviderStatus(testProvider)
	assert.Equal(t, circuitbreaker.StateOpen, state)
	assert.Equal(t, 1, failures)
}

func TestCircuitBreaker_State_String(t *testing.T) {
	assert.Equal(t, "Closed", circuitbreaker.StateClosed.String())
	assert.Equal(t, "Open", circuitbreaker.StateOpen.String())
	assert.Equal(t, "HalfOpen", circuitbreaker.StateHalfOpen.String())
	assert.Equal(t, "Unknown", circuitbreaker.State(99).String())
}
