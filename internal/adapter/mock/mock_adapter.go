package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

// SheetUpdate records one UpdateSheet call.
type SheetUpdate struct {
	RequestID string
	Sheet     json.RawMessage
}

// MockAdapter is a scriptable WalletProviderAdapter for tests and local runs.
// Each Func field overrides the default behavior of the matching method.
type MockAdapter struct {
	ProviderID payment.Provider

	RequestPaymentFunc func(ctx context.Context, d payment.Descriptor, cb adapter.ResultCallback) error
	ProbeReadinessFunc func(ctx context.Context, cb adapter.ReadinessCallback) error
	UpdateSheetFunc    func(ctx context.Context, requestID string, sheet json.RawMessage) error
	ActivateFunc       func(ctx context.Context) error
	OpenUpdatePageFunc func(ctx context.Context) error

	mu           sync.Mutex
	requests     []payment.Descriptor
	callbacks    map[string]adapter.ResultCallback
	sheetUpdates []SheetUpdate
	activations  int
	updatePages  int
}

// NewMockAdapter creates a MockAdapter for provider.
func NewMockAdapter(provider payment.Provider) *MockAdapter {
	return &MockAdapter{
		ProviderID: provider,
		callbacks:  make(map[string]adapter.ResultCallback),
	}
}

// Provider implements adapter.WalletProviderAdapter.
func (m *MockAdapter) Provider() payment.Provider {
	return m.ProviderID
}

// RequestPayment records the descriptor and callback. Unless
// RequestPaymentFunc is set, no event is delivered until Emit is called.
func (m *MockAdapter) RequestPayment(ctx context.Context, d payment.Descriptor, cb adapter.ResultCallback) error {
	m.mu.Lock()
	m.requests = append(m.requests, d)
	m.callbacks[d.RequestID()] = cb
	m.mu.Unlock()

	if m.RequestPaymentFunc != nil {
		return m.RequestPaymentFunc(ctx, d, cb)
	}
	return nil
}

// ProbeReadiness calls ProbeReadinessFunc if defined; by default the probe is
// accepted and never answered.
func (m *MockAdapter) ProbeReadiness(ctx context.Context, cb adapter.ReadinessCallback) error {
	if m.ProbeReadinessFunc != nil {
		return m.ProbeReadinessFunc(ctx, cb)
	}
	return nil
}

// UpdateSheet records the acknowledgment.
func (m *MockAdapter) UpdateSheet(ctx context.Context, requestID string, sheet json.RawMessage) error {
	m.mu.Lock()
	m.sheetUpdates = append(m.sheetUpdates, SheetUpdate{RequestID: requestID, Sheet: sheet})
	m.mu.Unlock()

	if m.UpdateSheetFunc != nil {
		return m.UpdateSheetFunc(ctx, requestID, sheet)
	}
	return nil
}

// Activate implements adapter.Activator.
func (m *MockAdapter) Activate(ctx context.Context) error {
	m.mu.Lock()
	m.activations++
	m.mu.Unlock()
	if m.ActivateFunc != nil {
		return m.ActivateFunc(ctx)
	}
	return nil
}

// OpenUpdatePage implements adapter.Activator.
func (m *MockAdapter) OpenUpdatePage(ctx context.Context) error {
	m.mu.Lock()
	m.updatePages++
	m.mu.Unlock()
	if m.OpenUpdatePageFunc != nil {
		return m.OpenUpdatePageFunc(ctx)
	}
	return nil
}

// Emit delivers ev to the callback registered for requestID, synchronously.
func (m *MockAdapter) Emit(requestID string, ev adapter.RawEvent) error {
	m.mu.Lock()
	cb, ok := m.callbacks[requestID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("mock: no callback registered for request %s", requestID)
	}
	cb(ev)
	return nil
}

// Requests returns the descriptors received so far.
func (m *MockAdapter) Requests() []payment.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]payment.Descriptor, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent descriptor.
func (m *MockAdapter) LastRequest() (payment.Descriptor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return payment.Descriptor{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// SheetUpdates returns the acknowledgments received so far.
func (m *MockAdapter) SheetUpdates() []SheetUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SheetUpdate, len(m.sheetUpdates))
	copy(out, m.sheetUpdates)
	return out
}

// Activations returns how many times Activate was called.
func (m *MockAdapter) Activations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activations
}

// UpdatePages returns how many times OpenUpdatePage was called.
func (m *MockAdapter) UpdatePages() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updatePages
}

var (
	_ adapter.WalletProviderAdapter = (*MockAdapter)(nil)
	_ adapter.Activator             = (*MockAdapter)(nil)
)
