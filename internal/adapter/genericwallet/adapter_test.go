package genericwallet

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/walletclient"
	"github.com/yourorg/wallet-checkout/internal/adapter/walletclient/walletclienttest"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

var testMerchant = Merchant{
	Name:              "Sample Merchant",
	CountryCode:       "US",
	Gateway:           "example",
	GatewayMerchantID: "exampleGatewayMerchantId",
}

func newTestAdapter(t *testing.T, gw *walletclienttest.Gateway) *Adapter {
	t.Helper()
	a, err := NewAdapter(Config{
		Client:   walletclient.Config{BaseURL: gw.URL(), APIKey: "pk_test", PollInterval: 5 * time.Millisecond, MaxPollErrors: 2},
		Merchant: testMerchant,
	})
	require.NoError(t, err)
	return a
}

type recorder struct {
	mu     sync.Mutex
	events []adapter.RawEvent
}

func (r *recorder) add(ev adapter.RawEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []adapter.RawEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]adapter.RawEvent, len(r.events))
	copy(out, r.events)
	return out
}

func TestNewAdapter_RequiresGateway(t *testing.T) {
	_, err := NewAdapter(Config{Client: walletclient.Config{BaseURL: "http://localhost"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gateway")
}

func TestBuildPaymentDataRequest(t *testing.T) {
	d, err := payment.NewDescriptor(payment.GenericWallet, 120, "USD", "AMZ007MAR")
	require.NoError(t, err)

	req, err := BuildPaymentDataRequest(testMerchant, d)
	require.NoError(t, err)

	assert.Equal(t, 2, req.APIVersion)
	assert.Equal(t, 0, req.APIVersionMinor)
	require.Len(t, req.AllowedPaymentMethods, 1)
	method := req.AllowedPaymentMethods[0]
	assert.Equal(t, "CARD", method.Type)
	assert.Equal(t, defaultAuthMethods, method.Parameters.AllowedAuthMethods)
	assert.Equal(t, defaultCardNetworks, method.Parameters.AllowedCardNetworks)
	assert.Equal(t, "PAYMENT_GATEWAY", method.TokenizationSpecification.Type)
	assert.Equal(t, "example", method.TokenizationSpecification.Parameters["gateway"])
	assert.Equal(t, "1.20", req.TransactionInfo.TotalPrice)
	assert.Equal(t, "FINAL", req.TransactionInfo.TotalPriceStatus)
	assert.Equal(t, "USD", req.TransactionInfo.CurrencyCode)
	assert.Equal(t, "US", req.TransactionInfo.CountryCode)
	assert.Equal(t, "AMZ007MAR", req.TransactionInfo.TransactionID)
	assert.Equal(t, "Sample Merchant", req.MerchantInfo.MerchantName)

	_, err = BuildPaymentDataRequest(testMerchant, payment.Descriptor{})
	assert.Error(t, err)
}

func TestAdapter_RequestPayment_StatusEvent(t *testing.T) {
	gw := walletclienttest.NewGateway()
	defer gw.Close()
	gw.OnStart = func(g *walletclienttest.Gateway, requestID string) {
		_ = g.Push(requestID, walletclient.Event{Type: walletclient.EventTypeStatus, StatusCode: StatusSuccess, Token: "tok_abc"})
	}
	a := newTestAdapter(t, gw)

	d, err := payment.NewDescriptor(payment.GenericWallet, 120, "USD", "order-1")
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, a.RequestPayment(context.Background(), d, rec.add))

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	ev := rec.snapshot()[0]
	assert.Equal(t, adapter.EventStatus, ev.Kind)
	assert.Equal(t, StatusSuccess, ev.StatusCode)
	assert.Equal(t, "tok_abc", ev.Token)

	raw, ok := gw.Payload(d.RequestID())
	require.True(t, ok)
	var sent PaymentDataRequest
	require.NoError(t, json.Unmarshal(raw, &sent))
	assert.Equal(t, "1.20", sent.TransactionInfo.TotalPrice)
}

func TestAdapter_RequestPayment_StartFailure(t *testing.T) {
	gw := walletclienttest.NewGateway()
	defer gw.Close()
	gw.StartStatus = http.StatusBadGateway
	a := newTestAdapter(t, gw)

	d, err := payment.NewDescriptor(payment.GenericWallet, 120, "USD", "order-1")
	require.NoError(t, err)

	err = a.RequestPayment(context.Background(), d, func(adapter.RawEvent) {
		t.Fatal("callback must not run when the request never started")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestAdapter_RequestPayment_LostSession(t *testing.T) {
	gw := walletclienttest.NewGateway()
	defer gw.Close()
	gw.FailPolls = 10
	a := newTestAdapter(t, gw)

	d, err := payment.NewDescriptor(payment.GenericWallet, 120, "USD", "order-1")
	require.NoError(t, err)

	rec := &recorder{}
	require.NoError(t, a.RequestPayment(context.Background(), d, rec.add))
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, adapter.EventTransportError, rec.snapshot()[0].Kind)
}

func TestAdapter_ProbeReadiness(t *testing.T) {
	gw := walletclienttest.NewGateway()
	defer gw.Close()
	gw.Readiness = walletclient.ReadinessResponse{StatusCode: ReadinessReady}
	a := newTestAdapter(t, gw)

	got := make(chan adapter.RawReadiness, 1)
	require.NoError(t, a.ProbeReadiness(context.Background(), func(r adapter.RawReadiness) { got <- r }))

	select {
	case r := <-got:
		require.NoError(t, r.Err)
		assert.Equal(t, ReadinessReady, r.Code)
	case <-time.After(time.Second):
		t.Fatal("readiness callback not called")
	}
}

func TestAdapter_UpdateSheetUnsupported(t *testing.T) {
	gw := walletclienttest.NewGateway()
	defer gw.Close()
	a := newTestAdapter(t, gw)
	err := a.UpdateSheet(context.Background(), "r1", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, adapter.ErrSheetUnsupported)
}

func TestToRawEvent_UnexpectedType(t *testing.T) {
	ev := toRawEvent(walletclient.Event{Type: walletclient.EventTypeCardInfoUpdated})
	assert.Equal(t, adapter.EventTransportError, ev.Kind)
	assert.Contains(t, ev.Message, "unexpected event type")
}
