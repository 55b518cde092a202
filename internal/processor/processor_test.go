package processor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/devicewallet"
	"github.com/yourorg/wallet-checkout/internal/adapter/genericwallet"
	"github.com/yourorg/wallet-checkout/internal/payment"
	"github.com/yourorg/wallet-checkout/internal/processor"
)

func newProcessor(t *testing.T) *processor.Processor {
	t.Helper()
	p, err := processor.NewProcessor(processor.DefaultTables()...)
	require.NoError(t, err)
	return p
}

func TestNewProcessor(t *testing.T) {
	t.Run("Default tables are complete", func(t *testing.T) {
		for _, table := range processor.DefaultTables() {
			assert.NoError(t, table.Validate(), table.Provider.String())
		}
	})

	t.Run("Unmapped known status fails startup", func(t *testing.T) {
		tables := processor.DefaultTables()
		delete(tables[0].Statuses, genericwallet.StatusCanceled)

		_, err := processor.NewProcessor(tables...)
		require.Error(t, err)
		assert.True(t, errors.Is(err, processor.ErrIncompleteTable))
		assert.Contains(t, err.Error(), "status 16")
	})

	t.Run("Unmapped readiness reason fails startup", func(t *testing.T) {
		tables := processor.DefaultTables()
		delete(tables[1].Reasons, devicewallet.ReasonAppNeedToUpdate)

		_, err := processor.NewProcessor(tables...)
		assert.ErrorIs(t, err, processor.ErrIncompleteTable)
	})

	t.Run("Status mapped to pending fails startup", func(t *testing.T) {
		tables := processor.DefaultTables()
		tables[0].Statuses[genericwallet.StatusSuccess] = payment.OutcomePending

		_, err := processor.NewProcessor(tables...)
		assert.ErrorIs(t, err, processor.ErrIncompleteTable)
	})

	t.Run("Missing provider table fails startup", func(t *testing.T) {
		_, err := processor.NewProcessor(processor.DefaultTables()[0])
		assert.ErrorIs(t, err, processor.ErrNoTable)
	})
}

func TestProcessor_Resolve_GenericWallet(t *testing.T) {
	p := newProcessor(t)

	tests := []struct {
		name string
		ev   adapter.RawEvent
		want payment.Outcome
	}{
		{
			name: "success with token",
			ev:   adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: genericwallet.StatusSuccess, Token: "tok_abc"},
			want: payment.Succeeded("tok_abc"),
		},
		{
			name: "success without token",
			ev:   adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: genericwallet.StatusSuccess},
			want: payment.InternalError("SUCCESS without a payment token"),
		},
		{
			name: "canceled",
			ev:   adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: genericwallet.StatusCanceled},
			want: payment.Cancelled(),
		},
		{
			name: "resolution error",
			ev:   adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: genericwallet.StatusResolutionError},
			want: payment.ProviderError(genericwallet.StatusResolutionError, "RESOLUTION_ERROR"),
		},
		{
			name: "internal error keeps provider message",
			ev:   adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: genericwallet.StatusInternalError, Message: "boom"},
			want: payment.InternalError("boom"),
		},
		{
			name: "unmapped code fails loud",
			ev:   adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: 405},
			want: payment.InternalError("unmapped generic_wallet status code 405"),
		},
		{
			name: "transport error",
			ev:   adapter.RawEvent{Kind: adapter.EventTransportError, Message: "giving up"},
			want: payment.InternalError("giving up"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Resolve(payment.GenericWallet, tt.ev))
		})
	}
}

func TestProcessor_Resolve_DeviceWallet(t *testing.T) {
	p := newProcessor(t)

	got := p.Resolve(payment.DeviceWallet, adapter.RawEvent{Kind: adapter.EventSuccess, Token: "cred_123"})
	assert.Equal(t, payment.Succeeded("cred_123"), got)

	got = p.Resolve(payment.DeviceWallet, adapter.RawEvent{Kind: adapter.EventFailure, ErrorCode: -7, Message: "declined"})
	assert.Equal(t, payment.ProviderError(-7, "declined"), got)

	got = p.Resolve(payment.DeviceWallet, adapter.RawEvent{Kind: adapter.EventCardInfoUpdated})
	assert.False(t, got.Terminal())

	got = p.Resolve(payment.DeviceWallet, adapter.RawEvent{Kind: adapter.EventSuccess})
	assert.Equal(t, payment.OutcomeInternalError, got.Kind)

	// The device wallet documents no status codes.
	got = p.Resolve(payment.DeviceWallet, adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: 0})
	assert.Equal(t, payment.OutcomeInternalError, got.Kind)
}

func TestProcessor_ResolveReadiness(t *testing.T) {
	p := newProcessor(t)

	tests := []struct {
		name       string
		provider   payment.Provider
		raw        adapter.RawReadiness
		want       payment.Readiness
		wantReason string
	}{
		{"device ready", payment.DeviceWallet, adapter.RawReadiness{Code: devicewallet.StatusReady}, payment.Ready, ""},
		{"device setup incomplete", payment.DeviceWallet,
			adapter.RawReadiness{Code: devicewallet.StatusNotReady, Reason: devicewallet.ReasonSetupNotCompleted},
			payment.NotReady, "SETUP_NOT_COMPLETED"},
		{"device external display", payment.DeviceWallet,
			adapter.RawReadiness{Code: devicewallet.StatusNotAllowedTemporally, Reason: devicewallet.ReasonConnectedWithExternalDisplay},
			payment.TemporarilyUnavailable, "CONNECTED_WITH_EXTERNAL_DISPLAY"},
		{"device unsupported", payment.DeviceWallet, adapter.RawReadiness{Code: devicewallet.StatusNotSupported}, payment.Unsupported, ""},
		{"device unknown reason", payment.DeviceWallet,
			adapter.RawReadiness{Code: devicewallet.StatusNotReady, Reason: -1},
			payment.NotReady, "REASON(-1)"},
		{"device unmapped code", payment.DeviceWallet, adapter.RawReadiness{Code: 99}, payment.ReadinessError, ""},
		{"generic ready", payment.GenericWallet, adapter.RawReadiness{Code: genericwallet.ReadinessReady}, payment.Ready, ""},
		{"generic not ready", payment.GenericWallet, adapter.RawReadiness{Code: genericwallet.ReadinessNotReady}, payment.NotReady, ""},
		{"probe failure", payment.GenericWallet, adapter.RawReadiness{Err: errors.New("timeout")}, payment.ReadinessError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := p.ResolveReadiness(tt.provider, tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}
