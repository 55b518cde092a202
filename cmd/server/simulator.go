package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/devicewallet"
	"github.com/yourorg/wallet-checkout/internal/adapter/genericwallet"
	adaptermock "github.com/yourorg/wallet-checkout/internal/adapter/mock"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

// simulatedDelay is how long a simulated wallet "thinks" before answering.
const simulatedDelay = 20 * time.Millisecond

// after runs fn once delay has passed, unless ctx ends first.
func after(ctx context.Context, delay time.Duration, fn func()) {
	go func() {
		select {
		case <-time.After(delay):
			fn()
		case <-ctx.Done():
		}
	}()
}

// newSimulatedGenericWallet approves every payment, the way the generic
// wallet's test environment does.
func newSimulatedGenericWallet(log *logrus.Entry) *adaptermock.MockAdapter {
	m := adaptermock.NewMockAdapter(payment.GenericWallet)
	m.RequestPaymentFunc = func(ctx context.Context, d payment.Descriptor, cb adapter.ResultCallback) error {
		log.WithField("request_id", d.RequestID()).Debug("simulated generic wallet payment")
		after(ctx, simulatedDelay, func() {
			cb(adapter.RawEvent{
				Kind:       adapter.EventStatus,
				StatusCode: genericwallet.StatusSuccess,
				Token:      "tok_sim_" + d.RequestID(),
			})
		})
		return nil
	}
	m.ProbeReadinessFunc = func(ctx context.Context, cb adapter.ReadinessCallback) error {
		after(ctx, simulatedDelay, func() {
			cb(adapter.RawReadiness{Code: genericwallet.ReadinessReady})
		})
		return nil
	}
	return m
}

// newSimulatedDeviceWallet changes the card once, waits for the sheet to be
// acknowledged and then approves the payment.
func newSimulatedDeviceWallet(log *logrus.Entry) *adaptermock.MockAdapter {
	m := adaptermock.NewMockAdapter(payment.DeviceWallet)
	m.RequestPaymentFunc = func(ctx context.Context, d payment.Descriptor, cb adapter.ResultCallback) error {
		control, err := devicewallet.AmountControlFor(d)
		if err != nil {
			return err
		}
		sheet, err := json.Marshal(devicewallet.CustomSheet{Controls: []devicewallet.AmountBoxControl{control}})
		if err != nil {
			return err
		}

		log.WithField("request_id", d.RequestID()).Debug("simulated device wallet payment")
		after(ctx, simulatedDelay, func() {
			// cb returns once the coordinator has acknowledged the sheet.
			cb(adapter.RawEvent{
				Kind:  adapter.EventCardInfoUpdated,
				Card:  &adapter.CardInfo{CardID: "sim-card", Brand: string(devicewallet.BrandVisa), Last4: "4242"},
				Sheet: sheet,
			})
			cb(adapter.RawEvent{Kind: adapter.EventSuccess, Token: "cred_sim_" + d.RequestID()})
		})
		return nil
	}
	m.ProbeReadinessFunc = func(ctx context.Context, cb adapter.ReadinessCallback) error {
		after(ctx, simulatedDelay, func() {
			cb(adapter.RawReadiness{Code: devicewallet.StatusReady, Reason: devicewallet.ReasonNone})
		})
		return nil
	}
	return m
}
