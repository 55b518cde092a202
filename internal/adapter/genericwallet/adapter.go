// Package genericwallet integrates the generic wallet pay API. A payment is a
// single round trip: the wallet shows its own sheet and answers with one
// status code and, on success, a payment token.
package genericwallet

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/walletclient"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

// Result status codes reported by the wallet.
const (
	StatusSuccess         = 0
	StatusResolutionError = 1
	StatusInternalError   = 8
	StatusCanceled        = 16
)

// KnownStatusCodes is every result code the wallet documents.
var KnownStatusCodes = []int{StatusSuccess, StatusResolutionError, StatusInternalError, StatusCanceled}

// Is-ready-to-pay answers.
const (
	ReadinessNotReady = 0
	ReadinessReady    = 1
)

// KnownReadinessCodes is every readiness answer the wallet documents.
var KnownReadinessCodes = []int{ReadinessNotReady, ReadinessReady}

// Merchant holds the merchant settings sent with every request.
type Merchant struct {
	Name                string
	CountryCode         string
	Gateway             string
	GatewayMerchantID   string
	AllowedAuthMethods  []string
	AllowedCardNetworks []string
}

// Config configures an Adapter.
type Config struct {
	Client   walletclient.Config
	Merchant Merchant
}

// Adapter implements adapter.WalletProviderAdapter for the generic wallet.
type Adapter struct {
	client   *walletclient.Client
	merchant Merchant
	log      *logrus.Entry
}

// NewAdapter creates an Adapter talking to the gateway in cfg.Client.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Merchant.Gateway == "" || cfg.Merchant.GatewayMerchantID == "" {
		return nil, errors.New("genericwallet: gateway and gateway merchant id are required")
	}
	log := cfg.Client.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("provider", payment.GenericWallet.String())
	cfg.Client.Logger = log

	client, err := walletclient.New(cfg.Client)
	if err != nil {
		return nil, errors.Wrap(err, "genericwallet")
	}
	return &Adapter{client: client, merchant: cfg.Merchant, log: log}, nil
}

// Provider implements adapter.WalletProviderAdapter.
func (a *Adapter) Provider() payment.Provider {
	return payment.GenericWallet
}

// RequestPayment opens a session and watches it on its own goroutine.
func (a *Adapter) RequestPayment(ctx context.Context, d payment.Descriptor, cb adapter.ResultCallback) error {
	req, err := BuildPaymentDataRequest(a.merchant, d)
	if err != nil {
		return err
	}
	session, err := a.client.StartSession(ctx, d.RequestID(), req)
	if err != nil {
		return err
	}

	log := a.log.WithFields(logrus.Fields{"request_id": d.RequestID(), "session": session})
	log.Debug("payment session started")

	go func() {
		err := a.client.Watch(ctx, session, func(ev walletclient.Event) {
			cb(toRawEvent(ev))
		})
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("lost payment session")
			cb(adapter.RawEvent{Kind: adapter.EventTransportError, Message: err.Error()})
		}
	}()
	return nil
}

// ProbeReadiness asks the gateway and answers on cb from a new goroutine.
func (a *Adapter) ProbeReadiness(ctx context.Context, cb adapter.ReadinessCallback) error {
	go func() {
		resp, err := a.client.Readiness(ctx)
		if err != nil {
			cb(adapter.RawReadiness{Err: err})
			return
		}
		cb(adapter.RawReadiness{Code: resp.StatusCode, Reason: resp.ReasonCode})
	}()
	return nil
}

// UpdateSheet is not supported: the generic wallet renders its own sheet.
func (a *Adapter) UpdateSheet(ctx context.Context, requestID string, sheet json.RawMessage) error {
	return adapter.ErrSheetUnsupported
}

func toRawEvent(ev walletclient.Event) adapter.RawEvent {
	switch ev.Type {
	case walletclient.EventTypeStatus:
		return adapter.RawEvent{Kind: adapter.EventStatus, StatusCode: ev.StatusCode, Token: ev.Token, Message: ev.Message}
	default:
		// The generic wallet only ever reports status events.
		return adapter.RawEvent{
			Kind:    adapter.EventTransportError,
			Message: "genericwallet: unexpected event type " + ev.Type,
		}
	}
}

var _ adapter.WalletProviderAdapter = (*Adapter)(nil)
