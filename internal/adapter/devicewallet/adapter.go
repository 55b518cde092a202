// Package devicewallet integrates the device manufacturer's pay API. Payments
// run on a custom sheet: the wallet may report card changes before its final
// answer, and each change must be acknowledged by sending the sheet back.
package devicewallet

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/walletclient"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

// ServiceTypeInAppPayment is the partner service type for in-app payments.
const ServiceTypeInAppPayment = "INAPP_PAYMENT"

// Wallet status codes.
const (
	StatusNotSupported         = 0
	StatusNotReady             = 1
	StatusReady                = 2
	StatusNotAllowedTemporally = 3
)

// KnownStatusCodes is every readiness status the wallet documents.
var KnownStatusCodes = []int{StatusNotSupported, StatusNotReady, StatusReady, StatusNotAllowedTemporally}

// Extra error reasons that accompany a readiness status.
const (
	ReasonNone                         = 0
	ReasonSetupNotCompleted            = -356
	ReasonAppNeedToUpdate              = -357
	ReasonConnectedWithExternalDisplay = -103
)

// KnownReasonCodes is every readiness reason the wallet documents.
var KnownReasonCodes = []int{ReasonNone, ReasonSetupNotCompleted, ReasonAppNeedToUpdate, ReasonConnectedWithExternalDisplay}

// Merchant holds the merchant fields of the custom sheet payment info.
type Merchant struct {
	ID                    string
	Name                  string
	Brands                []Brand
	CardHolderNameEnabled bool
	RecurringEnabled      bool
	ExtraPaymentInfo      map[string]string
}

// Config configures an Adapter. Client.ServiceID is the partner service id.
type Config struct {
	Client   walletclient.Config
	Merchant Merchant
}

// Adapter implements adapter.WalletProviderAdapter and adapter.Activator for
// the device wallet.
type Adapter struct {
	client   *walletclient.Client
	merchant Merchant
	log      *logrus.Entry

	mu       sync.Mutex
	sessions map[string]string // request id -> gateway session
}

// NewAdapter creates an Adapter talking to the gateway in cfg.Client.
func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.Merchant.ID == "" || cfg.Merchant.Name == "" {
		return nil, errMissingMerchant
	}
	if cfg.Client.ServiceID == "" {
		return nil, errors.New("devicewallet: partner service id is required")
	}
	if cfg.Client.ServiceType == "" {
		cfg.Client.ServiceType = ServiceTypeInAppPayment
	}
	log := cfg.Client.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("provider", payment.DeviceWallet.String())
	cfg.Client.Logger = log

	client, err := walletclient.New(cfg.Client)
	if err != nil {
		return nil, errors.Wrap(err, "devicewallet")
	}
	return &Adapter{
		client:   client,
		merchant: cfg.Merchant,
		log:      log,
		sessions: make(map[string]string),
	}, nil
}

// Provider implements adapter.WalletProviderAdapter.
func (a *Adapter) Provider() payment.Provider {
	return payment.DeviceWallet
}

// BuildPaymentInfo renders d as custom sheet payment info for m.
func BuildPaymentInfo(m Merchant, d payment.Descriptor) (CustomSheetPaymentInfo, error) {
	if d.IsZero() {
		return CustomSheetPaymentInfo{}, errors.New("devicewallet: empty descriptor")
	}
	control, err := AmountControlFor(d)
	if err != nil {
		return CustomSheetPaymentInfo{}, err
	}
	return NewBuilder().
		SetMerchantID(m.ID).
		SetMerchantName(m.Name).
		SetOrderNumber(d.OrderReference()).
		SetAddressInPaymentSheet(AddressDoNotShow).
		SetAllowedCardBrands(m.Brands).
		SetCardHolderNameEnabled(m.CardHolderNameEnabled).
		SetRecurringEnabled(m.RecurringEnabled).
		SetCustomSheet(CustomSheet{Controls: []AmountBoxControl{control}}).
		SetExtraPaymentInfo(m.ExtraPaymentInfo).
		Build()
}

// RequestPayment opens a custom sheet session and watches it. Card updates
// are delivered to cb on the watching goroutine; the next event is not
// fetched until cb returns, so an UpdateSheet made from cb lands first.
func (a *Adapter) RequestPayment(ctx context.Context, d payment.Descriptor, cb adapter.ResultCallback) error {
	info, err := BuildPaymentInfo(a.merchant, d)
	if err != nil {
		return err
	}
	session, err := a.client.StartSession(ctx, d.RequestID(), info)
	if err != nil {
		return err
	}

	requestID := d.RequestID()
	a.mu.Lock()
	a.sessions[requestID] = session
	a.mu.Unlock()

	log := a.log.WithFields(logrus.Fields{"request_id": requestID, "session": session})
	log.Debug("custom sheet session started")

	go func() {
		defer a.forget(requestID)
		err := a.client.Watch(ctx, session, func(ev walletclient.Event) {
			cb(toRawEvent(ev))
		})
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Warn("lost custom sheet session")
			cb(adapter.RawEvent{Kind: adapter.EventTransportError, Message: err.Error()})
		}
	}()
	return nil
}

// UpdateSheet sends sheet back to the session of requestID.
func (a *Adapter) UpdateSheet(ctx context.Context, requestID string, sheet json.RawMessage) error {
	a.mu.Lock()
	session, ok := a.sessions[requestID]
	a.mu.Unlock()
	if !ok {
		return errors.Wrapf(adapter.ErrUnknownRequest, "devicewallet: request %s", requestID)
	}
	if len(sheet) == 0 {
		sheet = json.RawMessage(`{}`)
	}
	return a.client.PostSheet(ctx, session, sheet)
}

// ProbeReadiness asks the gateway for the wallet status and answers on cb
// from a new goroutine.
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

// Activate starts the wallet's setup flow.
func (a *Adapter) Activate(ctx context.Context) error {
	return a.client.Activate(ctx)
}

// OpenUpdatePage sends the user to the wallet app's update page.
func (a *Adapter) OpenUpdatePage(ctx context.Context) error {
	return a.client.OpenUpdatePage(ctx)
}

func (a *Adapter) forget(requestID string) {
	a.mu.Lock()
	delete(a.sessions, requestID)
	a.mu.Unlock()
}

func toRawEvent(ev walletclient.Event) adapter.RawEvent {
	switch ev.Type {
	case walletclient.EventTypeSuccess:
		return adapter.RawEvent{Kind: adapter.EventSuccess, Token: ev.Token, Message: ev.Message}
	case walletclient.EventTypeFailure:
		return adapter.RawEvent{Kind: adapter.EventFailure, ErrorCode: ev.ErrorCode, Message: ev.Message}
	case walletclient.EventTypeCardInfoUpdated:
		raw := adapter.RawEvent{Kind: adapter.EventCardInfoUpdated, Sheet: ev.Sheet}
		if ev.Card != nil {
			raw.Card = &adapter.CardInfo{CardID: ev.Card.CardID, Brand: ev.Card.Brand, Last4: ev.Card.Last4}
		}
		return raw
	default:
		return adapter.RawEvent{
			Kind:    adapter.EventTransportError,
			Message: "devicewallet: unexpected event type " + ev.Type,
		}
	}
}

var (
	_ adapter.WalletProviderAdapter = (*Adapter)(nil)
	_ adapter.Activator             = (*Adapter)(nil)
)
