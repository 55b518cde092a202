// Package adapter defines the contract between the checkout coordinator and
// the wallet provider integrations. Adapters own everything provider-specific:
// payload construction, the wire protocol to the provider's gateway and the
// translation of gateway events into RawEvent values. They do not interpret
// status codes; that is the processor's job.
package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// ErrSheetUnsupported is returned by UpdateSheet on providers without a
// custom payment sheet.
var ErrSheetUnsupported = errors.New("adapter: provider has no custom sheet")

// ErrUnknownRequest is returned when an adapter is asked about a request it
// never started (or has already finished).
var ErrUnknownRequest = errors.New("adapter: unknown request")

// EventKind tells which provider callback produced a RawEvent.
type EventKind int

const (
	// EventStatus carries a provider status code (generic wallet result).
	EventStatus EventKind = iota + 1
	// EventSuccess carries a payment credential (device wallet onSuccess).
	EventSuccess
	// EventFailure carries a provider error code (device wallet onFailure).
	EventFailure
	// EventCardInfoUpdated is the non-terminal card change on a custom sheet.
	EventCardInfoUpdated
	// EventTransportError means the adapter lost contact with the gateway.
	EventTransportError
)

func (k EventKind) String() string {
	switch k {
	case EventStatus:
		return "status"
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	case EventCardInfoUpdated:
		return "card_info_updated"
	case EventTransportError:
		return "transport_error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// CardInfo describes the card selected on a custom sheet.
type CardInfo struct {
	CardID string `json:"card_id"`
	Brand  string `json:"brand"`
	Last4  string `json:"last4,omitempty"`
}

// RawEvent is one callback from a provider, untranslated.
type RawEvent struct {
	Kind       EventKind
	StatusCode int
	Token      string
	ErrorCode  int
	Message    string
	Card       *CardInfo
	// Sheet is the provider's custom sheet as sent with a card update. It is
	// handed back unchanged (or amended) through UpdateSheet.
	Sheet json.RawMessage
}

// RawReadiness is the untranslated answer to a readiness probe. Err is set
// when the probe itself failed.
type RawReadiness struct {
	Code   int
	Reason int
	Err    error
}

// ResultCallback receives the events of one payment request in order. It is
// registered before the request is issued.
type ResultCallback func(ev RawEvent)

// ReadinessCallback receives the result of one readiness probe.
type ReadinessCallback func(r RawReadiness)

// WalletProviderAdapter is implemented by each wallet integration.
type WalletProviderAdapter interface {
	// Provider returns which wallet this adapter talks to.
	Provider() payment.Provider

	// RequestPayment starts a payment for d. Events are delivered to cb, one
	// at a time, until a terminal event. A non-nil error means the request
	// was never started and cb will not be called.
	RequestPayment(ctx context.Context, d payment.Descriptor, cb ResultCallback) error

	// ProbeReadiness asks the provider whether it can take payments. The
	// answer arrives on cb; a non-nil error means the probe was not sent.
	ProbeReadiness(ctx context.Context, cb ReadinessCallback) error

	// UpdateSheet acknowledges a card update for requestID by sending the
	// (possibly amended) sheet back to the provider.
	UpdateSheet(ctx context.Context, requestID string, sheet json.RawMessage) error
}

// Activator is implemented by providers that can be set up or upgraded from
// the merchant app.
type Activator interface {
	// Activate starts the provider's own setup flow.
	Activate(ctx context.Context) error
	// OpenUpdatePage sends the user to the provider app's update page.
	OpenUpdatePage(ctx context.Context) error
}
