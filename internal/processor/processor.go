package processor

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yourorg/wallet-checkout/internal/adapter"
	"github.com/yourorg/wallet-checkout/internal/adapter/devicewallet"
	"github.com/yourorg/wallet-checkout/internal/adapter/genericwallet"
	"github.com/yourorg/wallet-checkout/internal/payment"
)

var (
	// ErrIncompleteTable is returned when a table leaves a documented provider
	// code unmapped.
	ErrIncompleteTable = errors.New("processor: status table is incomplete")
	// ErrNoTable is returned when a provider has no table at all.
	ErrNoTable = errors.New("processor: no status table for provider")
)

// Table maps one provider's raw codes onto outcomes and readiness values.
type Table struct {
	Provider payment.Provider

	// Statuses maps result codes of status events.
	Statuses map[int]payment.OutcomeKind
	// StatusNames names result codes for messages and logs.
	StatusNames map[int]string
	// Readiness maps readiness probe answers.
	Readiness map[int]payment.Readiness
	// Reasons names the extra reasons attached to readiness answers.
	Reasons map[int]string

	KnownStatuses  []int
	KnownReadiness []int
	KnownReasons   []int
}

// Validate checks that every known code is mapped and that no status maps to
// a non-terminal outcome.
func (t Table) Validate() error {
	var missing []string
	for _, code := range t.KnownStatuses {
		kind, ok := t.Statuses[code]
		if !ok {
			missing = append(missing, fmt.Sprintf("status %d", code))
			continue
		}
		if !kind.Terminal() {
			return fmt.Errorf("%w: %s status %d maps to non-terminal %s", ErrIncompleteTable, t.Provider, code, kind)
		}
	}
	for _, code := range t.KnownReadiness {
		if _, ok := t.Readiness[code]; !ok {
			missing = append(missing, fmt.Sprintf("readiness %d", code))
		}
	}
	for _, code := range t.KnownReasons {
		if _, ok := t.Reasons[code]; !ok {
			missing = append(missing, fmt.Sprintf("reason %d", code))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s leaves %v unmapped", ErrIncompleteTable, t.Provider, missing)
	}
	return nil
}

// Processor turns raw adapter events into outcomes using validated tables.
// It's the only place that knows what a provider code means.
type Processor struct {
	tables map[payment.Provider]Table
}

// NewProcessor validates tables and requires one for every provider.
func NewProcessor(tables ...Table) (*Processor, error) {
	p := &Processor{tables: make(map[payment.Provider]Table, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		p.tables[t.Provider] = t
	}
	for _, provider := range payment.Providers {
		if _, ok := p.tables[provider]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNoTable, provider)
		}
	}
	return p, nil
}

// DefaultTables returns the tables of the built-in wallet integrations.
func DefaultTables() []Table {
	return []Table{
		{
			Provider: payment.GenericWallet,
			Statuses: map[int]payment.OutcomeKind{
				genericwallet.StatusSuccess:         payment.OutcomeSucceeded,
				genericwallet.StatusCanceled:        payment.OutcomeCancelled,
				genericwallet.StatusResolutionError: payment.OutcomeProviderError,
				genericwallet.StatusInternalError:   payment.OutcomeInternalError,
			},
			StatusNames: map[int]string{
				genericwallet.StatusSuccess:         "SUCCESS",
				genericwallet.StatusCanceled:        "CANCELED",
				genericwallet.StatusResolutionError: "RESOLUTION_ERROR",
				genericwallet.StatusInternalError:   "INTERNAL_ERROR",
			},
			Readiness: map[int]payment.Readiness{
				genericwallet.ReadinessReady:    payment.Ready,
				genericwallet.ReadinessNotReady: payment.NotReady,
			},
			KnownStatuses:  genericwallet.KnownStatusCodes,
			KnownReadiness: genericwallet.KnownReadinessCodes,
		},
		{
			Provider: payment.DeviceWallet,
			Readiness: map[int]payment.Readiness{
				devicewallet.StatusReady:                payment.Ready,
				devicewallet.StatusNotReady:             payment.NotReady,
				devicewallet.StatusNotAllowedTemporally: payment.TemporarilyUnavailable,
				devicewallet.StatusNotSupported:         payment.Unsupported,
			},
			Reasons: map[int]string{
				devicewallet.ReasonNone:                         "",
				devicewallet.ReasonSetupNotCompleted:            "SETUP_NOT_COMPLETED",
				devicewallet.ReasonAppNeedToUpdate:              "APP_NEED_TO_UPDATE",
				devicewallet.ReasonConnectedWithExternalDisplay: "CONNECTED_WITH_EXTERNAL_DISPLAY",
			},
			KnownReadiness: devicewallet.KnownStatusCodes,
			KnownReasons:   devicewallet.KnownReasonCodes,
		},
	}
}

// Resolve maps ev to an outcome. Card updates are not terminal and resolve
// to Pending; anything the table cannot explain resolves to InternalError.
func (p *Processor) Resolve(provider payment.Provider, ev adapter.RawEvent) payment.Outcome {
	t, ok := p.tables[provider]
	if !ok {
		return payment.InternalError(fmt.Sprintf("no status table for provider %s", provider))
	}

	switch ev.Kind {
	case adapter.EventCardInfoUpdated:
		return payment.Pending()
	case adapter.EventStatus:
		return t.resolveStatus(ev)
	case adapter.EventSuccess:
		if ev.Token == "" {
			return payment.InternalError("provider reported success without a credential")
		}
		return payment.Succeeded(ev.Token)
	case adapter.EventFailure:
		return payment.ProviderError(ev.ErrorCode, ev.Message)
	case adapter.EventTransportError:
		msg := ev.Message
		if msg == "" {
			msg = "lost contact with the provider"
		}
		return payment.InternalError(msg)
	default:
		return payment.InternalError(fmt.Sprintf("unexpected event %s", ev.Kind))
	}
}

func (t Table) resolveStatus(ev adapter.RawEvent) payment.Outcome {
	kind, ok := t.Statuses[ev.StatusCode]
	if !ok {
		return payment.InternalError(fmt.Sprintf("unmapped %s status code %d", t.Provider, ev.StatusCode))
	}
	name := t.StatusNames[ev.StatusCode]
	if name == "" {
		name = fmt.Sprintf("status %d", ev.StatusCode)
	}
	msg := ev.Message
	if msg == "" {
		msg = name
	}

	switch kind {
	case payment.OutcomeSucceeded:
		if ev.Token == "" {
			return payment.InternalError(fmt.Sprintf("%s without a payment token", name))
		}
		return payment.Succeeded(ev.Token)
	case payment.OutcomeCancelled:
		return payment.Cancelled()
	case payment.OutcomeProviderError:
		return payment.ProviderError(ev.StatusCode, msg)
	default:
		return payment.InternalError(msg)
	}
}

// ResolveReadiness maps a probe answer to a readiness value and the name of
// its extra reason. A failed probe or an unmapped code yields ReadinessError.
func (p *Processor) ResolveReadiness(provider payment.Provider, raw adapter.RawReadiness) (payment.Readiness, string) {
	if raw.Err != nil {
		return payment.ReadinessError, ""
	}
	t, ok := p.tables[provider]
	if !ok {
		return payment.ReadinessError, ""
	}
	r, ok := t.Readiness[raw.Code]
	if !ok {
		return payment.ReadinessError, ""
	}
	reason, ok := t.Reasons[raw.Reason]
	if !ok && raw.Reason != 0 {
		reason = fmt.Sprintf("REASON(%d)", raw.Reason)
	}
	return r, reason
}
