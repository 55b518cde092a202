package payment

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// LineItem is one row of the amount breakdown shown by providers that render
// a custom sheet (item, tax, shipping...).
type LineItem struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Amount int64  `json:"amount"`
}

// Descriptor describes one payment attempt. It is created once per user tap
// and never mutated; all fields are read through accessors.
type Descriptor struct {
	requestID      string
	provider       Provider
	amount         int64
	currency       string
	orderReference string
	lineItems      []LineItem
}

// NewDescriptor validates its inputs and returns a descriptor with a fresh
// request id. amount is in minor units and may be zero here; initiation
// requires it to be positive.
func NewDescriptor(provider Provider, amount int64, currencyCode, orderReference string, items ...LineItem) (Descriptor, error) {
	if !provider.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %v", ErrUnknownProvider, provider)
	}
	if amount < 0 {
		return Descriptor{}, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	code, err := NormalizeCurrency(currencyCode)
	if err != nil {
		return Descriptor{}, err
	}
	if len(items) > 0 {
		var sum int64
		for _, it := range items {
			if it.Amount < 0 {
				return Descriptor{}, fmt.Errorf("%w: line item %q is negative", ErrInvalidAmount, it.ID)
			}
			// sum never exceeds amount, so this cannot overflow.
			if it.Amount > amount-sum {
				return Descriptor{}, fmt.Errorf("%w: items exceed amount %d at %q", ErrLineItemMismatch, amount, it.ID)
			}
			sum += it.Amount
		}
		if sum != amount {
			return Descriptor{}, fmt.Errorf("%w: items total %d, amount %d", ErrLineItemMismatch, sum, amount)
		}
	}

	copied := make([]LineItem, len(items))
	copy(copied, items)

	return Descriptor{
		requestID:      uuid.NewString(),
		provider:       provider,
		amount:         amount,
		currency:       code,
		orderReference: orderReference,
		lineItems:      copied,
	}, nil
}

func (d Descriptor) RequestID() string      { return d.requestID }
func (d Descriptor) Provider() Provider     { return d.provider }
func (d Descriptor) Amount() int64          { return d.amount }
func (d Descriptor) Currency() string       { return d.currency }
func (d Descriptor) OrderReference() string { return d.orderReference }

// LineItems returns a copy of the amount breakdown.
func (d Descriptor) LineItems() []LineItem {
	out := make([]LineItem, len(d.lineItems))
	copy(out, d.lineItems)
	return out
}

// IsZero reports whether d was never built by NewDescriptor.
func (d Descriptor) IsZero() bool {
	return d.requestID == ""
}

type descriptorJSON struct {
	RequestID      string     `json:"request_id"`
	Provider       Provider   `json:"provider"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	OrderReference string     `json:"order_reference,omitempty"`
	LineItems      []LineItem `json:"line_items,omitempty"`
}

func (d Descriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(descriptorJSON{
		RequestID:      d.requestID,
		Provider:       d.provider,
		Amount:         d.amount,
		Currency:       d.currency,
		OrderReference: d.orderReference,
		LineItems:      d.lineItems,
	})
}
