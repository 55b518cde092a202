package payment

import "errors"

var (
	// ErrUnknownProvider is returned for provider names outside the known set.
	ErrUnknownProvider = errors.New("unknown payment provider")
	// ErrInvalidAmount is returned for negative amounts, or non-positive amounts at initiation.
	ErrInvalidAmount = errors.New("invalid payment amount")
	// ErrInvalidCurrency is returned for codes that are not ISO 4217 currencies.
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrLineItemMismatch is returned when line items do not add up to the amount.
	ErrLineItemMismatch = errors.New("line items do not sum to amount")
	// ErrInvalidReadiness is returned when parsing an unknown readiness name.
	ErrInvalidReadiness = errors.New("invalid readiness value")
)
