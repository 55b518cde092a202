package payment

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind classifies an Outcome. Pending is the in-flight display state;
// the other kinds are terminal.
type OutcomeKind int

const (
	OutcomePending OutcomeKind = iota
	OutcomeSucceeded
	OutcomeCancelled
	OutcomeProviderError
	OutcomeInternalError
)

var outcomeKindNames = map[OutcomeKind]string{
	OutcomePending:       "PENDING",
	OutcomeSucceeded:     "SUCCEEDED",
	OutcomeCancelled:     "CANCELLED",
	OutcomeProviderError: "PROVIDER_ERROR",
	OutcomeInternalError: "INTERNAL_ERROR",
}

func (k OutcomeKind) String() string {
	if name, ok := outcomeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

func (k OutcomeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Terminal reports whether k ends a request.
func (k OutcomeKind) Terminal() bool {
	return k != OutcomePending
}

// Outcome is the result of one payment request. Only the fields relevant to
// Kind are set: Token for Succeeded, Code and Message for ProviderError,
// Message for InternalError.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	RequestID string      `json:"request_id,omitempty"`
	Provider  Provider    `json:"provider"`
	Token     string      `json:"token,omitempty"`
	Code      int         `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
}

func Pending() Outcome {
	return Outcome{Kind: OutcomePending}
}

func Succeeded(token string) Outcome {
	return Outcome{Kind: OutcomeSucceeded, Token: token}
}

func Cancelled() Outcome {
	return Outcome{Kind: OutcomeCancelled}
}

func ProviderError(code int, message string) Outcome {
	return Outcome{Kind: OutcomeProviderError, Code: code, Message: message}
}

func InternalError(message string) Outcome {
	return Outcome{Kind: OutcomeInternalError, Message: message}
}

// For stamps the outcome with the request it belongs to.
func (o Outcome) For(requestID string, provider Provider) Outcome {
	o.RequestID = requestID
	o.Provider = provider
	return o
}

func (o Outcome) Terminal() bool {
	return o.Kind.Terminal()
}
