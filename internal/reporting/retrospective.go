package reporting

import (
	"fmt"
	"time"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// RetrospectiveReport summarizes journaled outcomes.
type RetrospectiveReport struct {
	TotalRequests      int              `json:"total_requests"`
	Succeeded          int              `json:"succeeded"`
	Cancelled          int              `json:"cancelled"`
	ProviderErrors     int              `json:"provider_errors"`
	InternalErrors     int              `json:"internal_errors"`
	Superseded         int              `json:"superseded"`
	AmountByCurrency   map[string]int64 `json:"amount_by_currency"` // succeeded only, minor units
	ErrorBreakdown     map[string]int   `json:"error_breakdown"`    // provider errors by "provider:code"
	ProviderUsage      map[string]int   `json:"provider_usage"`
	DateFrom           time.Time        `json:"date_from"`
	DateTo             time.Time        `json:"date_to"`
	ProcessingDuration time.Duration    `json:"processing_duration"`
}

// RetrospectiveReporter generates retrospective reports from journal entries.
type RetrospectiveReporter struct{}

func NewRetrospectiveReporter() *RetrospectiveReporter {
	return &RetrospectiveReporter{}
}

// GenerateRetrospective analyzes entries and produces a report.
func (rr *RetrospectiveReporter) GenerateRetrospective(entries []Entry) (*RetrospectiveReport, error) {
	report := &RetrospectiveReport{
		AmountByCurrency: make(map[string]int64),
		ErrorBreakdown:   make(map[string]int),
		ProviderUsage:    make(map[string]int),
	}

	for i, e := range entries {
		report.TotalRequests++
		if i == 0 || e.Timestamp.Before(report.DateFrom) {
			report.DateFrom = e.Timestamp
		}
		if i == 0 || e.Timestamp.After(report.DateTo) {
			report.DateTo = e.Timestamp
		}
		if e.Provider != "" {
			report.ProviderUsage[e.Provider]++
		}
		if e.Superseded {
			report.Superseded++
		}

		switch e.Outcome {
		case payment.OutcomeSucceeded.String():
			report.Succeeded++
			report.AmountByCurrency[e.Currency] += e.Amount
		case payment.OutcomeCancelled.String():
			report.Cancelled++
		case payment.OutcomeProviderError.String():
			report.ProviderErrors++
			report.ErrorBreakdown[fmt.Sprintf("%s:%d", e.Provider, e.Code)]++
		case payment.OutcomeInternalError.String():
			report.InternalErrors++
		default:
			return nil, fmt.Errorf("reporting: entry %s has unknown outcome %q", e.RequestID, e.Outcome)
		}
	}

	report.ProcessingDuration = report.DateTo.Sub(report.DateFrom)
	return report, nil
}
