package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentsInitiatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_payments_initiated_total",
		Help: "Payment requests dispatched to a wallet adapter.",
	}, []string{"provider"})

	paymentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_payment_outcomes_total",
		Help: "Terminal payment outcomes, by provider and outcome kind.",
	}, []string{"provider", "outcome"})

	supersededOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_superseded_outcomes_total",
		Help: "Outcomes of requests that had been replaced on screen by a newer request.",
	}, []string{"provider"})

	ignoredEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_ignored_events_total",
		Help: "Provider events dropped by the coordinator, by reason.",
	}, []string{"reason"})

	sheetAcksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_sheet_acks_total",
		Help: "Custom sheet acknowledgments sent after card updates, by result.",
	}, []string{"result"})

	readinessProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_readiness_probes_total",
		Help: "Readiness probe answers, by provider and readiness.",
	}, []string{"provider", "readiness"})

	paymentDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_payment_duration_seconds",
		Help:    "Time from initiation to terminal outcome.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"provider"})
)

func GetPaymentsInitiatedTotal() *prometheus.CounterVec   { return paymentsInitiatedTotal }
func GetPaymentOutcomesTotal() *prometheus.CounterVec     { return paymentOutcomesTotal }
func GetSupersededOutcomesTotal() *prometheus.CounterVec  { return supersededOutcomesTotal }
func GetIgnoredEventsTotal() *prometheus.CounterVec       { return ignoredEventsTotal }
func GetSheetAcksTotal() *prometheus.CounterVec           { return sheetAcksTotal }
func GetReadinessProbesTotal() *prometheus.CounterVec     { return readinessProbesTotal }
func GetPaymentDurationSeconds() *prometheus.HistogramVec { return paymentDurationSeconds }
