package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_requests_total",
		Help: "Pay taps turned into descriptors, by provider and result.",
	}, []string{"provider", "result"})

	buildDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_build_duration_seconds",
		Help:    "Time spent building a payment descriptor.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

// GetCheckoutRequestsTotal exposes the counter for tests.
func GetCheckoutRequestsTotal() *prometheus.CounterVec { return checkoutRequestsTotal }

// GetBuildDurationSeconds exposes the histogram for tests.
func GetBuildDurationSeconds() prometheus.Histogram { return buildDurationSeconds }
