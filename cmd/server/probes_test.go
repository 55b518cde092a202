package main

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

func TestProbeLimiter(t *testing.T) {
	l := newProbeLimiter(time.Hour)
	assert.True(t, l.Allow(payment.GenericWallet))
	assert.False(t, l.Allow(payment.GenericWallet))
	assert.True(t, l.Allow(payment.DeviceWallet), "providers are limited separately")

	unlimited := newProbeLimiter(0)
	for i := 0; i < 5; i++ {
		assert.True(t, unlimited.Allow(payment.GenericWallet))
	}
}

func TestProbeReadiness_RateLimited(t *testing.T) {
	t.Setenv("PROBE_MIN_INTERVAL", "1h")
	router := setupTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/readiness/device_wallet/probe", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w, resp := doJSON(t, router, http.MethodPost, "/readiness/device_wallet/probe", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, resp["error"], "rate limited")
}

func TestProbeSchedule(t *testing.T) {
	t.Setenv("READINESS_PROBE_SCHEDULE", "@every 1s")
	router := setupTestRouter(t)

	require.Eventually(t, func() bool {
		_, state := doJSON(t, router, http.MethodGet, "/state", "")
		return state["readiness"].(map[string]interface{})["generic_wallet"] == "READY"
	}, 5*time.Second, 50*time.Millisecond)
}

func TestStartProbeSchedule_InvalidSpec(t *testing.T) {
	_, err := startProbeSchedule(&app{}, "every so often")
	assert.Error(t, err)
}
