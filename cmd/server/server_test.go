package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/wallet-checkout/internal/config"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	a, err := newApp(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return setupRouter(a)
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	}
	return w, resp
}

func currentOutcome(t *testing.T, r http.Handler) map[string]interface{} {
	t.Helper()
	_, state := doJSON(t, r, http.MethodGet, "/state", "")
	outcome, _ := state["outcome"].(map[string]interface{})
	return outcome
}

func TestHealthz(t *testing.T) {
	router := setupTestRouter(t)
	w, resp := doJSON(t, router, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", resp["status"])
}

func TestInitiatePayment_GenericWallet(t *testing.T) {
	router := setupTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/payments/generic_wallet", `{"amount":120,"currency":"usd","order_reference":"AMZ007MAR"}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	requestID, _ := resp["request_id"].(string)
	require.NotEmpty(t, requestID)
	assert.Equal(t, "USD", resp["currency"])
	assert.Equal(t, "AMZ007MAR", resp["order_reference"])
	assert.Equal(t, "Sample Merchant", resp["merchant"])

	require.Eventually(t, func() bool {
		o := currentOutcome(t, router)
		return o != nil && o["kind"] == "SUCCEEDED"
	}, 2*time.Second, 10*time.Millisecond)

	o := currentOutcome(t, router)
	assert.Equal(t, requestID, o["request_id"])
	assert.Equal(t, "generic_wallet", o["provider"])
	assert.True(t, strings.HasPrefix(o["token"].(string), "tok_sim_"))
}

func TestInitiatePayment_DeviceWalletSampleCart(t *testing.T) {
	router := setupTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/payments/device_wallet", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "INR", resp["currency"])
	assert.EqualValues(t, 120500, resp["amount"])
	requestID := resp["request_id"].(string)

	var flow map[string]interface{}
	require.Eventually(t, func() bool {
		_, flow = doJSON(t, router, http.MethodGet, "/requests/"+requestID, "")
		return flow["state"] == "TERMINAL"
	}, 2*time.Second, 10*time.Millisecond)

	assert.EqualValues(t, 1, flow["acks"], "the card update must be acknowledged once")
	outcome := flow["outcome"].(map[string]interface{})
	assert.Equal(t, "SUCCEEDED", outcome["kind"])
}

func TestInitiatePayment_InvalidRequests(t *testing.T) {
	router := setupTestRouter(t)

	tests := []struct {
		name    string
		path    string
		body    string
		code    int
		message string
	}{
		{"unknown provider", "/payments/paypal", `{"amount":1,"currency":"USD"}`, http.StatusNotFound, "unknown payment provider"},
		{"not json", "/payments/generic_wallet", "this is not json", http.StatusBadRequest, "Invalid request format"},
		{"zero amount", "/payments/generic_wallet", `{"amount":0,"currency":"USD"}`, http.StatusBadRequest, "Validation failed"},
		{"unexpected field", "/payments/generic_wallet", `{"amount":5,"currency":"USD","card":"4242"}`, http.StatusBadRequest, "Validation failed"},
		{"unknown currency", "/payments/generic_wallet", `{"amount":5,"currency":"ZZZ"}`, http.StatusBadRequest, "currency"},
		{
			"oversized line item", "/payments/device_wallet",
			`{"amount":120,"currency":"INR","line_items":[{"id":"a","amount":4611686018427387904},{"id":"b","amount":120}]}`,
			http.StatusBadRequest, "Validation failed",
		},
		{
			"items do not add up", "/payments/device_wallet",
			`{"amount":500,"currency":"INR","line_items":[{"id":"PRODUCT_ITEM_ID","amount":100}]}`,
			http.StatusBadRequest, "line items",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := doJSON(t, router, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, resp["error"], tt.message)
		})
	}

	assert.Nil(t, currentOutcome(t, router), "rejected requests must not change the screen")
}

func TestInitiatePayment_CustomSchema(t *testing.T) {
	schema := filepath.Join(t.TempDir(), "checkout.json")
	require.NoError(t, os.WriteFile(schema, []byte(`{
		"type": "object",
		"properties": {
			"amount": {"type": "integer", "minimum": 1, "maximum": 100},
			"currency": {"type": "string"}
		},
		"required": ["amount", "currency"]
	}`), 0o600))
	t.Setenv("CHECKOUT_SCHEMA_PATH", schema)
	router := setupTestRouter(t)

	w, resp := doJSON(t, router, http.MethodPost, "/payments/generic_wallet", `{"amount":500,"currency":"USD"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Validation failed", resp["error"])

	w, _ = doJSON(t, router, http.MethodPost, "/payments/generic_wallet", `{"amount":50,"currency":"USD"}`)
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
}

func TestNewApp_MissingSchemaFile(t *testing.T) {
	t.Setenv("CHECKOUT_SCHEMA_PATH", filepath.Join(t.TempDir(), "missing.json"))
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	_, err = newApp(context.Background(), cfg, logger)
	assert.Error(t, err)
}

func TestRequest_Unknown(t *testing.T) {
	router := setupTestRouter(t)
	w, _ := doJSON(t, router, http.MethodGet, "/requests/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSampleCart(t *testing.T) {
	router := setupTestRouter(t)
	w, resp := doJSON(t, router, http.MethodGet, "/payments/device_wallet/sample", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 120500, resp["amount"])
	assert.Len(t, resp["line_items"], 3)
}

func TestProbeReadiness(t *testing.T) {
	router := setupTestRouter(t)

	_, state := doJSON(t, router, http.MethodGet, "/state", "")
	readiness := state["readiness"].(map[string]interface{})
	assert.Equal(t, "UNKNOWN", readiness["generic_wallet"])
	assert.Equal(t, "READY", readiness["device_wallet"])

	w, _ := doJSON(t, router, http.MethodPost, "/readiness/generic_wallet/probe", "")
	assert.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		_, state := doJSON(t, router, http.MethodGet, "/state", "")
		return state["readiness"].(map[string]interface{})["generic_wallet"] == "READY"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestReport(t *testing.T) {
	router := setupTestRouter(t)

	w, _ := doJSON(t, router, http.MethodPost, "/payments/generic_wallet", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		_, report := doJSON(t, router, http.MethodGet, "/report", "")
		return report["succeeded"] == float64(1)
	}, 2*time.Second, 10*time.Millisecond)

	_, report := doJSON(t, router, http.MethodGet, "/report", "")
	assert.EqualValues(t, 1, report["total_requests"])
	assert.EqualValues(t, 120, report["amount_by_currency"].(map[string]interface{})["USD"])
}

func TestMetricsEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	w, _ := doJSON(t, router, http.MethodPost, "/payments/generic_wallet", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wallet_payments_initiated_total")
}

func TestStateStream(t *testing.T) {
	srv := httptest.NewServer(setupTestRouter(t))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/state/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	var got []string
	for lines.Scan() && len(got) < 2 {
		if line := lines.Text(); line != "" {
			got = append(got, line)
		}
	}
	require.Len(t, got, 2)
	assert.Equal(t, "event:state", got[0])
	assert.True(t, strings.HasPrefix(got[1], "data:"))
	assert.Contains(t, got[1], `"readiness"`)
}
