package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_Disabled(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(false, "wallet-checkout", &buf)
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestInit_ExportsSpans(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	var buf bytes.Buffer
	shutdown, err := Init(true, "wallet-checkout-test", &buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "Coordinator.InitiatePayment")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "Coordinator.InitiatePayment")
	assert.Contains(t, out, "wallet-checkout-test")
}
