package reporting

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

func TestNewEntry(t *testing.T) {
	d, err := payment.NewDescriptor(payment.DeviceWallet, 120500, "inr", "AMZ007MAR")
	require.NoError(t, err)
	ts := time.Date(2024, 3, 7, 10, 0, 0, 0, time.FixedZone("IST", 5*3600+1800))

	e := NewEntry(ts, d, payment.ProviderError(-7, "declined"), true)
	assert.Equal(t, ts.UTC(), e.Timestamp)
	assert.Equal(t, d.RequestID(), e.RequestID)
	assert.Equal(t, "device_wallet", e.Provider)
	assert.Equal(t, "INR", e.Currency)
	assert.Equal(t, "PROVIDER_ERROR", e.Outcome)
	assert.Equal(t, -7, e.Code)
	assert.True(t, e.Superseded)
}

func TestMemoryJournal(t *testing.T) {
	ctx := context.Background()
	j := NewMemoryJournal(2)

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, j.Append(ctx, Entry{RequestID: id, Outcome: "SUCCEEDED"}))
	}

	entries, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2, "oldest entries are dropped")
	assert.Equal(t, "r2", entries[0].RequestID)
	assert.Equal(t, "r3", entries[1].RequestID)

	entries[0].RequestID = "mutated"
	again, err := j.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", again[0].RequestID, "List returns a copy")
}

// TestRedisJournal needs a live server; set REDIS_TEST_ADDR to run it.
func TestRedisJournal(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, "", 0)
	require.NoError(t, err)
	defer client.Close()

	key := "wallet-checkout:test:" + time.Now().Format("150405.000000000")
	defer client.Del(ctx, key)

	j := NewRedisJournal(client, key, 2)
	ts := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, j.Append(ctx, Entry{Timestamp: ts, RequestID: id, Outcome: "SUCCEEDED", Amount: 120, Currency: "USD"}))
	}

	entries, err := j.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "r2", entries[0].RequestID)
	assert.Equal(t, ts, entries[1].Timestamp)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewRedisClient(ctx, "127.0.0.1:1", "", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}
