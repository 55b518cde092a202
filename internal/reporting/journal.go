package reporting

import (
	"context"
	"sync"
	"time"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// Entry is one journaled terminal outcome.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	RequestID      string    `json:"request_id"`
	Provider       string    `json:"provider"`
	Amount         int64     `json:"amount"`
	Currency       string    `json:"currency"`
	OrderReference string    `json:"order_reference,omitempty"`
	Outcome        string    `json:"outcome"`
	Code           int       `json:"code,omitempty"`
	Message        string    `json:"message,omitempty"`
	// Superseded is set when a newer request had already replaced this one
	// on screen, so the outcome was never displayed.
	Superseded bool `json:"superseded,omitempty"`
}

// NewEntry records o for d at ts.
func NewEntry(ts time.Time, d payment.Descriptor, o payment.Outcome, superseded bool) Entry {
	return Entry{
		Timestamp:      ts.UTC(),
		RequestID:      d.RequestID(),
		Provider:       d.Provider().String(),
		Amount:         d.Amount(),
		Currency:       d.Currency(),
		OrderReference: d.OrderReference(),
		Outcome:        o.Kind.String(),
		Code:           o.Code,
		Message:        o.Message,
		Superseded:     superseded,
	}
}

// Journal stores terminal outcomes for later reporting.
type Journal interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context) ([]Entry, error)
}

// MemoryJournal keeps the most recent entries in memory.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewMemoryJournal keeps at most max entries; max <= 0 means unbounded.
func NewMemoryJournal(max int) *MemoryJournal {
	return &MemoryJournal{max: max}
}

func (j *MemoryJournal) Append(_ context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	if j.max > 0 && len(j.entries) > j.max {
		j.entries = append([]Entry(nil), j.entries[len(j.entries)-j.max:]...)
	}
	return nil
}

func (j *MemoryJournal) List(_ context.Context) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Entry, len(j.entries))
	copy(out, j.entries)
	return out, nil
}
