// Package uistate holds the state rendered by the checkout screen: the
// outcome of the latest payment request and per-provider readiness.
//
// The coordinator is the only writer. Readers take immutable snapshots or
// subscribe to change notifications.
package uistate

import (
	"encoding/json"
	"sync"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// Snapshot is a point-in-time copy of the state. Outcome is nil until the
// first payment request.
type Snapshot struct {
	Outcome   *payment.Outcome
	Readiness map[payment.Provider]payment.Readiness
	Version   uint64
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Outcome   *payment.Outcome  `json:"outcome"`
		Readiness map[string]string `json:"readiness"`
		Version   uint64            `json:"version"`
	}{s.Outcome, s.ReadinessByName(), s.Version})
}

// ReadinessByName returns readiness keyed by provider name, for rendering.
func (s Snapshot) ReadinessByName() map[string]string {
	out := make(map[string]string, len(s.Readiness))
	for p, r := range s.Readiness {
		out[p.String()] = r.String()
	}
	return out
}

// IsReady reports whether p was READY at snapshot time.
func (s Snapshot) IsReady(p payment.Provider) bool {
	return s.Readiness[p] == payment.Ready
}

// State is the observable UI state.
type State struct {
	mu        sync.RWMutex
	outcome   *payment.Outcome
	readiness map[payment.Provider]payment.Readiness
	version   uint64

	subs    map[int]chan Snapshot
	nextSub int
}

// New returns a State with no outcome and the given initial readiness.
// Providers missing from initial start as ReadinessUnknown.
func New(initial map[payment.Provider]payment.Readiness) *State {
	readiness := make(map[payment.Provider]payment.Readiness, len(payment.Providers))
	for _, p := range payment.Providers {
		readiness[p] = payment.ReadinessUnknown
	}
	for p, r := range initial {
		readiness[p] = r
	}
	return &State{
		readiness: readiness,
		subs:      make(map[int]chan Snapshot),
	}
}

// SetOutcome replaces the current outcome.
func (s *State) SetOutcome(o payment.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcome = &o
	s.publishLocked()
}

// SetReadiness records the readiness of p.
func (s *State) SetReadiness(p payment.Provider, r payment.Readiness) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readiness[p] = r
	s.publishLocked()
}

// Outcome returns the current outcome, if any.
func (s *State) Outcome() (payment.Outcome, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.outcome == nil {
		return payment.Outcome{}, false
	}
	return *s.outcome, true
}

// Readiness returns the last known readiness of p.
func (s *State) Readiness(p payment.Provider) payment.Readiness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readiness[p]
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only ever see the most recent snapshot. The returned
// func unsubscribes and closes the channel.
func (s *State) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Snapshot, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

func (s *State) snapshotLocked() Snapshot {
	readiness := make(map[payment.Provider]payment.Readiness, len(s.readiness))
	for p, r := range s.readiness {
		readiness[p] = r
	}
	snap := Snapshot{Readiness: readiness, Version: s.version}
	if s.outcome != nil {
		o := *s.outcome
		snap.Outcome = &o
	}
	return snap
}

// publishLocked must be called with the write lock held. Only the writer
// sends, so after draining a stale value the send cannot block.
func (s *State) publishLocked() {
	s.version++
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
