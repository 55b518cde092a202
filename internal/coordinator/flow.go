package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/wallet-checkout/internal/payment"
)

// FlowState is the state of one payment request.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowRequested
	// FlowAwaitingUserAction is entered on a card update and left once the
	// sheet has been acknowledged.
	FlowAwaitingUserAction
	FlowTerminal
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "IDLE"
	case FlowRequested:
		return "REQUESTED"
	case FlowAwaitingUserAction:
		return "AWAITING_USER_ACTION"
	case FlowTerminal:
		return "TERMINAL"
	default:
		return fmt.Sprintf("FlowState(%d)", int(s))
	}
}

// allowed lists the legal transitions. Nothing leaves FlowTerminal.
var allowed = map[FlowState][]FlowState{
	FlowIdle:               {FlowRequested},
	FlowRequested:          {FlowAwaitingUserAction, FlowTerminal},
	FlowAwaitingUserAction: {FlowRequested, FlowTerminal},
}

// CanTransition reports whether from -> to is legal.
func CanTransition(from, to FlowState) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// flow is the per-request state machine. Its mutex serializes the events of
// one request, so a card update is acknowledged before the next event is
// looked at.
type flow struct {
	mu sync.Mutex

	descriptor payment.Descriptor
	started    time.Time

	state   FlowState
	outcome payment.Outcome
	acks    int

	// cancel ends the provider session once the request is terminal.
	cancel context.CancelFunc
}

func newFlow(d payment.Descriptor, now time.Time) *flow {
	return &flow{descriptor: d, started: now, state: FlowIdle}
}

func (f *flow) transition(to FlowState) error {
	if !CanTransition(f.state, to) {
		return fmt.Errorf("coordinator: request %s cannot go from %s to %s", f.descriptor.RequestID(), f.state, to)
	}
	f.state = to
	return nil
}

// FlowInfo is a read-only view of a request's progress.
type FlowInfo struct {
	RequestID string
	Provider  payment.Provider
	State     FlowState
	Acks      int
	Outcome   payment.Outcome
}

func (f *flow) info() FlowInfo {
	return FlowInfo{
		RequestID: f.descriptor.RequestID(),
		Provider:  f.descriptor.Provider(),
		State:     f.state,
		Acks:      f.acks,
		Outcome:   f.outcome,
	}
}
