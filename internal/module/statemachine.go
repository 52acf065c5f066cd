// Package module implements the per-strategy runtime: event routing,
// trade-intent tracking, the order-submission protocol, the account
// ledger, and runtime snapshot assembly.
package module

import (
	"log/slog"
	"sync"

	"quant_go/internal/domain"
)

// State is the module's position in its trading lifecycle.
type State string

const (
	StateEmpty        State = "EMPTY"
	StateHoldingLong  State = "HOLDING_LONG"
	StateHoldingShort State = "HOLDING_SHORT"
	StateHolding      State = "HOLDING" // mixed long and short
	StatePlacingOrder State = "PLACING_ORDER"
	StatePendingOrder State = "PENDING_ORDER"
	StateRetrieving   State = "RETRIEVING" // cancel in flight
)

// IsOrdering reports whether an order is in flight; cancels are only
// accepted in these states.
func (s State) IsOrdering() bool {
	switch s {
	case StatePlacingOrder, StatePendingOrder, StateRetrieving:
		return true
	default:
		return false
	}
}

// StateMachine derives the module state from the order/trade stream and
// the position book, logging each transition.
type StateMachine struct {
	mu     sync.Mutex
	state  State
	logger *slog.Logger
}

// NewStateMachine starts in the empty state.
func NewStateMachine(logger *slog.Logger) *StateMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StateMachine{state: StateEmpty, logger: logger}
}

// State returns the current state.
func (m *StateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnSubmitOrder moves into the placing state.
func (m *StateMachine) OnSubmitOrder() {
	m.transition(StatePlacingOrder)
}

// OnCancelOrder moves into the retrieving state.
func (m *StateMachine) OnCancelOrder() {
	m.transition(StateRetrieving)
}

// OnOrder applies an order ack: a live ack means the order is pending,
// an invalid or terminal ack drops back to the holding state.
func (m *StateMachine) OnOrder(ack domain.OrderAck, longVolume, shortVolume int) {
	if !ack.Valid || ack.Done {
		m.transition(holdingState(longVolume, shortVolume))
		return
	}
	m.transition(StatePendingOrder)
}

// OnPositionChanged re-derives the holding state after a fill.
func (m *StateMachine) OnPositionChanged(longVolume, shortVolume int) {
	m.transition(holdingState(longVolume, shortVolume))
}

func holdingState(longVolume, shortVolume int) State {
	switch {
	case longVolume > 0 && shortVolume > 0:
		return StateHolding
	case longVolume > 0:
		return StateHoldingLong
	case shortVolume > 0:
		return StateHoldingShort
	default:
		return StateEmpty
	}
}

func (m *StateMachine) transition(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()
	if prev != next {
		m.logger.Debug("module state transition",
			slog.String("from", string(prev)),
			slog.String("to", string(next)))
	}
}
