// Package barmerge synthesizes larger-period bars from minute bars and
// fans them out to registered listeners.
package barmerge

import (
	"sync"

	"quant_go/internal/domain"
	"quant_go/internal/indicator"
)

// ListenerRole distinguishes why a listener registered. The same contract
// and period can carry several roles: the strategy itself, the hub's own
// bookkeeping, and indicator updates.
type ListenerRole int

const (
	RoleStrategy ListenerRole = iota
	RoleContext
	RoleIndicator
)

// MergedBarListener receives completed merged bars.
type MergedBarListener interface {
	OnMergedBar(bar domain.Bar)
}

type listenerEntry struct {
	listener MergedBarListener
	role     ListenerRole
}

// merger accumulates numOfUnits base bars for one contract and period.
type merger struct {
	unifiedSymbol string
	numOfUnits    int
	unit          indicator.PeriodUnit
	pending       []domain.Bar
	listeners     []listenerEntry
}

// onBar flushes by role: indicators update first so strategy listeners
// read current values.
func (m *merger) onBar(bar domain.Bar) {
	m.pending = append(m.pending, bar)
	if len(m.pending) < m.numOfUnits && !bar.IsEndOfTradingDay() {
		return
	}
	merged := mergeBars(m.pending)
	m.pending = m.pending[:0]
	for _, role := range []ListenerRole{RoleIndicator, RoleContext, RoleStrategy} {
		for _, e := range m.listeners {
			if e.role == role {
				e.listener.OnMergedBar(merged)
			}
		}
	}
}

// mergeBars folds a run of consecutive bars into one: open of the first,
// close of the last, extremes and summed volume across the run.
func mergeBars(bars []domain.Bar) domain.Bar {
	out := bars[0]
	for _, b := range bars[1:] {
		if b.HighPrice > out.HighPrice {
			out.HighPrice = b.HighPrice
		}
		if b.LowPrice < out.LowPrice {
			out.LowPrice = b.LowPrice
		}
		out.ClosePrice = b.ClosePrice
		out.Volume += b.Volume
		out.OpenInterest = b.OpenInterest
		out.OpenInterestDelta += b.OpenInterestDelta
		out.ActionDay = b.ActionDay
		out.ActionTime = b.ActionTime
		out.ActionTimestamp = b.ActionTimestamp
		out.TradingDay = b.TradingDay
	}
	return out
}

// Registry routes base bars to per-(contract, period) mergers.
type Registry struct {
	mu      sync.Mutex
	mergers map[string][]*merger // unifiedSymbol -> mergers
}

// NewRegistry creates an empty merge registry.
func NewRegistry() *Registry {
	return &Registry{mergers: make(map[string][]*merger)}
}

// AddListener subscribes a listener to merged bars of the given contract
// and period. Registering the same listener and role twice is a no-op.
func (r *Registry) AddListener(c domain.Contract, numOfUnits int, unit indicator.PeriodUnit, l MergedBarListener, role ListenerRole) {
	if numOfUnits <= 0 {
		numOfUnits = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *merger
	for _, m := range r.mergers[c.UnifiedSymbol] {
		if m.numOfUnits == numOfUnits && m.unit == unit {
			target = m
			break
		}
	}
	if target == nil {
		target = &merger{unifiedSymbol: c.UnifiedSymbol, numOfUnits: numOfUnits, unit: unit}
		r.mergers[c.UnifiedSymbol] = append(r.mergers[c.UnifiedSymbol], target)
	}
	for _, e := range target.listeners {
		if e.listener == l && e.role == role {
			return
		}
	}
	target.listeners = append(target.listeners, listenerEntry{listener: l, role: role})
}

// OnBar feeds one base bar into every merger for its symbol.
func (r *Registry) OnBar(bar domain.Bar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.mergers[bar.UnifiedSymbol] {
		m.onBar(bar)
	}
}
