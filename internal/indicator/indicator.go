// Package indicator defines the indicator model consumed by the module
// event hub: a directed acyclic graph of incrementally-updated values
// sampled from merged bars.
package indicator

import (
	"fmt"

	"quant_go/internal/domain"
)

// PeriodUnit is the sampling period unit of an indicator.
type PeriodUnit string

const (
	PeriodMinute PeriodUnit = "m"
	PeriodHour   PeriodUnit = "h"
	PeriodDay    PeriodUnit = "d"
)

// Value is one computed indicator point.
type Value struct {
	Val       float64 `json:"val"`
	Timestamp int64   `json:"timestamp"`
	// Unstable marks transient warm-up values that should not be plotted
	// unless the indicator is configured to plot every bar.
	Unstable bool `json:"unstable"`
}

// TimeSeriesValue is a buffered (value, timestamp) point.
type TimeSeriesValue struct {
	Value     float64 `json:"value"`
	Timestamp int64   `json:"timestamp"`
}

// Configuration describes one indicator instance.
type Configuration struct {
	Contract    domain.Contract
	Name        string
	NumOfUnits  int // sampling period length, e.g. 5 for a 5-minute SMA
	Period      PeriodUnit
	CacheLength int // bounded value-history length
	Visible     bool
	PlotPerBar  bool
}

// DerivedName is the human-readable name shown alongside charts. Visible
// indicators must derive a unique name per instrument.
func (c Configuration) DerivedName() string {
	return fmt.Sprintf("%s_%d%s", c.Name, c.NumOfUnits, c.Period)
}

// Indicator is one node of the computation graph. Dependencies must form
// an acyclic graph; this is a caller contract, enforced at registration by
// a visited-set guard.
type Indicator interface {
	Configuration() Configuration
	Dependencies() []Indicator
	// Ready reports whether enough history has accumulated to produce
	// stable values.
	Ready() bool
	// Value returns the point at the given offset back from the most
	// recent one; offset 0 is the current value.
	Value(offset int) Value
	// OnBar feeds one merged bar of the indicator's own period.
	OnBar(bar domain.Bar)
}

// ValueUpdateHelper fans hub events into one indicator, dependencies first.
// The hub keeps one helper per registered top-level indicator.
type ValueUpdateHelper struct {
	ind Indicator
}

// NewValueUpdateHelper wraps an indicator for event-driven updates.
func NewValueUpdateHelper(ind Indicator) *ValueUpdateHelper {
	return &ValueUpdateHelper{ind: ind}
}

// Indicator returns the wrapped indicator.
func (h *ValueUpdateHelper) Indicator() Indicator { return h.ind }

// OnTick forwards a tick to indicators that sample tick data.
func (h *ValueUpdateHelper) OnTick(tick domain.Tick) {
	forwardTick(h.ind, tick)
}

// OnMergedBar updates the dependency graph bottom-up with a merged bar.
func (h *ValueUpdateHelper) OnMergedBar(bar domain.Bar) {
	update(h.ind, bar)
}

func update(ind Indicator, bar domain.Bar) {
	for _, dep := range ind.Dependencies() {
		update(dep, bar)
	}
	if ind.Configuration().Contract.UnifiedSymbol != bar.UnifiedSymbol {
		return
	}
	ind.OnBar(bar)
}

// TickAware is implemented by indicators that refine their current value
// from intra-bar ticks.
type TickAware interface {
	OnIndicatorTick(tick domain.Tick)
}

func forwardTick(ind Indicator, tick domain.Tick) {
	for _, dep := range ind.Dependencies() {
		forwardTick(dep, tick)
	}
	if ind.Configuration().Contract.UnifiedSymbol != tick.UnifiedSymbol {
		return
	}
	if ta, ok := ind.(TickAware); ok {
		ta.OnIndicatorTick(tick)
	}
}
