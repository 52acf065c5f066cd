package engine

import (
	"quant_go/internal/domain"
)

// BarGenerator folds the tick stream of one instrument into 1-minute
// bars. A bar is finalized when the first tick of the next minute
// arrives, so the caller gets it before processing that tick further.
type BarGenerator struct {
	unifiedSymbol string
	current       *domain.Bar
	minute        int64 // ActionTimestamp / 60000 of the open bar
	volumeAtOpen  int64
}

// NewBarGenerator creates a generator for one instrument.
func NewBarGenerator(unifiedSymbol string) *BarGenerator {
	return &BarGenerator{unifiedSymbol: unifiedSymbol}
}

// OnTick folds one tick in. When the tick opens a new minute the finished
// bar is returned with ok=true.
func (g *BarGenerator) OnTick(tick domain.Tick) (domain.Bar, bool) {
	if tick.UnifiedSymbol != g.unifiedSymbol {
		return domain.Bar{}, false
	}
	minute := tick.ActionTimestamp / 60_000

	var finished domain.Bar
	var ok bool
	if g.current != nil && minute != g.minute {
		finished = *g.current
		ok = true
		g.current = nil
	}

	if g.current == nil {
		g.current = &domain.Bar{
			UnifiedSymbol: tick.UnifiedSymbol,
			GatewayID:     tick.GatewayID,
			OpenPrice:     tick.LastPrice,
			HighPrice:     tick.LastPrice,
			LowPrice:      tick.LastPrice,
		}
		g.minute = minute
		g.volumeAtOpen = tick.Volume - tick.VolumeDelta
	}

	bar := g.current
	bar.TradingDay = tick.TradingDay
	bar.ActionDay = tick.ActionDay
	bar.ActionTime = tick.ActionTime
	// Stamp the bar at its minute boundary, not the last tick's instant.
	bar.ActionTimestamp = minute * 60_000
	bar.ClosePrice = tick.LastPrice
	bar.HighPrice = max(bar.HighPrice, tick.LastPrice)
	bar.LowPrice = min(bar.LowPrice, tick.LastPrice)
	bar.Volume = tick.Volume - g.volumeAtOpen
	bar.OpenInterest = tick.OpenInterest
	bar.OpenInterestDelta += tick.OpenInterestDelta

	return finished, ok
}

// Flush returns the open bar, if any, and resets the generator. Used at
// session end when no next-minute tick will arrive.
func (g *BarGenerator) Flush() (domain.Bar, bool) {
	if g.current == nil {
		return domain.Bar{}, false
	}
	bar := *g.current
	g.current = nil
	return bar, true
}
