package engine

import (
	"testing"

	"quant_go/internal/domain"
)

const barSymbol = "rb2510@SHFE@FUTURES"

func genTick(tsMillis int64, last float64, volume int64) domain.Tick {
	return domain.Tick{
		UnifiedSymbol:   barSymbol,
		TradingDay:      "20250901",
		ActionTimestamp: tsMillis,
		LastPrice:       last,
		Volume:          volume,
		OpenInterest:    1000,
	}
}

func TestBarGenerator_FinalizesOnMinuteRoll(t *testing.T) {
	g := NewBarGenerator(barSymbol)

	base := int64(1756693800000) // a minute boundary
	if _, ok := g.OnTick(genTick(base, 3000, 100)); ok {
		t.Fatal("first tick must not finish a bar")
	}
	if _, ok := g.OnTick(genTick(base+20_000, 3010, 110)); ok {
		t.Fatal("same-minute tick must not finish a bar")
	}
	if _, ok := g.OnTick(genTick(base+40_000, 2995, 130)); ok {
		t.Fatal("same-minute tick must not finish a bar")
	}

	bar, ok := g.OnTick(genTick(base+60_000, 3001, 140))
	if !ok {
		t.Fatal("next-minute tick must finish the bar")
	}
	if bar.OpenPrice != 3000 || bar.ClosePrice != 2995 {
		t.Errorf("open/close mismatch: %+v", bar)
	}
	if bar.HighPrice != 3010 || bar.LowPrice != 2995 {
		t.Errorf("high/low mismatch: %+v", bar)
	}
	if bar.ActionTimestamp != base {
		t.Errorf("expected bar stamped at minute boundary, got %d", bar.ActionTimestamp)
	}
	if bar.Volume != 130-100 {
		t.Errorf("expected intraminute volume 30, got %d", bar.Volume)
	}
}

func TestBarGenerator_IgnoresForeignSymbols(t *testing.T) {
	g := NewBarGenerator(barSymbol)
	tick := genTick(1756693800000, 3000, 1)
	tick.UnifiedSymbol = "hc2510@SHFE@FUTURES"
	if _, ok := g.OnTick(tick); ok {
		t.Error("foreign symbol must be ignored")
	}
	if _, ok := g.Flush(); ok {
		t.Error("no bar should be open")
	}
}

func TestBarGenerator_FlushReturnsOpenBar(t *testing.T) {
	g := NewBarGenerator(barSymbol)
	g.OnTick(genTick(1756693800000, 3000, 100))

	bar, ok := g.Flush()
	if !ok {
		t.Fatal("expected an open bar")
	}
	if bar.ClosePrice != 3000 {
		t.Errorf("expected close 3000, got %v", bar.ClosePrice)
	}
	if _, ok := g.Flush(); ok {
		t.Error("second flush must be empty")
	}
}
