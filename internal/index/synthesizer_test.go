package index

import (
	"math"
	"testing"
	"time"

	"quant_go/internal/domain"
)

func memberContract(symbol string) domain.Contract {
	return domain.Contract{
		UnifiedSymbol: domain.UnifiedSymbolOf(symbol, "SHFE", domain.ProductFutures),
		Symbol:        symbol,
		Name:          "rebar",
		Exchange:      "SHFE",
		ProductClass:  domain.ProductFutures,
		GatewayID:     "simGateway",
		PriceTick:     1,
		Multiplier:    10,
	}
}

func memberTick(c domain.Contract, last float64, openInterest float64) domain.Tick {
	return domain.Tick{
		UnifiedSymbol: c.UnifiedSymbol,
		GatewayID:     c.GatewayID,
		TradingDay:    "20260828",
		ActionDay:     "20260828",
		ActionTime:    "10:30:00",
		LastPrice:     last,
		HighPrice:     last,
		LowPrice:      last,
		OpenPrice:     last,
		OpenInterest:  openInterest,
		Volume:        100,
		Turnover:      last * 100,
	}
}

// newTestSynthesizer pins the clock so throttle behavior is deterministic.
func newTestSynthesizer(t *testing.T, handler TickHandler) (*Synthesizer, *time.Time) {
	t.Helper()
	members := []domain.Contract{memberContract("rb2210"), memberContract("rb2301")}
	s, err := NewSynthesizer(members, handler, nil)
	if err != nil {
		t.Fatalf("NewSynthesizer failed: %v", err)
	}
	clock := time.Date(2026, 8, 28, 10, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	s.lastEmit = clock
	return s, &clock
}

func TestEmptyBasketRejected(t *testing.T) {
	_, err := NewSynthesizer(nil, func(domain.Tick) {}, nil)
	if err == nil {
		t.Fatal("expected error for empty basket")
	}
}

func TestCompositeIdentity(t *testing.T) {
	s, _ := newTestSynthesizer(t, func(domain.Tick) {})

	c := s.Contract()
	if c.Symbol != "rb"+IndexSuffix {
		t.Errorf("expected symbol rb%s, got %s", IndexSuffix, c.Symbol)
	}
	if c.ProductClass != domain.ProductIndex {
		t.Errorf("expected INDEX product class, got %s", c.ProductClass)
	}
	if c.Exchange != "SHFE" || c.GatewayID != "simGateway" {
		t.Errorf("composite identity not derived from representative member: %+v", c)
	}
}

func TestOpenInterestWeightedAggregation(t *testing.T) {
	var emitted []domain.Tick
	s, clock := newTestSynthesizer(t, func(tick domain.Tick) {
		emitted = append(emitted, tick)
	})

	a := memberContract("rb2210")
	b := memberContract("rb2301")
	s.UpdateByTick(memberTick(a, 2000, 100))

	// Past the throttle boundary the next tick triggers aggregation.
	*clock = clock.Add(301 * time.Millisecond)
	s.UpdateByTick(memberTick(b, 2010, 300))

	if len(emitted) != 1 {
		t.Fatalf("expected 1 emission, got %d", len(emitted))
	}
	// weights 0.25/0.75 -> raw 2007.5 -> rounded half-up to tick 1 = 2008
	if emitted[0].LastPrice != 2008 {
		t.Errorf("expected weighted last 2008, got %v", emitted[0].LastPrice)
	}
	if emitted[0].OpenInterest != 400 {
		t.Errorf("expected total open interest 400, got %v", emitted[0].OpenInterest)
	}
	if emitted[0].Volume != 200 {
		t.Errorf("expected summed volume 200, got %d", emitted[0].Volume)
	}

	var weightSum float64
	for _, w := range s.weights {
		if w < 0 || w > 1 {
			t.Errorf("weight out of [0,1]: %v", w)
		}
		weightSum += w
	}
	if math.Abs(weightSum-1) > 1e-9 {
		t.Errorf("weights should sum to 1, got %v", weightSum)
	}
}

func TestZeroOpenInterestDoesNotCrash(t *testing.T) {
	var emitted []domain.Tick
	s, clock := newTestSynthesizer(t, func(tick domain.Tick) {
		emitted = append(emitted, tick)
	})

	*clock = clock.Add(301 * time.Millisecond)
	s.UpdateByTick(memberTick(memberContract("rb2210"), 2000, 0))

	if len(emitted) != 1 {
		t.Fatalf("expected 1 emission, got %d", len(emitted))
	}
	for _, w := range s.weights {
		if w != 0 {
			t.Errorf("expected zero weight with zero total open interest, got %v", w)
		}
	}
}

func TestEmissionCadenceThrottled(t *testing.T) {
	count := 0
	s, clock := newTestSynthesizer(t, func(domain.Tick) { count++ })

	a := memberContract("rb2210")
	// A burst of ticks 10ms apart: only the crossings of the 300ms boundary emit.
	for i := 0; i < 100; i++ {
		*clock = clock.Add(10 * time.Millisecond)
		s.UpdateByTick(memberTick(a, 2000+float64(i), 100))
	}

	// 1000ms of ticks after the first 300ms window: at most one per 300ms.
	if count > 3 {
		t.Errorf("expected at most 3 emissions over 1s, got %d", count)
	}
	if count == 0 {
		t.Error("expected at least one emission past the throttle interval")
	}
}

func TestNoEmissionInsideInterval(t *testing.T) {
	count := 0
	s, clock := newTestSynthesizer(t, func(domain.Tick) { count++ })

	a := memberContract("rb2210")
	*clock = clock.Add(100 * time.Millisecond)
	s.UpdateByTick(memberTick(a, 2000, 100))
	*clock = clock.Add(100 * time.Millisecond)
	s.UpdateByTick(memberTick(a, 2001, 100))

	if count != 0 {
		t.Errorf("expected no emission inside throttle interval, got %d", count)
	}
}

func TestRoundByPriceTick(t *testing.T) {
	cases := []struct {
		price, tick, want float64
	}{
		{2007.5, 1, 2008},   // tie rounds up to next tick
		{2007.49, 1, 2007},  // below midpoint rounds down
		{2008, 1, 2008},     // aligned price unchanged
		{2007.6, 0.2, 2007.6}, // aligned on fractional tick unchanged
		{2007.7, 0.5, 2007.5},
		{2007.75, 0.5, 2008},
		{0, 1, 0},
		{123.45, 0, 123.45}, // zero tick: passthrough
	}
	for _, c := range cases {
		got := RoundByPriceTick(c.price, c.tick)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("RoundByPriceTick(%v, %v): expected %v, got %v", c.price, c.tick, c.want, got)
		}
	}
}

func TestRoundByPriceTickNegativePrices(t *testing.T) {
	cases := []struct {
		price, tick, want float64
	}{
		{-2007.5, 1, -2008},  // tie rounds away from zero
		{-2007.49, 1, -2007}, // below midpoint rounds toward zero
		{-2008, 1, -2008},    // aligned price unchanged
		{-3.25, 0.5, -3.5},
		{-3.2, 0.5, -3},
	}
	for _, c := range cases {
		got := RoundByPriceTick(c.price, c.tick)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("RoundByPriceTick(%v, %v): expected %v, got %v", c.price, c.tick, c.want, got)
		}
	}
}

func TestRoundingIdempotent(t *testing.T) {
	for _, tick := range []float64{1, 0.5, 0.2, 5} {
		price := 2000.0
		once := RoundByPriceTick(price+0.37, tick)
		twice := RoundByPriceTick(once, tick)
		if once != twice {
			t.Errorf("rounding not idempotent for tick %v: %v != %v", tick, once, twice)
		}
	}
}
