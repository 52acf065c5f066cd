package strategy

import (
	"log/slog"
	"testing"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/indicator"
)

// crossContext records intent submissions from the crossover strategy.
type crossContext struct {
	contract   domain.Contract
	contractOK bool
	intents    []*TradeIntent
	registered []indicator.Indicator
	disabled   bool
}

func (c *crossContext) Contract(string) (domain.Contract, error) {
	if !c.contractOK {
		return domain.Contract{}, domain.ErrUnknownInstrument
	}
	return c.contract, nil
}

func (c *crossContext) SubmitOrder(domain.Contract, domain.SignalOperation, domain.PriceType, int, float64) (string, bool) {
	return "", false
}

func (c *crossContext) SubmitIntent(intent *TradeIntent) { c.intents = append(c.intents, intent) }

func (c *crossContext) RegisterIndicator(ind indicator.Indicator) error {
	c.registered = append(c.registered, ind)
	return nil
}

func (c *crossContext) CancelOrder(string) {}

func (c *crossContext) IsOrderWaitTimeout(string, time.Duration) bool { return false }

func (c *crossContext) DefaultVolume() int { return 2 }

func (c *crossContext) Disable() { c.disabled = true }

func (c *crossContext) Logger() *slog.Logger { return slog.Default() }

func newCross(t *testing.T) (*SMACross, *crossContext) {
	t.Helper()
	strat, err := NewSMACross(SMACrossParams{
		UnifiedSymbol: "rb2510@SHFE@FUTURES",
		FastWindow:    2,
		SlowWindow:    3,
	})
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	ctx := &crossContext{
		contract:   domain.Contract{UnifiedSymbol: "rb2510@SHFE@FUTURES"},
		contractOK: true,
	}
	strat.SetContext(ctx)
	return strat, ctx
}

func crossBar(px float64) domain.Bar {
	return domain.Bar{UnifiedSymbol: "rb2510@SHFE@FUTURES", ClosePrice: px}
}

func TestSMACrossRejectsBadWindows(t *testing.T) {
	if _, err := NewSMACross(SMACrossParams{FastWindow: 0, SlowWindow: 5}); err == nil {
		t.Error("expected error for zero fast window")
	}
	if _, err := NewSMACross(SMACrossParams{FastWindow: 5, SlowWindow: 5}); err == nil {
		t.Error("expected error for slow window not above fast window")
	}
}

func TestSMACrossRegistersChartIndicator(t *testing.T) {
	_, ctx := newCross(t)
	if len(ctx.registered) != 1 {
		t.Fatalf("expected one registered indicator, got %d", len(ctx.registered))
	}
	if name := ctx.registered[0].Configuration().DerivedName(); name != "SMA_2m" {
		t.Errorf("unexpected indicator name %q", name)
	}
}

func TestSMACrossDisablesOnUnknownInstrument(t *testing.T) {
	strat, err := NewSMACross(SMACrossParams{
		UnifiedSymbol: "unknown@SHFE@FUTURES",
		FastWindow:    2,
		SlowWindow:    3,
	})
	if err != nil {
		t.Fatalf("NewSMACross: %v", err)
	}
	ctx := &crossContext{contractOK: false}
	strat.SetContext(ctx)
	if !ctx.disabled {
		t.Error("strategy should disable itself when the instrument is unknown")
	}
}

func TestSMACrossGoldenAndDeathCross(t *testing.T) {
	strat, ctx := newCross(t)

	// Three flat bars fill the slow window and prime the comparison.
	for i := 0; i < 3; i++ {
		strat.OnMergedBar(crossBar(100))
	}
	if len(ctx.intents) != 0 {
		t.Fatalf("no signal expected during warm-up, got %d intents", len(ctx.intents))
	}

	// Fast average overtakes slow: long entry.
	strat.OnMergedBar(crossBar(110))
	if len(ctx.intents) != 1 {
		t.Fatalf("expected long entry after golden cross, got %d intents", len(ctx.intents))
	}
	entry := ctx.intents[0]
	if entry.Operation != domain.BuyOpen || entry.Volume != 2 || entry.PriceType != domain.OppositePrice {
		t.Errorf("unexpected entry intent %+v", entry)
	}

	// Equal averages are not a cross.
	strat.OnMergedBar(crossBar(90))
	if len(ctx.intents) != 1 {
		t.Fatalf("equal averages must not trigger, got %d intents", len(ctx.intents))
	}

	// Fast average drops below slow: exit the long.
	strat.OnMergedBar(crossBar(80))
	if len(ctx.intents) != 2 {
		t.Fatalf("expected exit after death cross, got %d intents", len(ctx.intents))
	}
	if exit := ctx.intents[1]; exit.Operation != domain.SellClose {
		t.Errorf("expected SELL_CLOSE exit, got %v", exit.Operation)
	}

	// Flat again: a second death cross without a position must not sell.
	strat.OnMergedBar(crossBar(120))
	strat.OnMergedBar(crossBar(120))
	strat.OnMergedBar(crossBar(120))
}

func TestSMACrossIgnoresOtherInstruments(t *testing.T) {
	strat, ctx := newCross(t)
	for i := 0; i < 10; i++ {
		strat.OnMergedBar(domain.Bar{UnifiedSymbol: "cu2510@SHFE@FUTURES", ClosePrice: 100})
	}
	if len(ctx.intents) != 0 {
		t.Errorf("bars for other instruments must be ignored, got %d intents", len(ctx.intents))
	}
}
