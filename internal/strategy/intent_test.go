package strategy

import (
	"log/slog"
	"testing"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/indicator"
)

// fakeContext scripts the hub surface for intent tests.
type fakeContext struct {
	submitOK  bool
	submitted []int // volumes requested
	nextID    string
	timedOut  bool
	cancelled []string
}

func (f *fakeContext) Contract(string) (domain.Contract, error) { return domain.Contract{}, nil }

func (f *fakeContext) SubmitOrder(_ domain.Contract, _ domain.SignalOperation, _ domain.PriceType, volume int, _ float64) (string, bool) {
	if !f.submitOK {
		return "", false
	}
	f.submitted = append(f.submitted, volume)
	return f.nextID, true
}

func (f *fakeContext) SubmitIntent(*TradeIntent) {}

func (f *fakeContext) RegisterIndicator(indicator.Indicator) error { return nil }

func (f *fakeContext) CancelOrder(id string) { f.cancelled = append(f.cancelled, id) }

func (f *fakeContext) IsOrderWaitTimeout(string, time.Duration) bool { return f.timedOut }

func (f *fakeContext) DefaultVolume() int { return 1 }

func (f *fakeContext) Disable() {}

func (f *fakeContext) Logger() *slog.Logger { return slog.Default() }

func rbTick() domain.Tick {
	return domain.Tick{UnifiedSymbol: "rb2210@SHFE@FUTURES", LastPrice: 2000}
}

func newIntent(ctx Context) *TradeIntent {
	ti := &TradeIntent{
		Contract:  domain.Contract{UnifiedSymbol: "rb2210@SHFE@FUTURES"},
		Operation: domain.BuyOpen,
		PriceType: domain.OppositePrice,
		Volume:    2,
	}
	ti.SetContext(ctx)
	return ti
}

func TestIntentSubmitsOnFirstTick(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)

	ti.OnTick(rbTick())
	if len(ctx.submitted) != 1 || ctx.submitted[0] != 2 {
		t.Fatalf("expected one submission of 2 lots, got %v", ctx.submitted)
	}

	// Outstanding order: further ticks must not resubmit.
	ti.OnTick(rbTick())
	if len(ctx.submitted) != 1 {
		t.Errorf("intent resubmitted while order outstanding")
	}
}

func TestIntentTerminatesWhenDeclined(t *testing.T) {
	ctx := &fakeContext{submitOK: false}
	ti := newIntent(ctx)

	ti.OnTick(rbTick())
	if !ti.HasTerminated() {
		t.Error("declined submission should terminate the intent")
	}
}

func TestIntentTerminatesOnFullFill(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)
	ti.OnTick(rbTick())

	ti.OnTrade(domain.Trade{OriginOrderID: "oid-1", Volume: 2})
	if !ti.HasTerminated() {
		t.Error("full fill should terminate the intent")
	}
}

func TestIntentRepricesRemainderAfterCancel(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)
	ti.OnTick(rbTick())

	// Partial fill, then the order is cancelled (done without full fill).
	ti.OnTrade(domain.Trade{OriginOrderID: "oid-1", Volume: 1})
	ti.OnOrder(domain.OrderAck{OriginOrderID: "oid-1", Valid: true, Done: true})
	if ti.HasTerminated() {
		t.Fatal("partially filled intent should stay alive")
	}

	ctx.nextID = "oid-2"
	ti.OnTick(rbTick())
	if len(ctx.submitted) != 2 || ctx.submitted[1] != 1 {
		t.Fatalf("expected re-submission of remaining 1 lot, got %v", ctx.submitted)
	}
}

func TestIntentMatchesLateFillAfterDoneAck(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)
	ti.OnTick(rbTick())

	// Terminal ack first, fill afterwards: the fill must still count.
	ti.OnOrder(domain.OrderAck{OriginOrderID: "oid-1", Valid: true, Done: true})
	ti.OnTrade(domain.Trade{OriginOrderID: "oid-1", Volume: 2})
	if !ti.HasTerminated() {
		t.Error("late fill after terminal ack should complete the intent")
	}
}

func TestIntentCancelsOnTimeout(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)
	ti.OnTick(rbTick())

	ctx.timedOut = true
	ti.OnTick(rbTick())
	if len(ctx.cancelled) != 1 || ctx.cancelled[0] != "oid-1" {
		t.Errorf("expected cancel of oid-1 on timeout, got %v", ctx.cancelled)
	}
}

func TestIntentTerminatesOnInvalidOrder(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)
	ti.OnTick(rbTick())

	ti.OnOrder(domain.OrderAck{OriginOrderID: "oid-1", Valid: false, Done: true})
	if !ti.HasTerminated() {
		t.Error("invalid order should terminate the intent")
	}
}

func TestIntentIgnoresForeignEvents(t *testing.T) {
	ctx := &fakeContext{submitOK: true, nextID: "oid-1"}
	ti := newIntent(ctx)
	ti.OnTick(domain.Tick{UnifiedSymbol: "cu2210@SHFE@FUTURES"})
	if len(ctx.submitted) != 0 {
		t.Error("tick for another instrument should not trigger submission")
	}

	ti.OnTick(rbTick())
	ti.OnTrade(domain.Trade{OriginOrderID: "other", Volume: 2})
	if ti.HasTerminated() {
		t.Error("fill for another order should not affect the intent")
	}
}
