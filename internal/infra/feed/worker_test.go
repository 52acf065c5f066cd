package feed

import (
	"encoding/json"
	"testing"

	"quant_go/internal/domain"
)

func TestTickFrameToTick(t *testing.T) {
	frame := tickFrame{
		Type:            "tick",
		UnifiedSymbol:   "rb2510@SHFE@FUTURES",
		GatewayID:       "ctpSim",
		TradingDay:      "20250901",
		ActionDay:       "20250901",
		ActionTime:      "10:30:00",
		ActionTimestamp: 1756693800000,
		LastPrice:       3005,
		HighPrice:       3010,
		LowPrice:        2990,
		OpenPrice:       3000,
		Volume:          12345,
		VolumeDelta:     5,
		OpenInterest:    98765,
		Turnover:        1.2e9,
		AskPrices:       []float64{3006, 3007},
		AskVolumes:      []int64{10, 20},
		BidPrices:       []float64{3004},
		BidVolumes:      []int64{15},
	}

	tick := frame.toTick()

	if tick.UnifiedSymbol != frame.UnifiedSymbol {
		t.Errorf("symbol mismatch: %s", tick.UnifiedSymbol)
	}
	if tick.LastPrice != 3005 || tick.Volume != 12345 {
		t.Errorf("price/volume mismatch: %+v", tick)
	}
	if tick.AskPrices[0] != 3006 || tick.AskPrices[1] != 3007 {
		t.Errorf("ask ladder mismatch: %v", tick.AskPrices)
	}
	// Short wire ladders leave the remaining levels zero.
	if tick.AskPrices[2] != 0 || tick.BidPrices[1] != 0 {
		t.Errorf("expected zero padding, got %v / %v", tick.AskPrices, tick.BidPrices)
	}
	if tick.BidVolumes[0] != 15 {
		t.Errorf("bid volume mismatch: %v", tick.BidVolumes)
	}
}

func TestTickFrameOversizedLadderTruncated(t *testing.T) {
	frame := tickFrame{
		AskPrices: []float64{1, 2, 3, 4, 5, 6, 7},
	}
	tick := frame.toTick()
	if tick.AskPrices[domain.DepthLevels-1] != 5 {
		t.Errorf("expected 5 at last level, got %v", tick.AskPrices)
	}
}

func TestHandleMessageForwardsTicks(t *testing.T) {
	ch := make(chan domain.Tick, 1)
	w := NewWorker("ws://localhost", "", []string{"rb2510@SHFE@FUTURES"}, ch, nil)

	msg, _ := json.Marshal(tickFrame{
		Type:          "tick",
		UnifiedSymbol: "rb2510@SHFE@FUTURES",
		LastPrice:     3000,
	})
	w.handleMessage(msg)

	select {
	case tick := <-ch:
		if tick.LastPrice != 3000 {
			t.Errorf("expected last 3000, got %v", tick.LastPrice)
		}
	default:
		t.Fatal("expected a tick on the channel")
	}
}

func TestHandleMessageIgnoresOtherFrames(t *testing.T) {
	ch := make(chan domain.Tick, 1)
	w := NewWorker("ws://localhost", "", nil, ch, nil)

	w.handleMessage([]byte(`{"type":"pong"}`))
	w.handleMessage([]byte(`not json`))

	select {
	case tick := <-ch:
		t.Fatalf("expected no ticks, got %+v", tick)
	default:
	}
}

func TestHandleMessageDropsWhenChannelFull(t *testing.T) {
	ch := make(chan domain.Tick, 1)
	w := NewWorker("ws://localhost", "", nil, ch, nil)

	msg, _ := json.Marshal(tickFrame{Type: "tick", UnifiedSymbol: "a", LastPrice: 1})
	w.handleMessage(msg)
	msg2, _ := json.Marshal(tickFrame{Type: "tick", UnifiedSymbol: "b", LastPrice: 2})
	w.handleMessage(msg2) // dropped, channel full

	tick := <-ch
	if tick.UnifiedSymbol != "a" {
		t.Errorf("expected first tick kept, got %s", tick.UnifiedSymbol)
	}
	select {
	case tick := <-ch:
		t.Fatalf("expected second tick dropped, got %+v", tick)
	default:
	}
}

func TestCalculateBackoffCapped(t *testing.T) {
	w := NewWorker("ws://localhost", "", nil, nil, nil)

	if w.calculateBackoff(0) != feedBaseDelay {
		t.Errorf("expected base delay, got %v", w.calculateBackoff(0))
	}
	if w.calculateBackoff(1) != 2*feedBaseDelay {
		t.Errorf("expected doubled delay, got %v", w.calculateBackoff(1))
	}
	if w.calculateBackoff(20) != feedMaxDelay {
		t.Errorf("expected capped delay, got %v", w.calculateBackoff(20))
	}
}
