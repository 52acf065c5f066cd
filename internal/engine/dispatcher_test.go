package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/event"
)

type countingSink struct {
	mu    sync.Mutex
	ticks []domain.Tick
}

func (s *countingSink) OnTick(tick domain.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, tick)
}

func (s *countingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func dispatchTick(d *Dispatcher, tick domain.Tick) {
	ev := event.AcquireTickEvent()
	ev.Tick = tick
	d.processEvent(ev)
}

func TestDispatcherRoutesTicksToSinks(t *testing.T) {
	d := NewDispatcher(16, nil)
	sink := &countingSink{}
	d.AddTickSink(sink)

	dispatchTick(d, genTick(1756693800000, 3000, 1))
	dispatchTick(d, genTick(1756693801000, 3001, 2))

	if sink.count() != 2 {
		t.Fatalf("expected 2 ticks, got %d", sink.count())
	}
	if sink.ticks[1].LastPrice != 3001 {
		t.Errorf("expected ordered delivery, got %+v", sink.ticks)
	}
}

func TestDispatcherGeneratesBarsFromTrackedSymbols(t *testing.T) {
	d := NewDispatcher(16, nil)
	d.TrackBars(barSymbol)

	base := int64(1756693800000)
	dispatchTick(d, genTick(base, 3000, 100))
	dispatchTick(d, genTick(base+61_000, 3001, 110))

	// The minute roll finalized one bar; with no hubs registered nothing
	// consumed it, but the generator must now hold only the new minute.
	gen := d.bargens[barSymbol]
	bar, ok := gen.Flush()
	if !ok {
		t.Fatal("expected the new minute's bar open")
	}
	if bar.OpenPrice != 3001 {
		t.Errorf("expected new bar opened at 3001, got %+v", bar)
	}
}

func TestDispatcherRunDrainsInbox(t *testing.T) {
	d := NewDispatcher(16, nil)
	sink := &countingSink{}
	d.AddTickSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	d.PostTick(genTick(1756693800000, 3000, 1))
	d.PostTick(genTick(1756693801000, 3001, 2))

	deadline := time.After(time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("timed out, got %d ticks", sink.count())
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	<-done
}
