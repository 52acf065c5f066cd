// Package engine runs the single-threaded dispatch loop that serializes
// every tick, bar, order ack and trade fill before they reach the module
// runtimes. One goroutine owns the loop, which is what guarantees the
// per-(module, instrument) ordering the runtimes rely on.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"quant_go/internal/domain"
	"quant_go/internal/event"
	"quant_go/internal/module"
)

const defaultInboxSize = 4096

// TickSink receives every tick before the module runtimes do. Index
// synthesizers and simulated accounts plug in here.
type TickSink interface {
	OnTick(tick domain.Tick)
}

// Dispatcher is the core single-threaded event processor.
type Dispatcher struct {
	inbox  chan event.Event
	logger *slog.Logger

	sinks   []TickSink
	hubs    []*module.Hub
	bargens map[string]*BarGenerator
}

// NewDispatcher creates a dispatcher with the given inbox capacity.
func NewDispatcher(inboxSize int, logger *slog.Logger) *Dispatcher {
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		inbox:   make(chan event.Event, inboxSize),
		logger:  logger,
		bargens: make(map[string]*BarGenerator),
	}
}

// AddTickSink registers a pre-module tick consumer. Not safe once Run
// has started.
func (d *Dispatcher) AddTickSink(sink TickSink) {
	d.sinks = append(d.sinks, sink)
}

// AddHub registers a module runtime and creates bar generators for its
// bound instruments. Not safe once Run has started.
func (d *Dispatcher) AddHub(h *module.Hub) {
	d.hubs = append(d.hubs, h)
}

// TrackBars enables 1-minute bar generation for an instrument.
func (d *Dispatcher) TrackBars(unifiedSymbol string) {
	if _, ok := d.bargens[unifiedSymbol]; !ok {
		d.bargens[unifiedSymbol] = NewBarGenerator(unifiedSymbol)
	}
}

// Inbox returns the event channel. External workers send events here.
func (d *Dispatcher) Inbox() chan<- event.Event {
	return d.inbox
}

// PostTick queues a tick for dispatch.
func (d *Dispatcher) PostTick(tick domain.Tick) {
	ev := event.AcquireTickEvent()
	ev.Tick = tick
	d.inbox <- ev
}

// PostBar queues an externally sourced base bar (e.g. history replay).
func (d *Dispatcher) PostBar(bar domain.Bar) {
	ev := event.AcquireBarEvent()
	ev.Bar = bar
	d.inbox <- ev
}

// PostOrder queues an order ack.
func (d *Dispatcher) PostOrder(ack domain.OrderAck) {
	ev := event.AcquireOrderEvent()
	ev.Ack = ack
	d.inbox <- ev
}

// PostTrade queues an execution fill.
func (d *Dispatcher) PostTrade(trade domain.Trade) {
	ev := event.AcquireTradeEvent()
	ev.Trade = trade
	d.inbox <- ev
}

// Run starts the main event loop. This MUST be run in a single goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.Info("dispatcher started")

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatcher panic", slog.Any("panic", r))
			d.DumpState("panic_dump.json")
			panic(fmt.Sprintf("halted: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping")
			return
		case ev := <-d.inbox:
			d.processEvent(ev)
		}
	}
}

func (d *Dispatcher) processEvent(ev event.Event) {
	switch e := ev.(type) {
	case *event.TickEvent:
		d.handleTick(e.Tick)
		event.ReleaseTickEvent(e)
	case *event.BarEvent:
		d.handleBar(e.Bar)
		event.ReleaseBarEvent(e)
	case *event.OrderEvent:
		for _, h := range d.hubs {
			h.OnOrder(e.Ack)
		}
		event.ReleaseOrderEvent(e)
	case *event.TradeEvent:
		for _, h := range d.hubs {
			h.OnTrade(e.Trade)
		}
		event.ReleaseTradeEvent(e)
	default:
		d.logger.Warn("unknown event kind", slog.Int("kind", int(ev.GetKind())))
	}
}

func (d *Dispatcher) handleTick(tick domain.Tick) {
	// Sinks run first: a synthesizer may post its composite tick, an
	// account may fill a resting order, both before strategies see it.
	for _, sink := range d.sinks {
		sink.OnTick(tick)
	}

	if gen, ok := d.bargens[tick.UnifiedSymbol]; ok {
		if bar, done := gen.OnTick(tick); done {
			d.handleBar(bar)
		}
	}

	for _, h := range d.hubs {
		if h.IsBound(tick.UnifiedSymbol) {
			h.OnTick(tick)
		}
	}
}

func (d *Dispatcher) handleBar(bar domain.Bar) {
	for _, h := range d.hubs {
		if h.IsBound(bar.UnifiedSymbol) {
			h.OnBar(bar)
		}
	}
}

// FlushBars finalizes any open bars, e.g. at session end.
func (d *Dispatcher) FlushBars() {
	for _, gen := range d.bargens {
		if bar, ok := gen.Flush(); ok {
			d.handleBar(bar)
		}
	}
}

// DumpState writes every module's runtime snapshot to a file
// (for post-mortem).
func (d *Dispatcher) DumpState(filename string) {
	d.logger.Info("dumping runtime state", slog.String("file", filename))

	snapshots := make(map[string]module.RuntimeDescription, len(d.hubs))
	for _, h := range d.hubs {
		snapshots[h.Name()] = h.RuntimeDescription(false)
	}

	b, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		d.logger.Error("failed to marshal state", slog.Any("error", err))
		return
	}

	if err := os.WriteFile(filename, b, 0644); err != nil {
		d.logger.Error("failed to write state dump", slog.Any("error", err))
	}
}
