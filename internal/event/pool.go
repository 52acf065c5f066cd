package event

import (
	"sync"

	"quant_go/internal/domain"
)

// Event pools reduce GC pressure in the tick hotpath.
//
// Usage:
//
//	ev := AcquireTickEvent()
//	ev.Tick = tick
//	// ... dispatch ...
//	ReleaseTickEvent(ev) // Return to pool after processing
var tickPool = sync.Pool{
	New: func() interface{} {
		return &TickEvent{}
	},
}

// AcquireTickEvent gets a TickEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireTickEvent() *TickEvent {
	return tickPool.Get().(*TickEvent)
}

// ReleaseTickEvent returns a TickEvent to the pool.
func ReleaseTickEvent(ev *TickEvent) {
	if ev == nil {
		return
	}
	ev.Tick = domain.Tick{}
	tickPool.Put(ev)
}

var barPool = sync.Pool{
	New: func() interface{} {
		return &BarEvent{}
	},
}

// AcquireBarEvent gets a BarEvent from the pool.
func AcquireBarEvent() *BarEvent {
	return barPool.Get().(*BarEvent)
}

// ReleaseBarEvent returns a BarEvent to the pool.
func ReleaseBarEvent(ev *BarEvent) {
	if ev == nil {
		return
	}
	ev.Bar = domain.Bar{}
	barPool.Put(ev)
}

var orderPool = sync.Pool{
	New: func() interface{} {
		return &OrderEvent{}
	},
}

// AcquireOrderEvent gets an OrderEvent from the pool.
func AcquireOrderEvent() *OrderEvent {
	return orderPool.Get().(*OrderEvent)
}

// ReleaseOrderEvent returns an OrderEvent to the pool.
func ReleaseOrderEvent(ev *OrderEvent) {
	if ev == nil {
		return
	}
	ev.Ack = domain.OrderAck{}
	orderPool.Put(ev)
}

var tradePool = sync.Pool{
	New: func() interface{} {
		return &TradeEvent{}
	},
}

// AcquireTradeEvent gets a TradeEvent from the pool.
func AcquireTradeEvent() *TradeEvent {
	return tradePool.Get().(*TradeEvent)
}

// ReleaseTradeEvent returns a TradeEvent to the pool.
func ReleaseTradeEvent(ev *TradeEvent) {
	if ev == nil {
		return
	}
	ev.Trade = domain.Trade{}
	tradePool.Put(ev)
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 1000

	ticks := make([]*TickEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		ticks = append(ticks, AcquireTickEvent())
	}
	for _, ev := range ticks {
		ReleaseTickEvent(ev)
	}

	bars := make([]*BarEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		bars = append(bars, AcquireBarEvent())
	}
	for _, ev := range bars {
		ReleaseBarEvent(ev)
	}
}
