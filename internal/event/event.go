// Package event defines the pooled event types flowing through the
// engine dispatcher.
package event

import "quant_go/internal/domain"

// Kind discriminates event payloads.
type Kind int

const (
	KindTick Kind = iota
	KindBar
	KindOrder
	KindTrade
)

// Event is one unit of work for the dispatcher loop.
type Event interface {
	GetKind() Kind
}

// TickEvent carries one market tick.
type TickEvent struct {
	Tick domain.Tick
}

func (e *TickEvent) GetKind() Kind { return KindTick }

// BarEvent carries one base (1-minute) bar.
type BarEvent struct {
	Bar domain.Bar
}

func (e *BarEvent) GetKind() Kind { return KindBar }

// OrderEvent carries one order ack.
type OrderEvent struct {
	Ack domain.OrderAck
}

func (e *OrderEvent) GetKind() Kind { return KindOrder }

// TradeEvent carries one execution fill.
type TradeEvent struct {
	Trade domain.Trade
}

func (e *TradeEvent) GetKind() Kind { return KindTrade }
