package strategy

import (
	"log/slog"
	"time"

	"quant_go/internal/domain"
)

// DefaultOrderTimeout bounds how long an intent waits on an outstanding
// order before cancelling and re-pricing.
const DefaultOrderTimeout = 5 * time.Second

// TradeIntent is an asynchronous multi-step order-placement protocol scoped
// to one instrument: submit on the next tick, cancel and re-price on
// timeout, accumulate fills, terminate when the target volume is done or
// the submission is declined. The hub keeps at most one live intent per
// instrument and serializes all calls into it.
type TradeIntent struct {
	Contract  domain.Contract
	Operation domain.SignalOperation
	PriceType domain.PriceType
	Volume    int
	Price     float64 // signal price, used by SignalPrice price type
	Timeout   time.Duration

	ctx           Context
	submittedID   string // most recent origin order id; kept after the order is done so late fills still match
	outstanding   bool
	pendingVolume int // remaining lots not yet filled
	initialized   bool
	terminated    bool
}

// SetContext binds the hub before the intent receives events.
func (ti *TradeIntent) SetContext(ctx Context) {
	ti.ctx = ctx
	if ti.Timeout <= 0 {
		ti.Timeout = DefaultOrderTimeout
	}
	if !ti.initialized {
		ti.pendingVolume = ti.Volume
		ti.initialized = true
	}
}

// HasTerminated reports whether the hub should drop this intent.
func (ti *TradeIntent) HasTerminated() bool { return ti.terminated }

// OnTick drives the protocol forward: submit when no order is outstanding,
// cancel when the outstanding order timed out.
func (ti *TradeIntent) OnTick(tick domain.Tick) {
	if ti.terminated || ti.ctx == nil || tick.UnifiedSymbol != ti.Contract.UnifiedSymbol {
		return
	}
	if !ti.outstanding {
		if ti.pendingVolume <= 0 {
			ti.terminated = true
			return
		}
		id, ok := ti.ctx.SubmitOrder(ti.Contract, ti.Operation, ti.PriceType, ti.pendingVolume, ti.Price)
		if !ok {
			ti.logger().Warn("trade intent declined, terminating",
				slog.String("symbol", ti.Contract.UnifiedSymbol),
				slog.String("operation", string(ti.Operation)))
			ti.terminated = true
			return
		}
		ti.submittedID = id
		ti.outstanding = true
		return
	}
	if ti.ctx.IsOrderWaitTimeout(ti.submittedID, ti.Timeout) {
		ti.logger().Info("order wait timeout, cancelling for re-price",
			slog.String("origin_order_id", ti.submittedID))
		ti.ctx.CancelOrder(ti.submittedID)
	}
}

// OnOrder tracks the outstanding order's fate. An invalid order terminates
// the intent; a terminal order clears the outstanding flag so the next
// tick re-prices any remainder.
func (ti *TradeIntent) OnOrder(ack domain.OrderAck) {
	if ti.terminated || ack.OriginOrderID != ti.submittedID || ti.submittedID == "" {
		return
	}
	if !ack.Valid {
		ti.logger().Warn("order invalid, terminating intent",
			slog.String("origin_order_id", ack.OriginOrderID),
			slog.String("status", ack.StatusMsg))
		ti.terminated = true
		return
	}
	if ack.Done {
		ti.outstanding = false
	}
}

// OnTrade accumulates fills toward the target volume. Fills are matched by
// origin order id, including late fills arriving after the terminal ack.
func (ti *TradeIntent) OnTrade(trade domain.Trade) {
	if ti.terminated || trade.OriginOrderID != ti.submittedID || ti.submittedID == "" {
		return
	}
	ti.pendingVolume -= trade.Volume
	if ti.pendingVolume <= 0 {
		ti.terminated = true
	}
}

func (ti *TradeIntent) logger() *slog.Logger {
	if ti.ctx != nil && ti.ctx.Logger() != nil {
		return ti.ctx.Logger()
	}
	return slog.Default()
}
