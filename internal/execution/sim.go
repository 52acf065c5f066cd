// Package execution provides the simulated venue account: orders are
// acknowledged immediately and filled against the live tick stream, so
// strategies run unchanged against paper money.
package execution

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"quant_go/internal/domain"
)

// SimAccount is an in-process venue. Market orders fill on submission at
// the latest price; limit orders rest until a tick crosses them. Acks and
// fills are pushed through the bound callbacks, same as a live gateway.
type SimAccount struct {
	id     string
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]domain.SubmitOrderReq
	ticks   map[string]domain.Tick

	onOrder func(domain.OrderAck)
	onTrade func(domain.Trade)

	now func() time.Time
}

// NewSimAccount creates a simulated account with the given gateway id.
func NewSimAccount(id string, logger *slog.Logger) *SimAccount {
	if logger == nil {
		logger = slog.Default()
	}
	return &SimAccount{
		id:      id,
		logger:  logger.With(slog.String("account", id)),
		pending: make(map[string]domain.SubmitOrderReq),
		ticks:   make(map[string]domain.Tick),
		now:     time.Now,
	}
}

// Bind installs the ack and fill callbacks. Must be called before the
// first submission.
func (a *SimAccount) Bind(onOrder func(domain.OrderAck), onTrade func(domain.Trade)) {
	a.onOrder = onOrder
	a.onTrade = onTrade
}

// ID implements module.VenueAccount.
func (a *SimAccount) ID() string { return a.id }

// SubmitOrder implements module.VenueAccount. The order is accepted
// synchronously; market orders also fill synchronously.
func (a *SimAccount) SubmitOrder(req domain.SubmitOrderReq) (string, error) {
	if req.OriginOrderID == "" {
		return "", fmt.Errorf("%w: order without origin id", domain.ErrInvalidState)
	}

	a.mu.Lock()
	tick, hasTick := a.ticks[req.Contract.UnifiedSymbol]
	a.pending[req.OriginOrderID] = req
	a.mu.Unlock()

	a.emitOrder(domain.OrderAck{
		OriginOrderID: req.OriginOrderID,
		Contract:      req.Contract,
		Valid:         true,
		StatusMsg:     "accepted",
	})

	if req.OrderPriceType == domain.OrderPriceMarket {
		if !hasTick {
			a.reject(req, "no market data")
			return req.OriginOrderID, nil
		}
		a.fill(req, marketPrice(tick, req.Direction))
	}
	return req.OriginOrderID, nil
}

// CancelOrder implements module.VenueAccount.
func (a *SimAccount) CancelOrder(req domain.CancelOrderReq) error {
	a.mu.Lock()
	order, ok := a.pending[req.OriginOrderID]
	if ok {
		delete(a.pending, req.OriginOrderID)
	}
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no pending order %s", domain.ErrInvalidState, req.OriginOrderID)
	}

	a.logger.Info("order cancelled", slog.String("origin_order_id", req.OriginOrderID))
	a.emitOrder(domain.OrderAck{
		OriginOrderID: order.OriginOrderID,
		Contract:      order.Contract,
		Valid:         true,
		Done:          true,
		StatusMsg:     "cancelled",
	})
	return nil
}

// OnTick stores the latest price and fills any resting limit order the
// tick crosses.
func (a *SimAccount) OnTick(tick domain.Tick) {
	a.mu.Lock()
	a.ticks[tick.UnifiedSymbol] = tick
	var crossed []domain.SubmitOrderReq
	for id, order := range a.pending {
		if order.Contract.UnifiedSymbol != tick.UnifiedSymbol {
			continue
		}
		if limitCrossed(order, tick) {
			crossed = append(crossed, order)
			delete(a.pending, id)
		}
	}
	a.mu.Unlock()

	for _, order := range crossed {
		a.fillResting(order)
	}
}

// PendingCount reports how many orders are resting.
func (a *SimAccount) PendingCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func limitCrossed(order domain.SubmitOrderReq, tick domain.Tick) bool {
	if order.Direction == domain.DirectionBuy {
		return tick.LastPrice <= order.Price
	}
	return tick.LastPrice >= order.Price
}

func marketPrice(tick domain.Tick, d domain.Direction) float64 {
	if d == domain.DirectionBuy && tick.AskPrices[0] > 0 {
		return tick.AskPrices[0]
	}
	if d == domain.DirectionSell && tick.BidPrices[0] > 0 {
		return tick.BidPrices[0]
	}
	return tick.LastPrice
}

func (a *SimAccount) reject(req domain.SubmitOrderReq, reason string) {
	a.mu.Lock()
	delete(a.pending, req.OriginOrderID)
	a.mu.Unlock()
	a.logger.Warn("order rejected", slog.String("origin_order_id", req.OriginOrderID), slog.String("reason", reason))
	a.emitOrder(domain.OrderAck{
		OriginOrderID: req.OriginOrderID,
		Contract:      req.Contract,
		Valid:         false,
		StatusMsg:     reason,
	})
}

// fillResting completes a resting limit order at its limit price.
func (a *SimAccount) fillResting(order domain.SubmitOrderReq) {
	a.fill(order, order.Price)
}

func (a *SimAccount) fill(req domain.SubmitOrderReq, price float64) {
	a.mu.Lock()
	delete(a.pending, req.OriginOrderID)
	tick := a.ticks[req.Contract.UnifiedSymbol]
	a.mu.Unlock()

	now := a.now()
	a.emitOrder(domain.OrderAck{
		OriginOrderID: req.OriginOrderID,
		Contract:      req.Contract,
		Valid:         true,
		Done:          true,
		TradedVolume:  req.Volume,
		StatusMsg:     "all traded",
	})
	a.emitTrade(domain.Trade{
		OriginOrderID: req.OriginOrderID,
		Contract:      req.Contract,
		Direction:     req.Direction,
		OffsetFlag:    req.OffsetFlag,
		Price:         price,
		Volume:        req.Volume,
		TradeDate:     now.Format("20060102"),
		TradeTime:     now.Format("15:04:05"),
		TradingDay:    tradingDayOf(tick, now),
	})
	a.logger.Info("order filled",
		slog.String("origin_order_id", req.OriginOrderID),
		slog.Float64("price", price),
		slog.Int("volume", req.Volume))
}

func tradingDayOf(tick domain.Tick, now time.Time) string {
	if tick.TradingDay != "" {
		return tick.TradingDay
	}
	return now.Format("20060102")
}

func (a *SimAccount) emitOrder(ack domain.OrderAck) {
	if a.onOrder != nil {
		a.onOrder(ack)
	}
}

func (a *SimAccount) emitTrade(trade domain.Trade) {
	if a.onTrade != nil {
		a.onTrade(trade)
	}
}
