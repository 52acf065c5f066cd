package module

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"quant_go/internal/domain"
)

// VenueAccount is the execution venue binding for one instrument group.
type VenueAccount interface {
	ID() string
	SubmitOrder(req domain.SubmitOrderReq) (string, error)
	CancelOrder(req domain.CancelOrderReq) error
}

// DealRecord is one closed round trip, produced by FIFO-matching close
// fills against open fills.
type DealRecord struct {
	ModuleName string           `json:"module_name"`
	Symbol     string           `json:"symbol"`
	Direction  domain.Direction `json:"direction"` // direction of the opening trade
	Volume     int              `json:"volume"`
	OpenPrice  float64          `json:"open_price"`
	ClosePrice float64          `json:"close_price"`
	Profit     float64          `json:"profit"`
	OpenDate   string           `json:"open_date"`  // yyyyMMdd of the opening trade
	CloseDate  string           `json:"close_date"` // yyyyMMdd of the closing trade
}

// Ledger is the module's account: balance, accumulated results, logical
// positions and non-closed trades. All money math uses decimal to keep
// accumulation exact. Event application is serialized by the hub's caller
// contract; the mutex only protects snapshot reads.
type Ledger struct {
	mu sync.Mutex

	moduleName  string
	initBalance decimal.Decimal
	marginRatio decimal.Decimal
	commission  decimal.Decimal // per-lot commission
	multiplier  func(c domain.Contract) decimal.Decimal

	accCloseProfit decimal.Decimal
	accCommission  decimal.Decimal
	accDealVolume  int
	maxProfit      decimal.Decimal
	maxDrawback    decimal.Decimal
	maxDrawbackPct float64

	positions map[string]*Position     // direction+symbol -> position
	nonclosed map[string][]domain.Trade // direction+symbol -> FIFO open trades

	sm     *StateMachine
	onDeal func(DealRecord)
	logger *slog.Logger
}

// LedgerConfig carries the construction parameters for a module ledger.
type LedgerConfig struct {
	ModuleName       string
	InitBalance      float64
	MarginRatio      float64 // fraction of notional reserved as margin
	CommissionPerLot float64
	OnDeal           func(DealRecord) // invoked for every closed round trip
	Logger           *slog.Logger
}

// NewLedger creates an empty ledger bound to a state machine.
func NewLedger(cfg LedgerConfig, sm *StateMachine) *Ledger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	marginRatio := cfg.MarginRatio
	if marginRatio <= 0 {
		marginRatio = 0.1
	}
	return &Ledger{
		moduleName:  cfg.ModuleName,
		initBalance: decimal.NewFromFloat(cfg.InitBalance),
		marginRatio: decimal.NewFromFloat(marginRatio),
		commission:  decimal.NewFromFloat(cfg.CommissionPerLot),
		positions:   make(map[string]*Position),
		nonclosed:   make(map[string][]domain.Trade),
		sm:          sm,
		onDeal:      cfg.OnDeal,
		logger:      logger,
	}
}

func positionKey(d domain.Direction, unifiedSymbol string) string {
	return string(d) + "@" + unifiedSymbol
}

// Position returns the position held in the given direction, or nil.
func (l *Ledger) Position(d domain.Direction, unifiedSymbol string) *Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.positions[positionKey(d, unifiedSymbol)]
}

// Positions returns a snapshot copy of all non-empty positions.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		if p.Volume() > 0 {
			out = append(out, *p)
		}
	}
	return out
}

// NonclosedTrades returns a snapshot copy of all unmatched open fills.
func (l *Ledger) NonclosedTrades() []domain.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Trade
	for _, trades := range l.nonclosed {
		out = append(out, trades...)
	}
	return out
}

// State returns the module state machine's current state.
func (l *Ledger) State() State { return l.sm.State() }

// StateMachine exposes the ledger's state machine to the hub.
func (l *Ledger) StateMachine() *StateMachine { return l.sm }

// Available is the balance available for new margin.
func (l *Ledger) Available() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableLocked()
}

func (l *Ledger) availableLocked() decimal.Decimal {
	used := decimal.Zero
	for key, p := range l.positions {
		if p.Volume() == 0 {
			continue
		}
		notional := decimal.NewFromFloat(p.OpenPrice).
			Mul(decimal.NewFromInt(int64(p.Volume()))).
			Mul(decimal.NewFromFloat(l.positionMultiplier(key)))
		used = used.Add(notional.Mul(l.marginRatio))
	}
	return l.initBalance.Add(l.accCloseProfit).Sub(l.accCommission).Sub(used)
}

func (l *Ledger) positionMultiplier(key string) float64 {
	if p := l.positions[key]; p != nil && p.Contract.Multiplier > 0 {
		return p.Contract.Multiplier
	}
	return 1
}

// OnSubmitOrder validates that the order's margin fits the available
// balance. Opening orders reserve price x volume x multiplier x ratio;
// closing orders need no new margin.
func (l *Ledger) OnSubmitOrder(req domain.SubmitOrderReq) error {
	l.mu.Lock()
	if req.OffsetFlag == domain.OffsetOpen {
		multiplier := req.Contract.Multiplier
		if multiplier <= 0 {
			multiplier = 1
		}
		price := req.Price
		required := decimal.NewFromFloat(price).
			Mul(decimal.NewFromInt(int64(req.Volume))).
			Mul(decimal.NewFromFloat(multiplier)).
			Mul(l.marginRatio)
		if required.GreaterThan(l.availableLocked()) {
			available := l.availableLocked()
			l.mu.Unlock()
			return fmt.Errorf("%w: required %s, available %s",
				domain.ErrInsufficientBalance, required.StringFixed(2), available.StringFixed(2))
		}
	}
	l.mu.Unlock()
	l.sm.OnSubmitOrder()
	return nil
}

// OnTick is a hook for mark-to-market bookkeeping; the ledger currently
// tracks realized results only, so ticks pass through.
func (l *Ledger) OnTick(tick domain.Tick) {}

// OnOrder applies an order ack: invalid or terminal orders release any
// frozen closing volume and the state machine re-derives its state.
func (l *Ledger) OnOrder(ack domain.OrderAck, req domain.SubmitOrderReq, filledVolume int) {
	if (!ack.Valid || ack.Done) && req.OffsetFlag.IsClose() {
		l.mu.Lock()
		key := positionKey(req.Direction.Opposite(), req.Contract.UnifiedSymbol)
		if p := l.positions[key]; p != nil {
			remaining := req.Volume - filledVolume
			if remaining > 0 {
				p.unfreeze(req.OffsetFlag, remaining)
			}
		}
		l.mu.Unlock()
	}
	long, short := l.holdingVolumes(ack.Contract.UnifiedSymbol)
	l.sm.OnOrder(ack, long, short)
}

// FreezeClosing reserves position volume ahead of dispatching a closing
// order, so a concurrent request cannot close the same lots twice.
func (l *Ledger) FreezeClosing(d domain.Direction, unifiedSymbol string, flag domain.OffsetFlag, volume int) {
	if !flag.IsClose() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.positions[positionKey(d, unifiedSymbol)]; p != nil {
		p.freeze(flag, volume)
	}
}

// UnfreezeClosing releases volume reserved by FreezeClosing when the
// order never reached the venue. An order that was never sent gets no
// ack, so the OnOrder release never fires for it.
func (l *Ledger) UnfreezeClosing(d domain.Direction, unifiedSymbol string, flag domain.OffsetFlag, volume int) {
	if !flag.IsClose() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.positions[positionKey(d, unifiedSymbol)]; p != nil {
		p.unfreeze(flag, volume)
	}
}

// RederiveState resets the state machine from current holdings. Used when
// a submitted order is aborted before dispatch, so the machine does not
// stay in an ordering state waiting for an ack that will never come.
func (l *Ledger) RederiveState(unifiedSymbol string) {
	long, short := l.holdingVolumes(unifiedSymbol)
	l.sm.OnPositionChanged(long, short)
}

// OnTrade applies a fill: opening fills extend the position and join the
// non-closed queue; closing fills consume the queue FIFO, realize profit
// and emit deal records.
func (l *Ledger) OnTrade(trade domain.Trade) {
	l.mu.Lock()
	multiplier := trade.Contract.Multiplier
	if multiplier <= 0 {
		multiplier = 1
	}
	fee := l.commission.Mul(decimal.NewFromInt(int64(trade.Volume)))
	l.accCommission = l.accCommission.Add(fee)

	if trade.OffsetFlag == domain.OffsetOpen {
		key := positionKey(trade.Direction, trade.Contract.UnifiedSymbol)
		p := l.positions[key]
		if p == nil {
			p = &Position{Contract: trade.Contract, Direction: trade.Direction}
			l.positions[key] = p
		}
		p.add(trade.Price, trade.Volume)
		l.nonclosed[key] = append(l.nonclosed[key], trade)
	} else {
		holdDir := trade.Direction.Opposite()
		key := positionKey(holdDir, trade.Contract.UnifiedSymbol)
		if p := l.positions[key]; p != nil {
			p.reduce(trade.OffsetFlag, trade.Volume)
		}
		l.closeAgainstQueue(key, trade, multiplier)
	}
	l.trackDrawbackLocked()
	l.mu.Unlock()

	long, short := l.holdingVolumes(trade.Contract.UnifiedSymbol)
	l.sm.OnPositionChanged(long, short)
}

// closeAgainstQueue matches a closing fill against the oldest open fills.
// Caller holds l.mu.
func (l *Ledger) closeAgainstQueue(key string, closing domain.Trade, multiplier float64) {
	remaining := closing.Volume
	queue := l.nonclosed[key]
	for remaining > 0 && len(queue) > 0 {
		open := &queue[0]
		matched := min(remaining, open.Volume)
		// Deal volume counts matched round trips, not individual fills.
		l.accDealVolume += matched

		factor := decimal.NewFromFloat(open.Direction.Factor())
		profit := decimal.NewFromFloat(closing.Price - open.Price).
			Mul(factor).
			Mul(decimal.NewFromInt(int64(matched))).
			Mul(decimal.NewFromFloat(multiplier))
		l.accCloseProfit = l.accCloseProfit.Add(profit)

		if l.onDeal != nil {
			l.onDeal(DealRecord{
				ModuleName: l.moduleName,
				Symbol:     closing.Contract.UnifiedSymbol,
				Direction:  open.Direction,
				Volume:     matched,
				OpenPrice:  open.Price,
				ClosePrice: closing.Price,
				Profit:     profit.InexactFloat64(),
				OpenDate:   open.TradeDate,
				CloseDate:  closing.TradeDate,
			})
		}

		open.Volume -= matched
		remaining -= matched
		if open.Volume == 0 {
			queue = queue[1:]
		}
	}
	l.nonclosed[key] = queue
	if remaining > 0 {
		l.logger.Warn("closing fill exceeded non-closed volume",
			slog.String("symbol", closing.Contract.UnifiedSymbol),
			slog.Int("unmatched", remaining))
	}
}

// trackDrawbackLocked updates max profit and drawback after realized
// results change. Caller holds l.mu.
func (l *Ledger) trackDrawbackLocked() {
	netProfit := l.accCloseProfit.Sub(l.accCommission)
	if netProfit.GreaterThan(l.maxProfit) {
		l.maxProfit = netProfit
	}
	drawback := l.maxProfit.Sub(netProfit)
	if drawback.GreaterThan(l.maxDrawback) {
		l.maxDrawback = drawback
		base := l.initBalance.Add(l.maxProfit)
		if base.IsPositive() {
			l.maxDrawbackPct, _ = drawback.Div(base).Float64()
		}
	}
}

// OnTradingDayChanged rolls today's lots into the yesterday buckets.
func (l *Ledger) OnTradingDayChanged(tradingDay string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, p := range l.positions {
		p.rollTradingDay()
	}
	l.logger.Info("trading day rolled", slog.String("trading_day", tradingDay))
}

func (l *Ledger) holdingVolumes(unifiedSymbol string) (long, short int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p := l.positions[positionKey(domain.DirectionBuy, unifiedSymbol)]; p != nil {
		long = p.Volume()
	}
	if p := l.positions[positionKey(domain.DirectionSell, unifiedSymbol)]; p != nil {
		short = p.Volume()
	}
	return long, short
}

// Summary is the ledger's contribution to runtime snapshots.
type Summary struct {
	InitBalance    float64 `json:"init_balance"`
	AccCloseProfit float64 `json:"acc_close_profit"`
	AccCommission  float64 `json:"acc_commission"`
	AccDealVolume  int     `json:"acc_deal_volume"`
	MaxProfit      float64 `json:"max_profit"`
	MaxDrawback    float64 `json:"max_drawback"`
	MaxDrawbackPct float64 `json:"max_drawback_pct"`
	Available      float64 `json:"available"`

	AvgEarning             float64 `json:"avg_earning,omitempty"`
	AnnualizedRateOfReturn float64 `json:"annualized_rate_of_return,omitempty"`

	Positions       []Position     `json:"positions"`
	NonclosedTrades []domain.Trade `json:"nonclosed_trades"`
}

// Summarize captures a consistent snapshot of the ledger.
func (l *Ledger) Summarize() Summary {
	l.mu.Lock()
	s := Summary{
		InitBalance:    l.initBalance.InexactFloat64(),
		AccCloseProfit: l.accCloseProfit.InexactFloat64(),
		AccCommission:  l.accCommission.InexactFloat64(),
		AccDealVolume:  l.accDealVolume,
		MaxProfit:      l.maxProfit.InexactFloat64(),
		MaxDrawback:    l.maxDrawback.InexactFloat64(),
		MaxDrawbackPct: l.maxDrawbackPct,
		Available:      l.availableLocked().InexactFloat64(),
	}
	l.mu.Unlock()
	s.Positions = l.Positions()
	s.NonclosedTrades = l.NonclosedTrades()
	return s
}

// InitBalance exposes the configured starting balance.
func (l *Ledger) InitBalance() decimal.Decimal { return l.initBalance }

// NetProfit is accumulated close profit minus commission.
func (l *Ledger) NetProfit() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accCloseProfit.Sub(l.accCommission)
}
