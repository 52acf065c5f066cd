package module

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"quant_go/internal/barmerge"
	"quant_go/internal/domain"
	"quant_go/internal/indicator"
	"quant_go/internal/infra"
	"quant_go/internal/strategy"
	"quant_go/pkg/ringbuf"
)

// orderEvictDelay is how long a terminal order's tracking record lingers,
// so a late-arriving fill can still be matched against it.
const orderEvictDelay = 3 * time.Second

// ContractBinding binds one instrument to the venue account that trades it.
type ContractBinding struct {
	UnifiedSymbol string `yaml:"unified_symbol"`
	AccountID     string `yaml:"account_id"`
}

// Description is the persisted module configuration.
type Description struct {
	ModuleName       string            `yaml:"module_name"`
	InitBalance      float64           `yaml:"init_balance"`
	CacheSize        int               `yaml:"cache_size"` // bounded buffer capacity
	DefaultVolume    int               `yaml:"default_volume"`
	NumOfMinPerBar   int               `yaml:"num_of_min_per_bar"`
	OrderPlusTick    int               `yaml:"order_plus_tick"` // overshoot in ticks
	MarginRatio      float64           `yaml:"margin_ratio"`
	CommissionPerLot float64           `yaml:"commission_per_lot"`
	ClosingPolicy    string            `yaml:"closing_policy"`
	MaxOrdersPerDay  int               `yaml:"max_orders_per_day"`
	Bindings         []ContractBinding `yaml:"bindings"`
}

// Deps are the hub's external collaborators.
type Deps struct {
	Registry domain.ContractRegistry
	Accounts map[string]VenueAccount // accountID -> venue account
	Repo     Repository
	Merger   *barmerge.Registry
	Logger   *slog.Logger
	Metrics  *infra.Metrics
}

// Hub is the per-strategy runtime. It owns all mutable per-module state
// and is the sole entry point for tick, bar, order-ack and trade-fill
// events, and for strategy-issued order and cancel requests.
//
// Callers must serialize events for a given (module, instrument) pair,
// e.g. one dispatch goroutine per gateway session. Per-symbol maps use
// lock-free last-writer-wins semantics; no cross-symbol transaction
// exists anywhere.
type Hub struct {
	desc   Description
	strat  strategy.TradeStrategy
	ledger *Ledger
	repo   Repository
	merger *barmerge.Registry
	filter OrderRequestFilter
	logger *slog.Logger
	meters *infra.Metrics

	contracts map[string]domain.Contract // unifiedSymbol -> contract
	accounts  map[string]VenueAccount    // unifiedSymbol -> venue account

	orderReqs   sync.Map // originOrderID -> domain.SubmitOrderReq
	orderFills  sync.Map // originOrderID -> int (filled volume)
	latestTicks sync.Map // unifiedSymbol -> domain.Tick
	intents     sync.Map // unifiedSymbol -> *strategy.TradeIntent

	bufMu      sync.Mutex
	bufSize    int
	barBufs    map[string]*ringbuf.Ring[domain.Bar]
	indBufs    map[int]*ringbuf.Ring[indicator.TimeSeriesValue]
	indByID    map[int]indicator.Indicator
	indNames   map[string]map[string]int // unifiedSymbol -> derived name -> handle
	nextHandle int
	helpers    []*indicator.ValueUpdateHelper

	enabled    atomic.Bool
	ready      atomic.Bool
	tradingDay atomic.Value // string

	evictDelay time.Duration
	now        func() time.Time
	newOrderID func() string
}

// NewHub builds a module runtime: binds the strategy, resolves every bound
// contract, and registers each with the bar-merge facility under both the
// strategy and context listener roles.
func NewHub(strat strategy.TradeStrategy, desc Description, deps Deps) (*Hub, error) {
	if len(desc.Bindings) == 0 {
		return nil, fmt.Errorf("%w: module %q has no bound instruments", domain.ErrInvalidConfiguration, desc.ModuleName)
	}
	if desc.CacheSize <= 0 {
		desc.CacheSize = 500
	}
	if desc.NumOfMinPerBar <= 0 {
		desc.NumOfMinPerBar = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("module", desc.ModuleName))

	h := &Hub{
		desc:       desc,
		strat:      strat,
		repo:       deps.Repo,
		merger:     deps.Merger,
		filter:     NewDefaultOrderFilter(desc.MaxOrdersPerDay),
		logger:     logger,
		meters:     deps.Metrics,
		contracts:  make(map[string]domain.Contract, len(desc.Bindings)),
		accounts:   make(map[string]VenueAccount, len(desc.Bindings)),
		bufSize:    desc.CacheSize,
		barBufs:    make(map[string]*ringbuf.Ring[domain.Bar]),
		indBufs:    make(map[int]*ringbuf.Ring[indicator.TimeSeriesValue]),
		indByID:    make(map[int]indicator.Indicator),
		indNames:   make(map[string]map[string]int),
		evictDelay: orderEvictDelay,
		now:        time.Now,
		newOrderID: uuid.NewString,
	}
	h.tradingDay.Store("")

	sm := NewStateMachine(logger)
	h.ledger = NewLedger(LedgerConfig{
		ModuleName:       desc.ModuleName,
		InitBalance:      desc.InitBalance,
		MarginRatio:      desc.MarginRatio,
		CommissionPerLot: desc.CommissionPerLot,
		OnDeal:           h.persistDeal,
		Logger:           logger,
	}, sm)

	for _, binding := range desc.Bindings {
		contract, err := deps.Registry.Contract(binding.UnifiedSymbol)
		if err != nil {
			return nil, err
		}
		account, ok := deps.Accounts[binding.AccountID]
		if !ok {
			return nil, fmt.Errorf("%w: no account %q for %s", domain.ErrInvalidConfiguration, binding.AccountID, binding.UnifiedSymbol)
		}
		h.contracts[contract.UnifiedSymbol] = contract
		h.accounts[contract.UnifiedSymbol] = account
		h.barBufs[contract.UnifiedSymbol] = ringbuf.New[domain.Bar](h.bufSize)
		if h.merger != nil {
			h.merger.AddListener(contract, desc.NumOfMinPerBar, indicator.PeriodMinute, strategyListener{strat}, barmerge.RoleStrategy)
			h.merger.AddListener(contract, desc.NumOfMinPerBar, indicator.PeriodMinute, h, barmerge.RoleContext)
		}
	}

	strat.SetContext(h)
	return h, nil
}

// strategyListener adapts a TradeStrategy to the merged-bar listener.
type strategyListener struct {
	strat strategy.TradeStrategy
}

func (s strategyListener) OnMergedBar(bar domain.Bar) { s.strat.OnMergedBar(bar) }

// Name returns the module name.
func (h *Hub) Name() string { return h.desc.ModuleName }

// Ledger exposes the module account.
func (h *Hub) Ledger() *Ledger { return h.ledger }

// State returns the module state machine's current state.
func (h *Hub) State() State { return h.ledger.State() }

// IsEnabled reports whether the module may issue orders.
func (h *Hub) IsEnabled() bool { return h.enabled.Load() }

// SetEnabled toggles order issuance, logging the transition and persisting
// a fresh snapshot.
func (h *Hub) SetEnabled(enabled bool) {
	prev := h.enabled.Swap(enabled)
	if prev != enabled {
		h.logger.Info("module enablement changed", slog.Bool("enabled", enabled))
	}
	h.persistRuntime()
}

// Disable implements strategy.Context.
func (h *Hub) Disable() {
	h.logger.Warn("module disabled")
	h.SetEnabled(false)
}

// OnReady marks initialization (historical data replay) as finished.
func (h *Hub) OnReady() { h.ready.Store(true) }

// IsReady reports whether initialization has finished.
func (h *Hub) IsReady() bool { return h.ready.Load() }

// Logger implements strategy.Context.
func (h *Hub) Logger() *slog.Logger { return h.logger }

// DefaultVolume implements strategy.Context.
func (h *Hub) DefaultVolume() int { return h.desc.DefaultVolume }

// SetOrderRequestFilter replaces the pre-dispatch order filter.
func (h *Hub) SetOrderRequestFilter(f OrderRequestFilter) { h.filter = f }

// IsBound reports whether the module trades the instrument.
func (h *Hub) IsBound(unifiedSymbol string) bool {
	_, ok := h.contracts[unifiedSymbol]
	return ok
}

// Contract resolves a bound instrument.
func (h *Hub) Contract(unifiedSymbol string) (domain.Contract, error) {
	c, ok := h.contracts[unifiedSymbol]
	if !ok {
		return domain.Contract{}, fmt.Errorf("%w: module did not bind %s", domain.ErrUnknownInstrument, unifiedSymbol)
	}
	return c, nil
}

// TradingDay returns the current trading day, empty before the first tick.
func (h *Hub) TradingDay() string {
	return h.tradingDay.Load().(string)
}

// OnTick routes a tick: live trade intent first (dropping it once
// terminated), then trading-day bookkeeping, indicator helpers, the
// ledger, the strategy, and finally the last-tick map. Side effects only;
// never blocks on I/O.
func (h *Hub) OnTick(tick domain.Tick) {
	if v, ok := h.intents.Load(tick.UnifiedSymbol); ok {
		intent := v.(*strategy.TradeIntent)
		intent.OnTick(tick)
		if intent.HasTerminated() {
			h.intents.Delete(tick.UnifiedSymbol)
			h.logger.Debug("trade intent removed", slog.String("symbol", tick.UnifiedSymbol))
		}
	}

	if day := h.TradingDay(); day != tick.TradingDay {
		h.tradingDay.Store(tick.TradingDay)
		if day != "" {
			h.ledger.OnTradingDayChanged(tick.TradingDay)
		}
		if f, ok := h.filter.(*DefaultOrderFilter); ok {
			f.OnTradingDayChanged(tick.TradingDay)
		}
	}

	for _, helper := range h.currentHelpers() {
		helper.OnTick(tick)
	}
	h.ledger.OnTick(tick)
	h.strat.OnTick(tick)
	h.latestTicks.Store(tick.UnifiedSymbol, tick)
	if h.meters != nil {
		h.meters.RecordTick()
	}
}

// OnBar forwards a base bar to the bar-merge facility, which calls back
// into OnMergedBar and the registered indicator listeners at their
// respective periods.
func (h *Hub) OnBar(bar domain.Bar) {
	if h.merger != nil {
		h.merger.OnBar(bar)
	}
}

// OnMergedBar buffers the bar at the module's own period, then triggers
// an asynchronous snapshot persist when the module is enabled.
func (h *Hub) OnMergedBar(bar domain.Bar) {
	h.bufMu.Lock()
	if h.merger == nil {
		// No merger wired, drive indicator helpers directly.
		for _, helper := range h.helpers {
			helper.OnMergedBar(bar)
			h.visualizeLocked(helper.Indicator(), bar)
		}
	}
	if buf, ok := h.barBufs[bar.UnifiedSymbol]; ok {
		buf.Push(bar)
	}
	h.bufMu.Unlock()

	if h.meters != nil {
		h.meters.RecordMergedBar()
	}
	if h.IsEnabled() {
		h.persistRuntime()
	}
}

// visualizeLocked appends the indicator's current value to its bounded
// buffer when it is safe to plot: the indicator is warm, computed exactly
// for this bar, not already buffered at this timestamp, and either the
// day is closing, the indicator plots every bar, or the value is stable.
// Dependencies are visited first. Caller holds h.bufMu.
func (h *Hub) visualizeLocked(ind indicator.Indicator, bar domain.Bar) {
	for _, dep := range ind.Dependencies() {
		h.visualizeLocked(dep, bar)
	}
	cfg := ind.Configuration()
	if cfg.Contract.UnifiedSymbol != bar.UnifiedSymbol {
		return
	}
	handle, ok := h.handleOfLocked(ind)
	if !ok {
		return
	}
	buf := h.indBufs[handle]
	current := ind.Value(0)
	if !ind.Ready() || current.Timestamp != bar.ActionTimestamp {
		return
	}
	if last, ok := buf.Last(); ok && last.Timestamp == bar.ActionTimestamp {
		return
	}
	if bar.IsEndOfTradingDay() || cfg.PlotPerBar || !current.Unstable {
		buf.Push(indicator.TimeSeriesValue{Value: current.Val, Timestamp: bar.ActionTimestamp})
	}
}

func (h *Hub) handleOfLocked(ind indicator.Indicator) (int, bool) {
	for handle, registered := range h.indByID {
		if registered == ind {
			return handle, true
		}
	}
	return 0, false
}

// OnOrder applies an order ack for a tracked order. Terminal or invalid
// orders schedule delayed removal of the tracking record: a fill
// referencing the same id may still be in flight, so eviction waits out a
// grace period.
func (h *Hub) OnOrder(ack domain.OrderAck) {
	v, ok := h.orderReqs.Load(ack.OriginOrderID)
	if !ok {
		return
	}
	req := v.(domain.SubmitOrderReq)

	if !ack.Valid || ack.Done {
		id := ack.OriginOrderID
		time.AfterFunc(h.evictDelay, func() {
			// Idempotent: a no-op when the record is already gone.
			h.orderReqs.Delete(id)
			h.orderFills.Delete(id)
		})
	}

	filled := 0
	if v, ok := h.orderFills.Load(ack.OriginOrderID); ok {
		filled = v.(int)
	}
	h.ledger.OnOrder(ack, req, filled)
	h.strat.OnOrder(ack)
	if v, ok := h.intents.Load(ack.Contract.UnifiedSymbol); ok {
		v.(*strategy.TradeIntent).OnOrder(ack)
	}
}

// OnTrade applies a fill. Unknown origin ids are ignored unless they carry
// the reserved mock id used by simulated fills that bypass tracking.
func (h *Hub) OnTrade(trade domain.Trade) {
	_, tracked := h.orderReqs.Load(trade.OriginOrderID)
	if !tracked && trade.OriginOrderID != domain.MockOrderID {
		return
	}
	if tracked {
		filled := trade.Volume
		if v, ok := h.orderFills.Load(trade.OriginOrderID); ok {
			filled += v.(int)
		}
		h.orderFills.Store(trade.OriginOrderID, filled)
		h.logger.Info("trade filled",
			slog.String("origin_order_id", trade.OriginOrderID),
			slog.String("direction", string(trade.Direction)),
			slog.String("offset", string(trade.OffsetFlag)),
			slog.Float64("price", trade.Price),
			slog.Int("volume", trade.Volume))
	}

	h.ledger.OnTrade(trade)
	h.strat.OnTrade(trade)
	h.persistRuntime()
	if h.meters != nil {
		h.meters.RecordTrade()
	}

	if v, ok := h.intents.Load(trade.Contract.UnifiedSymbol); ok {
		intent := v.(*strategy.TradeIntent)
		intent.OnTrade(trade)
		if intent.HasTerminated() {
			h.intents.Delete(trade.Contract.UnifiedSymbol)
		}
	}
}

// SubmitIntent installs a trade intent for its instrument, replacing any
// live intent there, and drives it with the latest tick.
func (h *Hub) SubmitIntent(intent *strategy.TradeIntent) {
	if !h.IsEnabled() {
		if h.IsReady() {
			h.logger.Info("module disabled, ignoring trade intent")
		}
		return
	}
	v, ok := h.latestTicks.Load(intent.Contract.UnifiedSymbol)
	if !ok {
		h.logger.Warn("no market data, ignoring trade intent",
			slog.String("symbol", intent.Contract.UnifiedSymbol))
		return
	}
	h.logger.Info("trade intent received",
		slog.String("symbol", intent.Contract.UnifiedSymbol),
		slog.String("operation", string(intent.Operation)),
		slog.Int("volume", intent.Volume))
	h.intents.Store(intent.Contract.UnifiedSymbol, intent)
	intent.SetContext(h)
	intent.OnTick(v.(domain.Tick))
	if intent.HasTerminated() {
		h.intents.Delete(intent.Contract.UnifiedSymbol)
	}
}

// SubmitOrder runs the submission pipeline and returns the origin order
// id, or ok=false on any abort path. Declines are logged, never fatal.
func (h *Hub) SubmitOrder(contract domain.Contract, op domain.SignalOperation, priceType domain.PriceType, volume int, price float64) (string, bool) {
	if !h.IsEnabled() {
		if h.IsReady() {
			h.logger.Info("module disabled, ignoring order request")
		}
		return "", false
	}
	v, ok := h.latestTicks.Load(contract.UnifiedSymbol)
	if !ok {
		h.logger.Warn("no market data, cannot price order", slog.String("symbol", contract.UnifiedSymbol))
		return "", false
	}
	if volume <= 0 {
		h.logger.Warn("order volume must be positive", slog.Int("volume", volume))
		return "", false
	}
	tick := v.(domain.Tick)

	orderPrice := priceType.ResolvePrice(tick, op, price)
	direction := op.Direction()
	// Overshoot improves execution odds: buys are nudged up, sells down.
	plusPrice := float64(h.desc.OrderPlusTick) * contract.PriceTick

	pos := h.ledger.Position(op.ClosingDirection(), contract.UnifiedSymbol)
	policy := ClosingPolicyByName(h.desc.ClosingPolicy)
	offsetFlag, adjVolume := policy.Resolve(op, pos, volume)
	if adjVolume <= 0 {
		h.logger.Warn("closing volume unavailable",
			slog.String("symbol", contract.UnifiedSymbol),
			slog.String("operation", string(op)))
		return "", false
	}
	h.ledger.FreezeClosing(op.ClosingDirection(), contract.UnifiedSymbol, offsetFlag, adjVolume)

	req := domain.SubmitOrderReq{
		OriginOrderID:       h.newOrderID(),
		Contract:            contract,
		GatewayID:           h.accountIDFor(contract.UnifiedSymbol),
		Direction:           direction,
		OffsetFlag:          offsetFlag,
		Volume:              adjVolume,
		Price:               orderPrice + direction.Factor()*plusPrice,
		HedgeFlag:           domain.HedgeSpeculation,
		TimeCondition:       domain.TimeConditionGFD,
		OrderPriceType:      domain.OrderPriceLimit,
		VolumeCondition:     domain.VolumeAny,
		ForceCloseReason:    domain.ForceCloseNone,
		ContingentCondition: domain.ContingentImmediately,
		ActionTimestamp:     h.now().UnixMilli(),
		MinVolume:           1,
	}
	if priceType == domain.AnyPrice {
		req.TimeCondition = domain.TimeConditionIOC
		req.OrderPriceType = domain.OrderPriceMarket
	}

	h.logger.Info("strategy signal",
		slog.String("symbol", contract.UnifiedSymbol),
		slog.String("operation", string(op)),
		slog.Float64("price", req.Price),
		slog.Int("volume", req.Volume),
		slog.String("price_type", string(priceType)))

	return h.dispatch(req)
}

// dispatch runs risk check, filter and venue submission for a built
// request record.
func (h *Hub) dispatch(req domain.SubmitOrderReq) (string, bool) {
	if err := h.ledger.OnSubmitOrder(req); err != nil {
		h.logger.Error("order rejected by ledger", slog.Any("error", err))
		h.ledger.UnfreezeClosing(req.Direction.Opposite(), req.Contract.UnifiedSymbol, req.OffsetFlag, req.Volume)
		h.dropIntent(req.Contract.UnifiedSymbol)
		h.logger.Warn("insufficient balance, disabling module")
		h.SetEnabled(false)
		if h.meters != nil {
			h.meters.RecordOrderRejected()
		}
		return "", false
	}

	if h.filter != nil {
		if err := h.filter.DoFilter(&req); err != nil {
			h.logger.Error("order rejected by filter", slog.Any("error", err))
			h.abortSubmitted(req)
			h.dropIntent(req.Contract.UnifiedSymbol)
			if h.meters != nil {
				h.meters.RecordOrderRejected()
			}
			return "", false
		}
	}

	account, ok := h.accounts[req.Contract.UnifiedSymbol]
	if !ok {
		h.logger.Error("no account bound", slog.String("symbol", req.Contract.UnifiedSymbol))
		h.abortSubmitted(req)
		return "", false
	}
	originOrderID, err := account.SubmitOrder(req)
	if err != nil {
		h.logger.Error("venue submission failed", slog.Any("error", err))
		h.abortSubmitted(req)
		h.dropIntent(req.Contract.UnifiedSymbol)
		return "", false
	}
	h.orderReqs.Store(originOrderID, req)
	if h.meters != nil {
		h.meters.RecordOrderSubmitted()
	}
	return originOrderID, true
}

// abortSubmitted unwinds an order the ledger already accepted but that
// never reached the venue: frozen closing volume is released and the
// state machine is re-derived from holdings, since no ack will arrive.
func (h *Hub) abortSubmitted(req domain.SubmitOrderReq) {
	h.ledger.UnfreezeClosing(req.Direction.Opposite(), req.Contract.UnifiedSymbol, req.OffsetFlag, req.Volume)
	h.ledger.RederiveState(req.Contract.UnifiedSymbol)
}

func (h *Hub) dropIntent(unifiedSymbol string) {
	if _, ok := h.intents.LoadAndDelete(unifiedSymbol); ok {
		h.logger.Debug("trade intent dropped", slog.String("symbol", unifiedSymbol))
	}
}

func (h *Hub) accountIDFor(unifiedSymbol string) string {
	if account, ok := h.accounts[unifiedSymbol]; ok {
		return account.ID()
	}
	return ""
}

// CancelOrder withdraws a tracked outstanding order. Unknown ids and
// non-ordering states are logged no-ops.
func (h *Hub) CancelOrder(originOrderID string) {
	v, ok := h.orderReqs.Load(originOrderID)
	if !ok {
		h.logger.Debug("order not found", slog.String("origin_order_id", originOrderID))
		return
	}
	if !h.State().IsOrdering() {
		h.logger.Info("not in an ordering state, ignoring cancel",
			slog.String("origin_order_id", originOrderID))
		return
	}
	req := v.(domain.SubmitOrderReq)
	h.logger.Info("cancelling order", slog.String("origin_order_id", originOrderID))
	h.ledger.StateMachine().OnCancelOrder()
	account, ok := h.accounts[req.Contract.UnifiedSymbol]
	if !ok {
		return
	}
	if err := account.CancelOrder(domain.CancelOrderReq{
		GatewayID:     req.GatewayID,
		OriginOrderID: originOrderID,
	}); err != nil {
		h.logger.Error("cancel failed", slog.Any("error", err))
	}
}

// IsOrderWaitTimeout reports whether a tracked order has been outstanding
// longer than timeout. Pure query; cancellation needs an explicit
// CancelOrder call.
func (h *Hub) IsOrderWaitTimeout(originOrderID string, timeout time.Duration) bool {
	v, ok := h.orderReqs.Load(originOrderID)
	if !ok {
		return false
	}
	req := v.(domain.SubmitOrderReq)
	return h.now().UnixMilli()-req.ActionTimestamp > timeout.Milliseconds()
}

// RegisterIndicator registers an indicator and, depth-first, all of its
// dependencies. Visible indicators must derive a unique name per
// instrument; registering the identical instance again is idempotent.
// A visited set turns dependency cycles into a fast failure.
func (h *Hub) RegisterIndicator(ind indicator.Indicator) error {
	h.bufMu.Lock()
	defer h.bufMu.Unlock()
	visited := make(map[indicator.Indicator]bool)
	if err := h.registerLocked(ind, visited); err != nil {
		return err
	}
	helper := indicator.NewValueUpdateHelper(ind)
	h.helpers = append(h.helpers, helper)
	if h.merger != nil {
		cfg := ind.Configuration()
		h.merger.AddListener(cfg.Contract, cfg.NumOfUnits, cfg.Period, mergedBarFunc(func(bar domain.Bar) {
			h.bufMu.Lock()
			helper.OnMergedBar(bar)
			h.visualizeLocked(ind, bar)
			h.bufMu.Unlock()
		}), barmerge.RoleIndicator)
	}
	return nil
}

type mergedBarFunc func(bar domain.Bar)

func (f mergedBarFunc) OnMergedBar(bar domain.Bar) { f(bar) }

func (h *Hub) registerLocked(ind indicator.Indicator, visited map[indicator.Indicator]bool) error {
	if visited[ind] {
		return fmt.Errorf("%w: %s", domain.ErrCircularDependency, ind.Configuration().DerivedName())
	}
	visited[ind] = true
	for _, dep := range ind.Dependencies() {
		if err := h.registerLocked(dep, visited); err != nil {
			return err
		}
	}
	delete(visited, ind)

	cfg := ind.Configuration()
	name := cfg.DerivedName()
	if cfg.NumOfUnits <= 0 {
		return fmt.Errorf("%w: %s numOfUnits must be positive", domain.ErrInvalidConfiguration, name)
	}
	if cfg.CacheLength <= 0 {
		return fmt.Errorf("%w: %s cacheLength must be positive", domain.ErrInvalidConfiguration, name)
	}

	symbol := cfg.Contract.UnifiedSymbol
	if cfg.Visible {
		names, ok := h.indNames[symbol]
		if !ok {
			names = make(map[string]int)
			h.indNames[symbol] = names
		}
		if handle, exists := names[name]; exists {
			if h.indByID[handle] == ind {
				return nil // identical instance, idempotent
			}
			return fmt.Errorf("%w: %s on %s", domain.ErrDuplicateIndicator, name, symbol)
		}
	}

	if _, ok := h.handleOfLocked(ind); ok {
		return nil
	}
	h.nextHandle++
	handle := h.nextHandle
	h.indByID[handle] = ind
	h.indBufs[handle] = ringbuf.New[indicator.TimeSeriesValue](h.bufSize)
	if cfg.Visible {
		h.indNames[symbol][name] = handle
	}
	h.logger.Debug("indicator registered",
		slog.String("symbol", symbol), slog.String("name", name))
	return nil
}

// InitData replays historical bars through the normal bar path so buffers
// and indicators warm up before live data starts.
func (h *Hub) InitData(bars []domain.Bar) {
	if len(bars) == 0 {
		h.logger.Debug("no historical data to replay")
		return
	}
	h.logger.Debug("replaying historical bars",
		slog.String("symbol", bars[0].UnifiedSymbol),
		slog.Int("count", len(bars)))
	for _, bar := range bars {
		h.OnBar(bar)
	}
	h.OnReady()
}

// RuntimeDescription assembles the module snapshot. The lightweight form
// is cheap; the full form joins buffered bars with indicator values and
// walks the persisted deal history, so it stays off the hot path.
func (h *Hub) RuntimeDescription(full bool) RuntimeDescription {
	rt := RuntimeDescription{
		ModuleName:     h.desc.ModuleName,
		Enabled:        h.IsEnabled(),
		State:          h.State(),
		AccountRuntime: h.ledger.Summarize(),
		StoreObject:    h.strat.StoreObject(),
		StrategyInfos:  h.strat.Infos(),
	}
	if !full {
		return rt
	}

	if h.repo != nil {
		deals, err := h.repo.FindAllDeals(h.desc.ModuleName)
		if err != nil {
			h.logger.Error("deal history lookup failed", slog.Any("error", err))
		} else {
			rt.AccountRuntime.AvgEarning = averageProfit(deals)
			rt.AccountRuntime.AnnualizedRateOfReturn = annualizedReturn(
				deals, h.ledger.NetProfit().InexactFloat64(), h.ledger.InitBalance().InexactFloat64())
		}
	}

	h.bufMu.Lock()
	bars := make(map[string][]domain.Bar, len(h.barBufs))
	for symbol, buf := range h.barBufs {
		bars[symbol] = buf.Items()
	}
	series := make(map[int]indicatorSeries, len(h.indBufs))
	for handle, buf := range h.indBufs {
		ind := h.indByID[handle]
		cfg := ind.Configuration()
		series[handle] = indicatorSeries{
			unifiedSymbol: cfg.Contract.UnifiedSymbol,
			name:          cfg.DerivedName(),
			visible:       cfg.Visible,
			values:        buf.Items(),
		}
	}
	h.bufMu.Unlock()

	rt.IndicatorNames = visibleNames(series)
	rt.DataMap = joinSeries(bars, series)
	return rt
}

// persistRuntime saves a lightweight snapshot, fire-and-forget. The
// snapshot is assembled on the calling event thread so the strategy's
// store object is read without racing later events; only the repository
// write happens on the background goroutine.
func (h *Hub) persistRuntime() {
	if h.repo == nil {
		return
	}
	rt := h.RuntimeDescription(false)
	go func() {
		if err := h.repo.SaveRuntime(rt); err != nil {
			h.logger.Error("runtime persist failed", slog.Any("error", err))
			return
		}
		if h.meters != nil {
			h.meters.RecordSnapshot()
		}
	}()
}

func (h *Hub) persistDeal(deal DealRecord) {
	if h.repo == nil {
		return
	}
	if err := h.repo.SaveDeal(deal); err != nil {
		h.logger.Error("deal persist failed", slog.Any("error", err))
	}
}

func (h *Hub) currentHelpers() []*indicator.ValueUpdateHelper {
	h.bufMu.Lock()
	defer h.bufMu.Unlock()
	out := make([]*indicator.ValueUpdateHelper, len(h.helpers))
	copy(out, h.helpers)
	return out
}
