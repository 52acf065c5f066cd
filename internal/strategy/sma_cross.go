package strategy

import (
	"fmt"
	"log/slog"

	"quant_go/internal/domain"
	"quant_go/internal/indicator"
	"quant_go/pkg/ringbuf"
)

// SMACrossParams configures the moving-average crossover strategy.
type SMACrossParams struct {
	UnifiedSymbol string `yaml:"unified_symbol" json:"unified_symbol"`
	FastWindow    int    `yaml:"fast_window" json:"fast_window"`
	SlowWindow    int    `yaml:"slow_window" json:"slow_window"`
}

// SMACross goes long on a golden cross and flat on a death cross. It keeps
// its own price windows for the trading decision and registers a visible
// moving average for charting.
type SMACross struct {
	params   SMACrossParams
	ctx      Context
	contract domain.Contract

	fast *ringbuf.Ring[float64]
	slow *ringbuf.Ring[float64]

	long     bool
	lastFast float64
	lastSlow float64
	primed   bool
}

// NewSMACross validates the windows and builds the strategy.
func NewSMACross(params SMACrossParams) (*SMACross, error) {
	if params.FastWindow <= 0 || params.SlowWindow <= params.FastWindow {
		return nil, fmt.Errorf("%w: fast window %d must be positive and below slow window %d",
			domain.ErrInvalidConfiguration, params.FastWindow, params.SlowWindow)
	}
	return &SMACross{
		params: params,
		fast:   ringbuf.New[float64](params.FastWindow),
		slow:   ringbuf.New[float64](params.SlowWindow),
	}, nil
}

// SetContext implements TradeStrategy. Binds the instrument and registers
// the charting indicator.
func (s *SMACross) SetContext(ctx Context) {
	s.ctx = ctx

	contract, err := ctx.Contract(s.params.UnifiedSymbol)
	if err != nil {
		ctx.Logger().Error("strategy instrument unavailable",
			slog.String("symbol", s.params.UnifiedSymbol), slog.Any("error", err))
		ctx.Disable()
		return
	}
	s.contract = contract

	chart := indicator.NewSMA(indicator.Configuration{
		Contract:    contract,
		Name:        "SMA",
		NumOfUnits:  s.params.FastWindow,
		Period:      indicator.PeriodMinute,
		CacheLength: 500,
		Visible:     true,
	})
	if err := ctx.RegisterIndicator(chart); err != nil {
		ctx.Logger().Warn("chart indicator registration failed", slog.Any("error", err))
	}
}

// OnTick implements TradeStrategy. Decisions are bar-driven; ticks pass.
func (s *SMACross) OnTick(tick domain.Tick) {}

// OnMergedBar implements TradeStrategy.
func (s *SMACross) OnMergedBar(bar domain.Bar) {
	if bar.UnifiedSymbol != s.params.UnifiedSymbol {
		return
	}
	s.fast.Push(bar.ClosePrice)
	s.slow.Push(bar.ClosePrice)
	if s.slow.Len() < s.params.SlowWindow {
		return
	}

	fast := mean(s.fast.Items())
	slow := mean(s.slow.Items())
	defer func() {
		s.lastFast, s.lastSlow = fast, slow
		s.primed = true
	}()
	if !s.primed {
		return
	}

	goldenCross := s.lastFast <= s.lastSlow && fast > slow
	deathCross := s.lastFast >= s.lastSlow && fast < slow

	switch {
	case goldenCross && !s.long:
		s.ctx.Logger().Info("golden cross",
			slog.Float64("fast", fast), slog.Float64("slow", slow))
		s.ctx.SubmitIntent(&TradeIntent{
			Contract:  s.contract,
			Operation: domain.BuyOpen,
			PriceType: domain.OppositePrice,
			Volume:    s.ctx.DefaultVolume(),
		})
		s.long = true
	case deathCross && s.long:
		s.ctx.Logger().Info("death cross",
			slog.Float64("fast", fast), slog.Float64("slow", slow))
		s.ctx.SubmitIntent(&TradeIntent{
			Contract:  s.contract,
			Operation: domain.SellClose,
			PriceType: domain.OppositePrice,
			Volume:    s.ctx.DefaultVolume(),
		})
		s.long = false
	}
}

// OnOrder implements TradeStrategy.
func (s *SMACross) OnOrder(ack domain.OrderAck) {
	if !ack.Valid {
		s.ctx.Logger().Warn("order declined by venue",
			slog.String("origin_order_id", ack.OriginOrderID),
			slog.String("status", ack.StatusMsg))
	}
}

// OnTrade implements TradeStrategy.
func (s *SMACross) OnTrade(trade domain.Trade) {}

// StoreObject implements TradeStrategy.
func (s *SMACross) StoreObject() map[string]any {
	return map[string]any{
		"long":      s.long,
		"last_fast": s.lastFast,
		"last_slow": s.lastSlow,
	}
}

// Infos implements TradeStrategy.
func (s *SMACross) Infos() map[string]string {
	return map[string]string{
		"strategy":    "SMACross",
		"symbol":      s.params.UnifiedSymbol,
		"fast_window": fmt.Sprint(s.params.FastWindow),
		"slow_window": fmt.Sprint(s.params.SlowWindow),
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
