// Package index synthesizes a composite "index" instrument from a basket
// of related contracts, weighting member prices by open interest.
package index

import (
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sync"
	"time"

	"quant_go/internal/domain"
)

const (
	// IndexSuffix is appended to the maturity-stripped symbol of the basket's
	// representative member to form the composite symbol.
	IndexSuffix = "0000"

	// emitInterval is the minimum wall-clock gap between two emissions.
	emitInterval = 300 * time.Millisecond

	priceScale = 1000 // fixed-point scale for tick rounding
)

var maturityDigits = regexp.MustCompile(`\d+`)

// TickHandler receives each synthesized composite tick.
type TickHandler func(tick domain.Tick)

// Synthesizer aggregates member ticks into one composite tick on a
// throttled cadence. Member tick upserts are lock-free; the throttle
// decision plus aggregation run inside a single critical section so two
// ticks racing past the interval boundary cannot both emit.
type Synthesizer struct {
	contract domain.Contract
	handler  TickHandler
	logger   *slog.Logger

	ticks sync.Map // member unifiedSymbol -> domain.Tick

	mu       sync.Mutex
	weights  map[string]float64 // member unifiedSymbol -> open-interest weight
	last     domain.Tick        // last emitted composite tick
	lastEmit time.Time
	interval time.Duration
	now      func() time.Time
}

// NewSynthesizer builds a composite instrument from a non-empty basket of
// members belonging to the same underlying product. The composite identity
// (exchange, product class, gateway) comes from the first member.
func NewSynthesizer(members []domain.Contract, handler TickHandler, logger *slog.Logger) (*Synthesizer, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: empty index basket", domain.ErrInvalidConfiguration)
	}
	if logger == nil {
		logger = slog.Default()
	}
	proto := members[0]
	symbol := maturityDigits.ReplaceAllString(proto.Symbol, "") + IndexSuffix
	unified := domain.UnifiedSymbolOf(symbol, proto.Exchange, domain.ProductIndex)

	s := &Synthesizer{
		contract: domain.Contract{
			UnifiedSymbol: unified,
			Symbol:        symbol,
			Name:          proto.Name + " index",
			Exchange:      proto.Exchange,
			ProductClass:  domain.ProductIndex,
			GatewayID:     proto.GatewayID,
			PriceTick:     proto.PriceTick,
			Multiplier:    proto.Multiplier,
		},
		handler:  handler,
		logger:   logger,
		weights:  make(map[string]float64, len(members)),
		interval: emitInterval,
		now:      time.Now,
	}
	s.lastEmit = s.now()
	s.last = domain.Tick{UnifiedSymbol: unified, GatewayID: proto.GatewayID}
	return s, nil
}

// Contract returns the composite instrument descriptor.
func (s *Synthesizer) Contract() domain.Contract { return s.contract }

// UpdateByTick records a member tick and, if the throttle interval has
// elapsed, aggregates and emits a composite tick. Updates inside the
// interval are recorded without emission, so the cadence is at most one
// emission per interval, driven by whichever member tick arrives first
// past the boundary.
func (s *Synthesizer) UpdateByTick(tick domain.Tick) {
	s.ticks.Store(tick.UnifiedSymbol, tick)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.now().Sub(s.lastEmit) <= s.interval {
		return
	}
	s.lastEmit = s.now()

	out := s.aggregate()
	out.TradingDay = tick.TradingDay
	out.ActionDay = tick.ActionDay
	out.ActionTime = tick.ActionTime
	out.ActionTimestamp = tick.ActionTimestamp

	s.handler(out)
	s.last = out
}

// aggregate folds the member tick map into a composite tick. Caller holds
// s.mu; concurrent member upserts may race harmlessly with the snapshot
// reads here, since only eventual consistency over the emit window matters.
func (s *Synthesizer) aggregate() domain.Tick {
	var (
		totalVolume       int64
		totalOpenInterest float64
		totalTurnover     float64
	)
	members := make(map[string]domain.Tick)
	s.ticks.Range(func(key, value any) bool {
		t := value.(domain.Tick)
		members[key.(string)] = t
		totalVolume += t.Volume
		totalOpenInterest += t.OpenInterest
		totalTurnover += t.Turnover
		return true
	})

	for symbol, t := range members {
		if totalOpenInterest > 0 {
			s.weights[symbol] = t.OpenInterest / totalOpenInterest
		} else {
			s.weights[symbol] = 0
		}
	}

	out := domain.Tick{
		UnifiedSymbol: s.contract.UnifiedSymbol,
		GatewayID:     s.contract.GatewayID,

		LastPrice: s.weightedPrice(members, func(t domain.Tick) float64 { return t.LastPrice }),
		HighPrice: s.weightedPrice(members, func(t domain.Tick) float64 { return t.HighPrice }),
		LowPrice:  s.weightedPrice(members, func(t domain.Tick) float64 { return t.LowPrice }),
		OpenPrice: s.weightedPrice(members, func(t domain.Tick) float64 { return t.OpenPrice }),

		Volume:            totalVolume,
		VolumeDelta:       totalVolume - s.last.Volume,
		OpenInterest:      totalOpenInterest,
		OpenInterestDelta: totalOpenInterest - s.last.OpenInterest,
		Turnover:          totalTurnover,
		TurnoverDelta:     totalTurnover - s.last.Turnover,
	}
	return out
}

func (s *Synthesizer) weightedPrice(members map[string]domain.Tick, price func(domain.Tick) float64) float64 {
	var sum float64
	for symbol, w := range s.weights {
		t, ok := members[symbol]
		if !ok {
			continue
		}
		sum += w * price(t)
	}
	return RoundByPriceTick(sum, s.contract.PriceTick)
}

// RoundByPriceTick rounds a price to the nearest multiple of the minimum
// price increment, ties away from zero toward the next tick. Both operands
// are scaled to fixed-point to avoid float comparison artifacts.
func RoundByPriceTick(price, priceTick float64) float64 {
	enlargedTick := int64(math.Round(priceTick * priceScale))
	if enlargedTick <= 0 {
		return price
	}
	enlarged := int64(math.Round(math.Abs(price) * priceScale))
	numOfTicks := enlarged / enlargedTick
	if enlarged%enlargedTick >= enlargedTick/2 {
		numOfTicks++
	}
	rounded := float64(enlargedTick*numOfTicks) / priceScale
	if price < 0 {
		return -rounded
	}
	return rounded
}
