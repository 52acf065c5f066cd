package module

import (
	"fmt"
	"sync"

	"quant_go/internal/domain"
)

// OrderRequestFilter may veto or mutate an order request just before
// dispatch. Any error aborts the submission without disabling the module.
type OrderRequestFilter interface {
	DoFilter(req *domain.SubmitOrderReq) error
}

// DefaultOrderFilter caps how many orders each bound instrument may send
// per trading day, a guard against runaway strategies.
type DefaultOrderFilter struct {
	mu          sync.Mutex
	maxPerDay   int
	tradingDay  string
	orderCounts map[string]int // unifiedSymbol -> orders sent today
}

// NewDefaultOrderFilter creates a filter allowing maxPerDay orders per
// instrument per trading day. Non-positive means unlimited.
func NewDefaultOrderFilter(maxPerDay int) *DefaultOrderFilter {
	return &DefaultOrderFilter{
		maxPerDay:   maxPerDay,
		orderCounts: make(map[string]int),
	}
}

// DoFilter implements OrderRequestFilter.
func (f *DefaultOrderFilter) DoFilter(req *domain.SubmitOrderReq) error {
	if f.maxPerDay <= 0 {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	symbol := req.Contract.UnifiedSymbol
	if f.orderCounts[symbol] >= f.maxPerDay {
		return fmt.Errorf("%w: %s exceeded %d orders per day",
			domain.ErrFilterRejected, symbol, f.maxPerDay)
	}
	f.orderCounts[symbol]++
	return nil
}

// OnTradingDayChanged resets the per-day counters.
func (f *DefaultOrderFilter) OnTradingDayChanged(tradingDay string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.tradingDay != tradingDay {
		f.tradingDay = tradingDay
		f.orderCounts = make(map[string]int)
	}
}
