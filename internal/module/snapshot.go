package module

import (
	"sort"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/indicator"
)

// Repository is the persistence facility consumed by the hub. Implemented
// by infra/storage.
type Repository interface {
	SaveRuntime(rt RuntimeDescription) error
	FindRuntime(moduleName string) (*RuntimeDescription, error)
	SaveDeal(deal DealRecord) error
	FindAllDeals(moduleName string) ([]DealRecord, error)
}

// DataPoint is one joined time-series entry: a bar plus every indicator
// value sharing its timestamp.
type DataPoint map[string]any

// RuntimeDescription is the module's read-mostly snapshot for persistence
// and monitoring. It is always reconstructible from the live buffers and
// ledger, never authoritative.
type RuntimeDescription struct {
	ModuleName     string            `json:"module_name"`
	Enabled        bool              `json:"enabled"`
	State          State             `json:"state"`
	AccountRuntime Summary           `json:"account_runtime"`
	StoreObject    map[string]any    `json:"store_object,omitempty"`
	StrategyInfos  map[string]string `json:"strategy_infos,omitempty"`

	// Full-description fields, left empty on the lightweight path.
	IndicatorNames map[string][]string    `json:"indicator_names,omitempty"` // unifiedSymbol -> sorted visible names
	DataMap        map[string][]DataPoint `json:"data_map,omitempty"`        // unifiedSymbol -> joined series
}

// annualizedReturn computes the annualized rate of return over the span of
// the deal history. Zero when the history is empty, the span is zero days
// or the starting balance is zero.
func annualizedReturn(deals []DealRecord, netProfit, initBalance float64) float64 {
	if len(deals) == 0 || initBalance == 0 {
		return 0
	}
	start, err1 := time.Parse("20060102", deals[0].OpenDate)
	end, err2 := time.Parse("20060102", deals[len(deals)-1].CloseDate)
	if err1 != nil || err2 != nil {
		return 0
	}
	days := int(end.Sub(start).Hours() / 24)
	if days == 0 {
		return 0
	}
	return (netProfit / initBalance) / float64(days) * 365
}

// averageProfit is the mean realized profit per deal, 0 with no deals.
func averageProfit(deals []DealRecord) float64 {
	if len(deals) == 0 {
		return 0
	}
	var sum float64
	for _, d := range deals {
		sum += d.Profit
	}
	return sum / float64(len(deals))
}

// joinSeries merges buffered bars with buffered indicator values at
// matching timestamps, per instrument. O(bars x indicator points); callers
// keep it off the hot tick/bar path.
func joinSeries(
	bars map[string][]domain.Bar,
	indicators map[int]indicatorSeries,
) map[string][]DataPoint {
	type timeIndex struct {
		order  []int64
		points map[int64]DataPoint
	}
	bySymbol := make(map[string]*timeIndex, len(bars))
	for symbol, symbolBars := range bars {
		idx := &timeIndex{points: make(map[int64]DataPoint, len(symbolBars))}
		for _, bar := range symbolBars {
			if _, ok := idx.points[bar.ActionTimestamp]; !ok {
				idx.order = append(idx.order, bar.ActionTimestamp)
			}
			idx.points[bar.ActionTimestamp] = DataPoint{
				"open":              bar.OpenPrice,
				"high":              bar.HighPrice,
				"low":               bar.LowPrice,
				"close":             bar.ClosePrice,
				"volume":            bar.Volume,
				"openInterest":      bar.OpenInterest,
				"openInterestDelta": bar.OpenInterestDelta,
				"timestamp":         bar.ActionTimestamp,
			}
		}
		bySymbol[symbol] = idx
	}

	for _, series := range indicators {
		idx, ok := bySymbol[series.unifiedSymbol]
		if !ok {
			continue
		}
		for _, tv := range series.values {
			if point, ok := idx.points[tv.Timestamp]; ok {
				point[series.name] = tv.Value
			}
		}
	}

	out := make(map[string][]DataPoint, len(bySymbol))
	for symbol, idx := range bySymbol {
		series := make([]DataPoint, 0, len(idx.order))
		for _, ts := range idx.order {
			series = append(series, idx.points[ts])
		}
		out[symbol] = series
	}
	return out
}

type indicatorSeries struct {
	unifiedSymbol string
	name          string
	visible       bool
	values        []indicator.TimeSeriesValue
}

// visibleNames lists visible indicator names per instrument, sorted.
func visibleNames(indicators map[int]indicatorSeries) map[string][]string {
	out := make(map[string][]string)
	for _, s := range indicators {
		if !s.visible {
			continue
		}
		out[s.unifiedSymbol] = append(out[s.unifiedSymbol], s.name)
	}
	for symbol := range out {
		sort.Strings(out[symbol])
	}
	return out
}
