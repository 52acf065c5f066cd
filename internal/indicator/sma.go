package indicator

import (
	"quant_go/internal/domain"
)

// SMA is a simple moving average over merged-bar close prices, or over
// another indicator's values when composed with NewSMAOf.
// A fixed ring buffer keeps the hotpath allocation-free.
type SMA struct {
	cfg    Configuration
	source Indicator // optional; nil means sample bar close prices

	values []float64
	head   int
	count  int
	sum    float64

	current Value
}

// NewSMA creates a moving average over close prices.
func NewSMA(cfg Configuration) *SMA {
	return newSMA(cfg, nil)
}

// NewSMAOf creates a moving average over another indicator's output.
// The source becomes a declared dependency and is registered first.
func NewSMAOf(cfg Configuration, source Indicator) *SMA {
	return newSMA(cfg, source)
}

func newSMA(cfg Configuration, source Indicator) *SMA {
	if cfg.NumOfUnits <= 0 {
		cfg.NumOfUnits = 1
	}
	return &SMA{
		cfg:    cfg,
		source: source,
		values: make([]float64, cfg.NumOfUnits),
	}
}

// Configuration implements Indicator.
func (s *SMA) Configuration() Configuration { return s.cfg }

// Dependencies implements Indicator.
func (s *SMA) Dependencies() []Indicator {
	if s.source == nil {
		return nil
	}
	return []Indicator{s.source}
}

// Ready reports whether a full window has been observed.
func (s *SMA) Ready() bool { return s.count == s.cfg.NumOfUnits }

// Value implements Indicator. Only offset 0 is retained.
func (s *SMA) Value(offset int) Value {
	if offset != 0 {
		return Value{}
	}
	return s.current
}

// OnBar pushes the next sample into the window.
func (s *SMA) OnBar(bar domain.Bar) {
	sample := bar.ClosePrice
	if s.source != nil {
		v := s.source.Value(0)
		if v.Timestamp != bar.ActionTimestamp {
			// Source has not produced a value for this bar yet.
			return
		}
		sample = v.Val
	}

	if s.count == s.cfg.NumOfUnits {
		s.sum -= s.values[s.head]
	} else {
		s.count++
	}
	s.values[s.head] = sample
	s.sum += sample
	s.head = (s.head + 1) % s.cfg.NumOfUnits

	s.current = Value{
		Val:       s.sum / float64(s.count),
		Timestamp: bar.ActionTimestamp,
		Unstable:  s.count < s.cfg.NumOfUnits,
	}
}
