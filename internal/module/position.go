package module

import "quant_go/internal/domain"

// Position is one logical position bucket: holding direction x instrument,
// split into today's and yesterday's lots for venues that settle them
// differently.
type Position struct {
	Contract  domain.Contract  `json:"contract"`
	Direction domain.Direction `json:"direction"` // holding side

	TdVolume int `json:"td_volume"` // lots opened today
	YdVolume int `json:"yd_volume"` // lots carried from previous days
	TdFrozen int `json:"td_frozen"` // today's lots reserved by in-flight closes
	YdFrozen int `json:"yd_frozen"`

	OpenPrice float64 `json:"open_price"` // volume-weighted average entry
}

// Volume is the total held lots.
func (p *Position) Volume() int { return p.TdVolume + p.YdVolume }

// Available is the total closable volume not reserved by in-flight orders.
func (p *Position) Available() int { return p.Volume() - p.TdFrozen - p.YdFrozen }

// TdAvailable is today's closable volume.
func (p *Position) TdAvailable() int { return p.TdVolume - p.TdFrozen }

// YdAvailable is yesterday's closable volume.
func (p *Position) YdAvailable() int { return p.YdVolume - p.YdFrozen }

// freeze reserves closing volume against the bucket the offset flag names,
// preventing a concurrent request from double-closing the same lots.
func (p *Position) freeze(flag domain.OffsetFlag, volume int) {
	switch flag {
	case domain.OffsetCloseToday:
		p.TdFrozen += volume
	case domain.OffsetCloseYesterday:
		p.YdFrozen += volume
	case domain.OffsetClose:
		// Yesterday's lots close first under exchange FIFO rules.
		yd := min(volume, p.YdAvailable())
		p.YdFrozen += yd
		p.TdFrozen += volume - yd
	}
}

// unfreeze releases reserved volume, e.g. after a cancel or rejection.
func (p *Position) unfreeze(flag domain.OffsetFlag, volume int) {
	switch flag {
	case domain.OffsetCloseToday:
		p.TdFrozen = max(0, p.TdFrozen-volume)
	case domain.OffsetCloseYesterday:
		p.YdFrozen = max(0, p.YdFrozen-volume)
	case domain.OffsetClose:
		yd := min(volume, p.YdFrozen)
		p.YdFrozen -= yd
		p.TdFrozen = max(0, p.TdFrozen-(volume-yd))
	}
}

// reduce removes closed lots from the bucket the offset flag names,
// releasing the matching frozen amount.
func (p *Position) reduce(flag domain.OffsetFlag, volume int) {
	switch flag {
	case domain.OffsetCloseToday:
		p.TdVolume = max(0, p.TdVolume-volume)
		p.TdFrozen = max(0, p.TdFrozen-volume)
	case domain.OffsetCloseYesterday:
		p.YdVolume = max(0, p.YdVolume-volume)
		p.YdFrozen = max(0, p.YdFrozen-volume)
	default:
		yd := min(volume, p.YdVolume)
		p.YdVolume -= yd
		p.YdFrozen = max(0, p.YdFrozen-yd)
		td := volume - yd
		p.TdVolume = max(0, p.TdVolume-td)
		p.TdFrozen = max(0, p.TdFrozen-td)
	}
}

// add merges newly opened lots into today's bucket, re-averaging the entry.
func (p *Position) add(price float64, volume int) {
	total := p.Volume() + volume
	if total > 0 {
		p.OpenPrice = (p.OpenPrice*float64(p.Volume()) + price*float64(volume)) / float64(total)
	}
	p.TdVolume += volume
}

// rollTradingDay moves today's lots into the yesterday bucket.
func (p *Position) rollTradingDay() {
	p.YdVolume += p.TdVolume
	p.TdVolume = 0
	p.TdFrozen = 0
	p.YdFrozen = 0
}
