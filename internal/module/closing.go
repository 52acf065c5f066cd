package module

import "quant_go/internal/domain"

// ClosingPolicy splits a requested operation into a concrete offset flag
// and adjusted volume based on the current position. Pluggable per module.
type ClosingPolicy interface {
	Name() string
	// Resolve returns the offset flag and the volume to dispatch. The
	// returned volume never exceeds what the position can cover for
	// closing operations.
	Resolve(op domain.SignalOperation, pos *Position, volume int) (domain.OffsetFlag, int)
}

// ClosingPolicyByName resolves a configured policy name.
func ClosingPolicyByName(name string) ClosingPolicy {
	if name == (CloseTodayFirstPolicy{}).Name() {
		return CloseTodayFirstPolicy{}
	}
	return FIFOPolicy{}
}

// FIFOPolicy closes oldest lots first. When the position has lots carried
// from previous days the venue's plain close applies FIFO on its own; a
// pure intraday position on venues that distinguish buckets must close as
// close-today.
type FIFOPolicy struct{}

func (FIFOPolicy) Name() string { return "FIFO" }

func (FIFOPolicy) Resolve(op domain.SignalOperation, pos *Position, volume int) (domain.OffsetFlag, int) {
	if op.IsOpen() {
		return domain.OffsetOpen, volume
	}
	if pos == nil {
		return domain.OffsetClose, 0
	}
	if pos.YdAvailable() > 0 {
		return domain.OffsetClose, min(volume, pos.Available())
	}
	return domain.OffsetCloseToday, min(volume, pos.TdAvailable())
}

// CloseTodayFirstPolicy closes today's lots before yesterday's, minimizing
// close-yesterday fees on venues that price the buckets differently.
type CloseTodayFirstPolicy struct{}

func (CloseTodayFirstPolicy) Name() string { return "CLOSE_TODAY_FIRST" }

func (CloseTodayFirstPolicy) Resolve(op domain.SignalOperation, pos *Position, volume int) (domain.OffsetFlag, int) {
	if op.IsOpen() {
		return domain.OffsetOpen, volume
	}
	if pos == nil {
		return domain.OffsetCloseToday, 0
	}
	if pos.TdAvailable() > 0 {
		return domain.OffsetCloseToday, min(volume, pos.TdAvailable())
	}
	return domain.OffsetCloseYesterday, min(volume, pos.YdAvailable())
}
