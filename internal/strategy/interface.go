// Package strategy defines the contract between trading strategies and the
// module event hub, plus the trade-intent protocol strategies use to place
// orders asynchronously.
package strategy

import (
	"log/slog"
	"time"

	"quant_go/internal/domain"
	"quant_go/internal/indicator"
)

// Context is the hub surface exposed to strategies and trade intents.
// Implemented by module.Hub.
type Context interface {
	// Contract resolves a bound instrument; ErrUnknownInstrument otherwise.
	Contract(unifiedSymbol string) (domain.Contract, error)

	// SubmitOrder runs the full submission pipeline and returns the
	// generated origin order id, or ok=false on any abort path
	// ("declined", as opposed to "sent").
	SubmitOrder(contract domain.Contract, op domain.SignalOperation, priceType domain.PriceType, volume int, price float64) (string, bool)

	// SubmitIntent installs a trade intent for the intent's instrument,
	// replacing any live intent on the same instrument.
	SubmitIntent(intent *TradeIntent)

	// CancelOrder withdraws a tracked outstanding order. Logged no-op if
	// the id is unknown or the module is not in an ordering state.
	CancelOrder(originOrderID string)

	// IsOrderWaitTimeout reports whether a tracked order has been
	// outstanding longer than timeout. Pure query, no side effect.
	IsOrderWaitTimeout(originOrderID string, timeout time.Duration) bool

	// RegisterIndicator registers an indicator and its dependencies with
	// the module runtime, which then feeds and buffers it.
	RegisterIndicator(ind indicator.Indicator) error

	// DefaultVolume is the module's configured default order size.
	DefaultVolume() int

	// Disable stops the module from issuing further orders.
	Disable()

	Logger() *slog.Logger
}

// TradeStrategy receives the event stream routed by the hub. Calls for a
// given instrument are serialized by the hub's caller contract; no
// internal locking is required for per-instrument state.
type TradeStrategy interface {
	OnTick(tick domain.Tick)
	OnMergedBar(bar domain.Bar)
	OnOrder(ack domain.OrderAck)
	OnTrade(trade domain.Trade)

	// StoreObject is strategy state carried into runtime snapshots.
	StoreObject() map[string]any
	// Infos are human-readable key/value pairs for monitoring.
	Infos() map[string]string

	SetContext(ctx Context)
}
