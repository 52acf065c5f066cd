package domain

import "errors"

var (
	// ErrInvalidConfiguration is returned for fatal construction-time mistakes,
	// such as an empty index basket. Fail fast, never recover.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownInstrument is returned when an operation references a symbol
	// the module never bound. The operation is refused and logged.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrNoMarketData is returned when an order is requested before any tick
	// arrived for the instrument; there is nothing to price against.
	ErrNoMarketData = errors.New("no market data")

	// ErrInsufficientBalance is returned when the ledger cannot cover an order.
	// The order is aborted and the module auto-disables.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrFilterRejected is returned when the order-request filter vetoes an
	// order. The order is aborted; the module stays enabled.
	ErrFilterRejected = errors.New("order rejected by filter")

	// ErrInvalidState is returned when a cancel is requested while the module
	// is not in an ordering state. The request is a logged no-op.
	ErrInvalidState = errors.New("invalid module state")

	// ErrDuplicateIndicator is returned when two different visible indicators
	// derive the same name on the same instrument.
	ErrDuplicateIndicator = errors.New("duplicate indicator name")

	// ErrCircularDependency is returned when indicator dependencies form a
	// cycle. Registration fails fast instead of recursing forever.
	ErrCircularDependency = errors.New("circular indicator dependency")
)
