package domain

// Direction is the side of an order or position.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Factor returns +1 for buy and -1 for sell. Used for price nudging and P&L signs.
func (d Direction) Factor() float64 {
	if d == DirectionSell {
		return -1
	}
	return 1
}

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// OffsetFlag tells the venue whether an order opens or closes a position,
// and which position bucket it closes against.
type OffsetFlag string

const (
	OffsetOpen           OffsetFlag = "OPEN"
	OffsetClose          OffsetFlag = "CLOSE"
	OffsetCloseToday     OffsetFlag = "CLOSE_TODAY"
	OffsetCloseYesterday OffsetFlag = "CLOSE_YESTERDAY"
)

// IsClose reports whether the flag closes an existing position.
func (f OffsetFlag) IsClose() bool {
	return f == OffsetClose || f == OffsetCloseToday || f == OffsetCloseYesterday
}

// SignalOperation is a strategy-level trading instruction: side x open/close.
type SignalOperation string

const (
	BuyOpen   SignalOperation = "BUY_OPEN"
	SellOpen  SignalOperation = "SELL_OPEN"
	BuyClose  SignalOperation = "BUY_CLOSE"
	SellClose SignalOperation = "SELL_CLOSE"
)

// IsBuy reports whether the operation buys.
func (op SignalOperation) IsBuy() bool {
	return op == BuyOpen || op == BuyClose
}

// IsOpen reports whether the operation opens new exposure.
func (op SignalOperation) IsOpen() bool {
	return op == BuyOpen || op == SellOpen
}

// Direction resolves the order side for this operation.
func (op SignalOperation) Direction() Direction {
	if op.IsBuy() {
		return DirectionBuy
	}
	return DirectionSell
}

// ClosingDirection is the side of the position this operation would close.
// A buy-close covers a short position; a sell-close exits a long position.
func (op SignalOperation) ClosingDirection() Direction {
	return op.Direction().Opposite()
}

// PriceType selects how the concrete order price is resolved from market data.
type PriceType string

const (
	// AnyPrice submits at market; the venue ignores the price field.
	AnyPrice PriceType = "ANY_PRICE"
	// OppositePrice crosses the spread: best ask for buys, best bid for sells.
	OppositePrice PriceType = "OPP_PRICE"
	// LastPrice uses the latest traded price.
	LastPrice PriceType = "LAST_PRICE"
	// WaitingPrice queues at own side: best bid for buys, best ask for sells.
	WaitingPrice PriceType = "WAITING_PRICE"
	// SignalPrice uses the price carried on the signal itself.
	SignalPrice PriceType = "SIGNAL_PRICE"
)

// ResolvePrice turns the price type into a concrete price using the current tick.
func (pt PriceType) ResolvePrice(tick Tick, op SignalOperation, signalPrice float64) float64 {
	switch pt {
	case AnyPrice:
		return 0
	case OppositePrice:
		if op.IsBuy() {
			return tick.AskPrices[0]
		}
		return tick.BidPrices[0]
	case WaitingPrice:
		if op.IsBuy() {
			return tick.BidPrices[0]
		}
		return tick.AskPrices[0]
	case SignalPrice:
		return signalPrice
	default:
		return tick.LastPrice
	}
}

// Order attributes fixed by this system for every submission.
type (
	TimeCondition       string
	OrderPriceType      string
	HedgeFlag           string
	VolumeCondition     string
	ForceCloseReason    string
	ContingentCondition string
)

const (
	TimeConditionIOC TimeCondition = "IOC" // immediate-or-cancel, used for market orders
	TimeConditionGFD TimeCondition = "GFD" // good-for-day

	OrderPriceMarket OrderPriceType = "MARKET"
	OrderPriceLimit  OrderPriceType = "LIMIT"

	HedgeSpeculation HedgeFlag = "SPECULATION"

	VolumeAny VolumeCondition = "ANY_VOLUME"

	ForceCloseNone ForceCloseReason = "NOT_FORCE_CLOSE"

	ContingentImmediately ContingentCondition = "IMMEDIATELY"
)

// SubmitOrderReq is the full order request dispatched to a venue account.
type SubmitOrderReq struct {
	OriginOrderID       string              `json:"origin_order_id"`
	Contract            Contract            `json:"contract"`
	GatewayID           string              `json:"gateway_id"`
	Direction           Direction           `json:"direction"`
	OffsetFlag          OffsetFlag          `json:"offset_flag"`
	Volume              int                 `json:"volume"`
	Price               float64             `json:"price"`
	HedgeFlag           HedgeFlag           `json:"hedge_flag"`
	TimeCondition       TimeCondition       `json:"time_condition"`
	OrderPriceType      OrderPriceType      `json:"order_price_type"`
	VolumeCondition     VolumeCondition     `json:"volume_condition"`
	ForceCloseReason    ForceCloseReason    `json:"force_close_reason"`
	ContingentCondition ContingentCondition `json:"contingent_condition"`
	ActionTimestamp     int64               `json:"action_timestamp"`
	MinVolume           int                 `json:"min_volume"`
}

// CancelOrderReq asks a venue to withdraw an outstanding order.
type CancelOrderReq struct {
	GatewayID     string `json:"gateway_id"`
	OriginOrderID string `json:"origin_order_id"`
}

// OrderAck is the venue's report on a submitted order.
type OrderAck struct {
	OriginOrderID string   `json:"origin_order_id"`
	Contract      Contract `json:"contract"`
	Valid         bool     `json:"valid"` // false means the venue rejected the order outright
	Done          bool     `json:"done"`  // terminal: fully traded, canceled or expired
	TradedVolume  int      `json:"traded_volume"`
	StatusMsg     string   `json:"status_msg"`
}

// MockOrderID marks simulated fills that bypass normal order tracking.
const MockOrderID = "mockOrder"

// Trade is an execution fill reported by a venue.
type Trade struct {
	OriginOrderID string     `json:"origin_order_id"`
	Contract      Contract   `json:"contract"`
	Direction     Direction  `json:"direction"`
	OffsetFlag    OffsetFlag `json:"offset_flag"`
	Price         float64    `json:"price"`
	Volume        int        `json:"volume"`
	TradeDate     string     `json:"trade_date"` // yyyyMMdd
	TradeTime     string     `json:"trade_time"`
	TradingDay    string     `json:"trading_day"`
}
