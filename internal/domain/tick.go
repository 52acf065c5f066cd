package domain

// DepthLevels is the number of price/volume ladder levels carried on a tick.
const DepthLevels = 5

// Tick is a point-in-time quote snapshot for a single instrument.
// A new tick fully replaces the previous one for its symbol.
type Tick struct {
	UnifiedSymbol   string `json:"unified_symbol"`
	GatewayID       string `json:"gateway_id"`
	TradingDay      string `json:"trading_day"` // yyyyMMdd
	ActionDay       string `json:"action_day"`
	ActionTime      string `json:"action_time"`
	ActionTimestamp int64  `json:"action_timestamp"` // epoch millis

	LastPrice float64 `json:"last_price"`
	HighPrice float64 `json:"high_price"`
	LowPrice  float64 `json:"low_price"`
	OpenPrice float64 `json:"open_price"`

	Volume            int64   `json:"volume"`
	VolumeDelta       int64   `json:"volume_delta"`
	OpenInterest      float64 `json:"open_interest"`
	OpenInterestDelta float64 `json:"open_interest_delta"`
	Turnover          float64 `json:"turnover"`
	TurnoverDelta     float64 `json:"turnover_delta"`

	AskPrices  [DepthLevels]float64 `json:"ask_prices"`
	AskVolumes [DepthLevels]int64   `json:"ask_volumes"`
	BidPrices  [DepthLevels]float64 `json:"bid_prices"`
	BidVolumes [DepthLevels]int64   `json:"bid_volumes"`
}

// Bar is an aggregated OHLC candle for one sampling period.
type Bar struct {
	UnifiedSymbol   string `json:"unified_symbol"`
	GatewayID       string `json:"gateway_id"`
	TradingDay      string `json:"trading_day"`
	ActionDay       string `json:"action_day"`
	ActionTime      string `json:"action_time"`
	ActionTimestamp int64  `json:"action_timestamp"`

	OpenPrice  float64 `json:"open_price"`
	HighPrice  float64 `json:"high_price"`
	LowPrice   float64 `json:"low_price"`
	ClosePrice float64 `json:"close_price"`

	Volume            int64   `json:"volume"`
	OpenInterest      float64 `json:"open_interest"`
	OpenInterestDelta float64 `json:"open_interest_delta"`
}

// IsEndOfTradingDay reports whether the bar closes the day session.
// Times are HH:mm:ss strings, so lexical comparison matches time order.
func (b Bar) IsEndOfTradingDay() bool {
	return b.ActionTime >= "15:00:00" && b.ActionTime < "20:00:00"
}
