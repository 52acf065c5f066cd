package execution

import (
	"testing"

	"quant_go/internal/domain"
)

func simContract() domain.Contract {
	return domain.Contract{
		UnifiedSymbol: "rb2510@SHFE@FUTURES",
		Symbol:        "rb2510",
		Exchange:      "SHFE",
		ProductClass:  domain.ProductFutures,
		GatewayID:     "sim",
		PriceTick:     1,
		Multiplier:    10,
	}
}

func simTick(c domain.Contract, last float64) domain.Tick {
	t := domain.Tick{
		UnifiedSymbol: c.UnifiedSymbol,
		TradingDay:    "20250901",
		LastPrice:     last,
	}
	t.AskPrices[0] = last + 1
	t.BidPrices[0] = last - 1
	return t
}

type capture struct {
	acks   []domain.OrderAck
	trades []domain.Trade
}

func boundAccount() (*SimAccount, *capture) {
	rec := &capture{}
	a := NewSimAccount("sim", nil)
	a.Bind(
		func(ack domain.OrderAck) { rec.acks = append(rec.acks, ack) },
		func(trade domain.Trade) { rec.trades = append(rec.trades, trade) },
	)
	return a, rec
}

func TestSimAccount_MarketOrderFillsImmediately(t *testing.T) {
	a, rec := boundAccount()
	c := simContract()
	a.OnTick(simTick(c, 3000))

	id, err := a.SubmitOrder(domain.SubmitOrderReq{
		OriginOrderID:  "o1",
		Contract:       c,
		Direction:      domain.DirectionBuy,
		OffsetFlag:     domain.OffsetOpen,
		Volume:         2,
		OrderPriceType: domain.OrderPriceMarket,
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if id != "o1" {
		t.Errorf("Expected o1, got %s", id)
	}

	// accepted ack, then terminal ack, then the fill
	if len(rec.acks) != 2 {
		t.Fatalf("Expected 2 acks, got %d", len(rec.acks))
	}
	if !rec.acks[1].Done {
		t.Error("Expected terminal ack")
	}
	if len(rec.trades) != 1 {
		t.Fatalf("Expected 1 trade, got %d", len(rec.trades))
	}
	// Buy crosses the spread at the best ask.
	if rec.trades[0].Price != 3001 {
		t.Errorf("Expected fill at 3001, got %v", rec.trades[0].Price)
	}
	if rec.trades[0].TradingDay != "20250901" {
		t.Errorf("Expected trading day 20250901, got %s", rec.trades[0].TradingDay)
	}
}

func TestSimAccount_MarketOrderWithoutDataRejected(t *testing.T) {
	a, rec := boundAccount()

	_, err := a.SubmitOrder(domain.SubmitOrderReq{
		OriginOrderID:  "o1",
		Contract:       simContract(),
		Direction:      domain.DirectionBuy,
		Volume:         1,
		OrderPriceType: domain.OrderPriceMarket,
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	last := rec.acks[len(rec.acks)-1]
	if last.Valid {
		t.Error("Expected invalid ack")
	}
	if len(rec.trades) != 0 {
		t.Errorf("Expected no trades, got %d", len(rec.trades))
	}
}

func TestSimAccount_LimitOrderRestsUntilCrossed(t *testing.T) {
	a, rec := boundAccount()
	c := simContract()
	a.OnTick(simTick(c, 3000))

	_, err := a.SubmitOrder(domain.SubmitOrderReq{
		OriginOrderID:  "o1",
		Contract:       c,
		Direction:      domain.DirectionBuy,
		OffsetFlag:     domain.OffsetOpen,
		Volume:         1,
		Price:          2990,
		OrderPriceType: domain.OrderPriceLimit,
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if len(rec.trades) != 0 {
		t.Fatal("Expected limit order to rest")
	}
	if a.PendingCount() != 1 {
		t.Fatalf("Expected 1 pending order, got %d", a.PendingCount())
	}

	a.OnTick(simTick(c, 2995)) // still above the limit
	if len(rec.trades) != 0 {
		t.Fatal("Expected order still resting")
	}

	a.OnTick(simTick(c, 2990)) // touches the limit
	if len(rec.trades) != 1 {
		t.Fatalf("Expected fill, got %d trades", len(rec.trades))
	}
	if rec.trades[0].Price != 2990 {
		t.Errorf("Expected fill at limit 2990, got %v", rec.trades[0].Price)
	}
	if a.PendingCount() != 0 {
		t.Errorf("Expected no pending orders, got %d", a.PendingCount())
	}
}

func TestSimAccount_SellLimitCrossesUpward(t *testing.T) {
	a, rec := boundAccount()
	c := simContract()
	a.OnTick(simTick(c, 3000))

	_, _ = a.SubmitOrder(domain.SubmitOrderReq{
		OriginOrderID:  "o1",
		Contract:       c,
		Direction:      domain.DirectionSell,
		OffsetFlag:     domain.OffsetCloseToday,
		Volume:         1,
		Price:          3010,
		OrderPriceType: domain.OrderPriceLimit,
	})

	a.OnTick(simTick(c, 3012))
	if len(rec.trades) != 1 {
		t.Fatalf("Expected fill, got %d trades", len(rec.trades))
	}
	if rec.trades[0].OffsetFlag != domain.OffsetCloseToday {
		t.Errorf("Expected offset carried through, got %s", rec.trades[0].OffsetFlag)
	}
}

func TestSimAccount_CancelReleasesOrder(t *testing.T) {
	a, rec := boundAccount()
	c := simContract()
	a.OnTick(simTick(c, 3000))

	_, _ = a.SubmitOrder(domain.SubmitOrderReq{
		OriginOrderID:  "o1",
		Contract:       c,
		Direction:      domain.DirectionBuy,
		Volume:         1,
		Price:          2990,
		OrderPriceType: domain.OrderPriceLimit,
	})

	if err := a.CancelOrder(domain.CancelOrderReq{OriginOrderID: "o1"}); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	last := rec.acks[len(rec.acks)-1]
	if !last.Done || last.StatusMsg != "cancelled" {
		t.Errorf("Expected cancelled terminal ack, got %+v", last)
	}
	if a.PendingCount() != 0 {
		t.Error("Expected pending order removed")
	}

	if err := a.CancelOrder(domain.CancelOrderReq{OriginOrderID: "o1"}); err == nil {
		t.Error("Expected error cancelling unknown order")
	}
}

func TestSimAccount_RejectsMissingOriginID(t *testing.T) {
	a, _ := boundAccount()
	if _, err := a.SubmitOrder(domain.SubmitOrderReq{Contract: simContract()}); err == nil {
		t.Error("Expected error for missing origin id")
	}
}
