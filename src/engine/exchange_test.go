package engine

import (
	"errors"
	"strings"
	"testing"

	"book-engine/src/instrument"
)

func newTestExchange(t *testing.T) (*Exchange, instrument.ID, instrument.ID) {
	t.Helper()
	registry := instrument.NewRegistry()

	aapl, err := registry.Intern(instrument.Instrument{
		Symbol: "AAPL", Venue: "XNAS", PricePrecision: 2, QuantityPrecision: 0,
	})
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}
	btc, err := registry.Intern(instrument.Instrument{
		Symbol: "BTC-USD", Venue: "SIM", PricePrecision: 2, QuantityPrecision: 0,
	})
	if err != nil {
		t.Fatalf("Intern failed: %v", err)
	}

	return NewExchange(registry), aapl, btc
}

func TestExchangeBooksAreIndependent(t *testing.T) {
	exchange, aapl, btc := newTestExchange(t)

	if _, err := exchange.SubmitLimit(aapl, LimitOrder{ID: "o1", Side: SideBid, Price: price("150.00"), Quantity: qty("10")}); err != nil {
		t.Fatalf("SubmitLimit failed: %v", err)
	}
	if _, err := exchange.SubmitLimit(btc, LimitOrder{ID: "o2", Side: SideAsk, Price: price("64000.00"), Quantity: qty("1")}); err != nil {
		t.Fatalf("SubmitLimit failed: %v", err)
	}

	// a marketable ask on one instrument must not see the other's bid
	result, err := exchange.SubmitLimit(btc, LimitOrder{ID: "o3", Side: SideAsk, Price: price("149.00"), Quantity: qty("1")})
	if err != nil {
		t.Fatalf("SubmitLimit failed: %v", err)
	}
	if len(result.Trades) != 0 {
		t.Errorf("Cross-instrument match must not happen, got %d trades", len(result.Trades))
	}

	bid, _, hasBid, _, err := exchange.Quote(aapl)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if !hasBid || !bid.Price.Equal(price("150.00")) {
		t.Errorf("Expected AAPL best bid 150.00, got: %+v", bid)
	}
}

func TestExchangeCancelSearchesAllBooks(t *testing.T) {
	exchange, aapl, btc := newTestExchange(t)

	if _, err := exchange.SubmitLimit(aapl, LimitOrder{ID: "o1", Side: SideBid, Price: price("150.00"), Quantity: qty("10")}); err != nil {
		t.Fatalf("SubmitLimit failed: %v", err)
	}
	if _, err := exchange.SubmitLimit(btc, LimitOrder{ID: "o2", Side: SideAsk, Price: price("64000.00"), Quantity: qty("3")}); err != nil {
		t.Fatalf("SubmitLimit failed: %v", err)
	}

	freed, err := exchange.Cancel("o2")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !freed.Equal(qty("3")) {
		t.Errorf("Expected freed 3, got: %s", freed)
	}
	if exchange.RestingOrders() != 1 {
		t.Errorf("Expected 1 resting order, got: %d", exchange.RestingOrders())
	}

	var unknown *UnknownOrderError
	if _, err := exchange.Cancel("o2"); !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownOrderError on re-cancel, got: %v", err)
	}
}

func TestExchangeModify(t *testing.T) {
	exchange, aapl, _ := newTestExchange(t)

	if _, err := exchange.SubmitLimit(aapl, LimitOrder{ID: "o1", Side: SideBid, Price: price("150.00"), Quantity: qty("10")}); err != nil {
		t.Fatalf("SubmitLimit failed: %v", err)
	}

	newQty := qty("4")
	result, err := exchange.Modify(aapl, "o1", nil, &newQty)
	if err != nil {
		t.Fatalf("Modify failed: %v", err)
	}
	if !result.RemainingQuantity.Equal(qty("4")) {
		t.Errorf("Expected remaining 4, got: %s", result.RemainingQuantity)
	}
}

func TestExchangeDepthAndDump(t *testing.T) {
	exchange, aapl, _ := newTestExchange(t)

	orders := []LimitOrder{
		{ID: "b1", Side: SideBid, Price: price("149.00"), Quantity: qty("5")},
		{ID: "b2", Side: SideBid, Price: price("150.00"), Quantity: qty("2")},
		{ID: "a1", Side: SideAsk, Price: price("151.00"), Quantity: qty("4")},
	}
	for _, order := range orders {
		if _, err := exchange.SubmitLimit(aapl, order); err != nil {
			t.Fatalf("SubmitLimit(%s) failed: %v", order.ID, err)
		}
	}

	bids, asks, err := exchange.Depth(aapl, 10)
	if err != nil {
		t.Fatalf("Depth failed: %v", err)
	}
	if len(bids) != 2 || len(asks) != 1 {
		t.Fatalf("Expected 2 bid levels and 1 ask level, got: %d/%d", len(bids), len(asks))
	}
	if !bids[0].Price.Equal(price("150.00")) {
		t.Errorf("Expected best bid level first, got: %s", bids[0].Price)
	}

	dump, err := exchange.Dump(aapl)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(dump, "AAPL@XNAS") {
		t.Errorf("Dump should name the instrument:\n%s", dump)
	}
}

func TestExchangeUnknownInstrument(t *testing.T) {
	exchange, _, _ := newTestExchange(t)

	_, err := exchange.SubmitLimit(instrument.ID(99), LimitOrder{ID: "o1", Side: SideBid, Price: price("1.00"), Quantity: qty("1")})
	if err == nil {
		t.Fatal("Expected error for unknown instrument id")
	}
}
