package engine

import (
	"errors"
	"testing"
)

func TestHalfBookBestPriceOrdering(t *testing.T) {
	bids := NewHalfBook(SideBid, 0)
	bids.AddResting("b1", price("100.50"), qty("100"))
	bids.AddResting("b2", price("100.60"), qty("200"))
	bids.AddResting("b3", price("100.40"), qty("300"))

	best, ok := bids.BestPrice()
	if !ok {
		t.Fatal("Should have best bid")
	}
	if !best.Equal(price("100.60")) {
		t.Errorf("Expected best bid 100.60, got: %s", best)
	}

	asks := NewHalfBook(SideAsk, 0)
	asks.AddResting("a1", price("100.70"), qty("100"))
	asks.AddResting("a2", price("100.65"), qty("300"))

	best, ok = asks.BestPrice()
	if !ok {
		t.Fatal("Should have best ask")
	}
	if !best.Equal(price("100.65")) {
		t.Errorf("Expected best ask 100.65, got: %s", best)
	}
}

func TestHalfBookBestPriceAfterCancellingTop(t *testing.T) {
	bids := NewHalfBook(SideBid, 0)
	bids.AddResting("b1", price("100.00"), qty("5"))
	bids.AddResting("b2", price("101.00"), qty("5"))

	if _, err := bids.Cancel("b2"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	best, ok := bids.BestPrice()
	if !ok {
		t.Fatal("Should still have a best bid")
	}
	if !best.Equal(price("100.00")) {
		t.Errorf("Expected best bid 100.00 after cancelling top, got: %s", best)
	}

	if _, err := bids.Cancel("b1"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if _, ok := bids.BestPrice(); ok {
		t.Error("Empty side should have no best price")
	}
	if bids.Levels() != 0 {
		t.Errorf("Expected no levels, got: %d", bids.Levels())
	}
}

func TestHalfBookCancelUnknownOrder(t *testing.T) {
	asks := NewHalfBook(SideAsk, 0)
	asks.AddResting("a1", price("100.00"), qty("5"))

	_, err := asks.Cancel("missing")
	var unknown *UnknownOrderError
	if !errors.As(err, &unknown) {
		t.Fatalf("Expected UnknownOrderError, got: %v", err)
	}

	// state untouched
	if asks.Orders() != 1 {
		t.Errorf("Expected 1 resting order, got: %d", asks.Orders())
	}
	if !asks.TotalQuantity().Equal(qty("5")) {
		t.Errorf("Expected total quantity 5, got: %s", asks.TotalQuantity())
	}
}

func TestHalfBookCancelFreesQuantity(t *testing.T) {
	bids := NewHalfBook(SideBid, 0)
	bids.AddResting("b1", price("100.00"), qty("7"))
	bids.AddResting("b2", price("100.00"), qty("3"))

	freed, err := bids.Cancel("b1")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if !freed.Equal(qty("7")) {
		t.Errorf("Expected freed 7, got: %s", freed)
	}
	if bids.Contains("b1") {
		t.Error("Cancelled order should leave the location cache")
	}
	if !bids.TotalQuantity().Equal(qty("3")) {
		t.Errorf("Expected total 3, got: %s", bids.TotalQuantity())
	}
}

func TestHalfBookReduceQuantityValidation(t *testing.T) {
	bids := NewHalfBook(SideBid, 0)
	bids.AddResting("b1", price("100.00"), qty("5"))

	var invalid *InvalidQuantityError
	if err := bids.ReduceQuantity("b1", qty("5")); !errors.As(err, &invalid) {
		t.Errorf("Reduce to equal quantity should fail, got: %v", err)
	}
	if err := bids.ReduceQuantity("b1", qty("9")); !errors.As(err, &invalid) {
		t.Errorf("Reduce to larger quantity should fail, got: %v", err)
	}

	var unknown *UnknownOrderError
	if err := bids.ReduceQuantity("missing", qty("1")); !errors.As(err, &unknown) {
		t.Errorf("Expected UnknownOrderError, got: %v", err)
	}

	if err := bids.ReduceQuantity("b1", qty("2")); err != nil {
		t.Fatalf("Valid reduce failed: %v", err)
	}
	remaining, ok := bids.RestingQuantity("b1")
	if !ok || !remaining.Equal(qty("2")) {
		t.Errorf("Expected remaining 2, got: %s", remaining)
	}
}

func TestHalfBookWalkRespectsLimit(t *testing.T) {
	asks := NewHalfBook(SideAsk, 0)
	asks.AddResting("a1", price("100.00"), qty("2"))
	asks.AddResting("a2", price("101.00"), qty("1"))
	asks.AddResting("a3", price("102.00"), qty("4"))

	limit := price("101.00")
	fills := asks.WalkForMatching(qty("6"), &limit)

	if len(fills) != 2 {
		t.Fatalf("Expected 2 fills, got: %d", len(fills))
	}
	if !fills[0].Price.Equal(price("100.00")) || !fills[1].Price.Equal(price("101.00")) {
		t.Errorf("Fills should walk levels in priority order: %+v", fills)
	}

	// 102 level must be untouched, consumed levels must be gone
	if asks.Levels() != 1 {
		t.Errorf("Expected 1 level left, got: %d", asks.Levels())
	}
	best, _ := asks.BestPrice()
	if !best.Equal(price("102.00")) {
		t.Errorf("Expected best ask 102.00, got: %s", best)
	}
	if asks.Contains("a1") || asks.Contains("a2") {
		t.Error("Consumed orders should leave the location cache")
	}
}

func TestHalfBookWalkWithoutLimitDrainsSide(t *testing.T) {
	bids := NewHalfBook(SideBid, 0)
	bids.AddResting("b1", price("101.00"), qty("2"))
	bids.AddResting("b2", price("100.00"), qty("2"))

	fills := bids.WalkForMatching(qty("10"), nil)

	if len(fills) != 2 {
		t.Fatalf("Expected 2 fills, got: %d", len(fills))
	}
	if bids.Orders() != 0 || bids.Levels() != 0 {
		t.Errorf("Side should be drained, orders=%d levels=%d", bids.Orders(), bids.Levels())
	}
}

func TestHalfBookWalkPartialHeadKeepsOrder(t *testing.T) {
	asks := NewHalfBook(SideAsk, 0)
	asks.AddResting("a1", price("100.00"), qty("5"))

	fills := asks.WalkForMatching(qty("2"), nil)

	if len(fills) != 1 {
		t.Fatalf("Expected 1 fill, got: %d", len(fills))
	}
	if !asks.Contains("a1") {
		t.Error("Partially filled order must stay on the book")
	}
	remaining, _ := asks.RestingQuantity("a1")
	if !remaining.Equal(qty("3")) {
		t.Errorf("Expected remaining 3, got: %s", remaining)
	}
}

func TestHalfBookDepthOrder(t *testing.T) {
	bids := NewHalfBook(SideBid, 0)
	bids.AddResting("b1", price("99.00"), qty("1"))
	bids.AddResting("b2", price("101.00"), qty("2"))
	bids.AddResting("b3", price("100.00"), qty("3"))
	bids.AddResting("b4", price("100.00"), qty("4"))

	depth := bids.Depth(2)
	if len(depth) != 2 {
		t.Fatalf("Expected 2 levels, got: %d", len(depth))
	}
	if !depth[0].Price.Equal(price("101.00")) {
		t.Errorf("Expected first level 101.00, got: %s", depth[0].Price)
	}
	if !depth[1].Price.Equal(price("100.00")) || !depth[1].Quantity.Equal(qty("7")) {
		t.Errorf("Expected second level 100.00 x 7, got: %s x %s", depth[1].Price, depth[1].Quantity)
	}

	all := bids.Depth(0)
	if len(all) != 3 {
		t.Errorf("Depth(0) should return all levels, got: %d", len(all))
	}
}
