package engine

import (
	"fmt"

	"github.com/google/btree"

	"book-engine/src/fixed"
)

// levelItem orders price levels inside the btree by matching priority:
// highest price first for bids, lowest first for asks, so the tree minimum
// is always the top of book on either side.
type levelItem struct {
	level      *PriceLevel
	descending bool
}

func (it *levelItem) Less(than btree.Item) bool {
	other := than.(*levelItem)
	if it.descending {
		return it.level.Price.Cmp(other.level.Price) > 0
	}
	return it.level.Price.Cmp(other.level.Price) < 0
}

// LevelView is one (price, aggregate quantity) row of a depth snapshot.
type LevelView struct {
	Price    fixed.Price
	Quantity fixed.Quantity
}

// HalfBook is one side of the book: price levels keyed by price and ordered
// by matching priority, an orderID location cache for O(1) cancel and
// modify, and a cached best price.
//
// The location cache holds an order id exactly when that order occupies one
// slot in one level of this half; a cache hit that misses the level is a
// corruption of priority data and panics.
type HalfBook struct {
	side              Side
	levels            *btree.BTree
	locations         map[string]fixed.Price
	best              *fixed.Price
	quantityPrecision uint8
}

func NewHalfBook(side Side, quantityPrecision uint8) *HalfBook {
	return &HalfBook{
		side:              side,
		levels:            btree.New(32),
		locations:         make(map[string]fixed.Price),
		quantityPrecision: quantityPrecision,
	}
}

func (h *HalfBook) Side() Side { return h.side }

// Orders reports how many orders are resting on this side.
func (h *HalfBook) Orders() int { return len(h.locations) }

// Levels reports how many price levels exist on this side.
func (h *HalfBook) Levels() int { return h.levels.Len() }

// Contains reports whether the order id is resting on this side.
func (h *HalfBook) Contains(orderID string) bool {
	_, exists := h.locations[orderID]
	return exists
}

func (h *HalfBook) probe(price fixed.Price) *levelItem {
	return &levelItem{level: &PriceLevel{Price: price}, descending: h.side == SideBid}
}

func (h *HalfBook) getLevel(price fixed.Price) *PriceLevel {
	item := h.levels.Get(h.probe(price))
	if item == nil {
		return nil
	}
	return item.(*levelItem).level
}

// mustLevel resolves a price known to the location cache. Absence means the
// cache and the tree disagree, which is unrecoverable.
func (h *HalfBook) mustLevel(price fixed.Price) *PriceLevel {
	level := h.getLevel(price)
	if level == nil || level.Empty() {
		panic(fmt.Sprintf("%s half: level %s missing or empty while cached", h.side, price))
	}
	return level
}

// BestPrice returns the top-of-book price. The cached value is used when
// valid and recomputed from the tree minimum after an invalidating removal.
func (h *HalfBook) BestPrice() (fixed.Price, bool) {
	if h.best != nil {
		return *h.best, true
	}
	item := h.levels.Min()
	if item == nil {
		return fixed.Price{}, false
	}
	best := item.(*levelItem).level.Price
	h.best = &best
	return best, true
}

// betterThan reports whether a beats b in this side's priority order.
func (h *HalfBook) betterThan(a, b fixed.Price) bool {
	if h.side == SideBid {
		return a.Cmp(b) > 0
	}
	return a.Cmp(b) < 0
}

// AddResting inserts an order at its price, creating the level if absent.
// Validation (positive values, unused id, uniform precision) is the book's
// job; this only maintains structure.
func (h *HalfBook) AddResting(orderID string, price fixed.Price, qty fixed.Quantity) {
	level := h.getLevel(price)
	if level == nil {
		level = newPriceLevel(price, h.quantityPrecision)
		h.levels.ReplaceOrInsert(&levelItem{level: level, descending: h.side == SideBid})
	}
	level.insert(orderID, qty)
	h.locations[orderID] = price

	if h.best != nil && h.betterThan(price, *h.best) {
		h.best = &price
	} else if h.best == nil && h.levels.Len() == 1 {
		h.best = &price
	}
}

// Cancel removes a resting order in O(1) via the location cache and returns
// the freed quantity.
func (h *HalfBook) Cancel(orderID string) (fixed.Quantity, error) {
	price, exists := h.locations[orderID]
	if !exists {
		return fixed.Quantity{}, &UnknownOrderError{OrderID: orderID}
	}

	level := h.mustLevel(price)
	freed, found, nowEmpty := level.remove(orderID)
	if !found {
		panic(fmt.Sprintf("%s half: order %s cached at %s but absent from level", h.side, orderID, price))
	}
	delete(h.locations, orderID)

	if nowEmpty {
		h.dropLevel(price)
	}
	return freed, nil
}

// RestingQuantity reports an order's current remaining quantity.
func (h *HalfBook) RestingQuantity(orderID string) (fixed.Quantity, bool) {
	price, exists := h.locations[orderID]
	if !exists {
		return fixed.Quantity{}, false
	}
	return h.mustLevel(price).remaining(orderID)
}

// RestingPrice reports the price an order is resting at.
func (h *HalfBook) RestingPrice(orderID string) (fixed.Price, bool) {
	price, exists := h.locations[orderID]
	return price, exists
}

// ReduceQuantity lowers an order's remaining quantity in place, keeping its
// queue position. newQty must be positive and strictly below the current
// remaining.
func (h *HalfBook) ReduceQuantity(orderID string, newQty fixed.Quantity) error {
	price, exists := h.locations[orderID]
	if !exists {
		return &UnknownOrderError{OrderID: orderID}
	}
	level := h.mustLevel(price)

	current, found := level.remaining(orderID)
	if !found {
		panic(fmt.Sprintf("%s half: order %s cached at %s but absent from level", h.side, orderID, price))
	}
	if newQty.IsZero() || newQty.Cmp(current) >= 0 {
		return &InvalidQuantityError{OrderID: orderID, Quantity: newQty.String()}
	}

	level.reduce(orderID, newQty)
	return nil
}

// crossed reports whether the top of this half is marketable against the
// aggressor's limit: resting asks at or below a bid limit, resting bids at
// or above an ask limit.
func (h *HalfBook) crossed(best fixed.Price, limit fixed.Price) bool {
	if h.side == SideAsk {
		return best.Cmp(limit) <= 0
	}
	return best.Cmp(limit) >= 0
}

// WalkForMatching consumes liquidity in priority order, best level first and
// oldest order first within each level, until max is exhausted, the side
// empties, or the next level no longer crosses limit (nil limit means no
// price bound, as for a market order). Emptied levels are removed and the
// best-price cache is invalidated as the walk proceeds; fully consumed
// orders leave the location cache.
func (h *HalfBook) WalkForMatching(max fixed.Quantity, limit *fixed.Price) []Fill {
	var fills []Fill
	for !max.IsZero() {
		best, ok := h.BestPrice()
		if !ok {
			break
		}
		if limit != nil && !h.crossed(best, *limit) {
			break
		}

		level := h.mustLevel(best)
		levelFills, left := level.popFrontFill(max)
		for _, fill := range levelFills {
			if fill.RestingRemaining.IsZero() {
				delete(h.locations, fill.RestingID)
			}
		}
		fills = append(fills, levelFills...)
		max = left

		if level.Empty() {
			h.dropLevel(best)
		}
	}
	return fills
}

// dropLevel removes an emptied level and invalidates the best-price cache
// when the removed level was the top of book.
func (h *HalfBook) dropLevel(price fixed.Price) {
	if h.levels.Delete(h.probe(price)) == nil {
		panic(fmt.Sprintf("%s half: level %s vanished before removal", h.side, price))
	}
	if h.best != nil && h.best.Equal(price) {
		h.best = nil
	}
}

// Depth returns up to n (price, aggregate quantity) rows in priority order.
// n <= 0 means all levels.
func (h *HalfBook) Depth(n int) []LevelView {
	if n <= 0 {
		n = h.levels.Len()
	}
	views := make([]LevelView, 0, n)
	h.levels.Ascend(func(item btree.Item) bool {
		if len(views) >= n {
			return false
		}
		level := item.(*levelItem).level
		views = append(views, LevelView{Price: level.Price, Quantity: level.SumQuantity()})
		return true
	})
	return views
}

// TotalQuantity sums the aggregate quantity across all levels of this side.
func (h *HalfBook) TotalQuantity() fixed.Quantity {
	total := fixed.ZeroQuantity(h.quantityPrecision)
	h.levels.Ascend(func(item btree.Item) bool {
		total = total.Add(item.(*levelItem).level.SumQuantity())
		return true
	})
	return total
}
