package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"book-engine/src/fixed"
	"book-engine/src/instrument"
)

// OrderBook holds the bid and ask halves for one instrument and runs the
// matching algorithm between them.
//
// The book is deliberately unsynchronized: price-time priority only means
// something if events are applied in exactly their arrival order, so the
// caller (the Exchange shard, or a test) feeds it one operation at a time.
// Every operation either fully applies or leaves the book untouched.
type OrderBook struct {
	inst     instrument.Instrument
	bids     *HalfBook
	asks     *HalfBook
	tradeSeq uint64
}

func NewOrderBook(inst instrument.Instrument) *OrderBook {
	return &OrderBook{
		inst: inst,
		bids: NewHalfBook(SideBid, inst.QuantityPrecision),
		asks: NewHalfBook(SideAsk, inst.QuantityPrecision),
	}
}

func (b *OrderBook) Instrument() instrument.Instrument { return b.inst }

func (b *OrderBook) half(side Side) *HalfBook {
	if side == SideBid {
		return b.bids
	}
	return b.asks
}

// Contains reports whether the order id is resting on either side.
func (b *OrderBook) Contains(orderID string) bool {
	return b.bids.Contains(orderID) || b.asks.Contains(orderID)
}

// RestingOrders counts orders resting on both sides.
func (b *OrderBook) RestingOrders() int {
	return b.bids.Orders() + b.asks.Orders()
}

// AddLimitOrder matches the order against the opposite side while it
// crosses, at the resting orders' prices, then rests any remainder at the
// tail of its own price level.
func (b *OrderBook) AddLimitOrder(order LimitOrder) (*OrderResult, error) {
	if !order.Side.Valid() {
		return nil, &InvalidSideError{OrderID: order.ID, Side: string(order.Side)}
	}
	if order.Price.Precision() != b.inst.PricePrecision {
		return nil, &fixed.PrecisionMismatchError{A: order.Price.Precision(), B: b.inst.PricePrecision}
	}
	if !order.Price.IsPositive() {
		return nil, &InvalidPriceError{OrderID: order.ID, Price: order.Price.String()}
	}
	if order.Quantity.Precision() != b.inst.QuantityPrecision {
		return nil, &fixed.PrecisionMismatchError{A: order.Quantity.Precision(), B: b.inst.QuantityPrecision}
	}
	if order.Quantity.IsZero() {
		return nil, &InvalidQuantityError{OrderID: order.ID, Quantity: order.Quantity.String()}
	}
	if b.Contains(order.ID) {
		return nil, &DuplicateOrderError{OrderID: order.ID}
	}

	limit := order.Price
	fills := b.half(order.Side.Opposite()).WalkForMatching(order.Quantity, &limit)
	trades, filled := b.tradesFromFills(order.ID, order.Side, fills)
	remaining := order.Quantity.Sub(filled)

	status := StatusFilled
	if !remaining.IsZero() {
		// The remainder could not have matched anything at its price, so
		// joining the tail of its level loses no priority.
		b.half(order.Side).AddResting(order.ID, order.Price, remaining)
		if filled.IsZero() {
			status = StatusResting
		} else {
			status = StatusPartialFill
		}
	}

	return &OrderResult{
		OrderID:           order.ID,
		Status:            status,
		FilledQuantity:    filled,
		RemainingQuantity: remaining,
		Trades:            trades,
	}, nil
}

// AddMarketOrder matches with no price bound. An unfilled residual is
// discarded and reported, never queued.
func (b *OrderBook) AddMarketOrder(order MarketOrder) (*OrderResult, error) {
	if !order.Side.Valid() {
		return nil, &InvalidSideError{OrderID: order.ID, Side: string(order.Side)}
	}
	if order.Quantity.Precision() != b.inst.QuantityPrecision {
		return nil, &fixed.PrecisionMismatchError{A: order.Quantity.Precision(), B: b.inst.QuantityPrecision}
	}
	if order.Quantity.IsZero() {
		return nil, &InvalidQuantityError{OrderID: order.ID, Quantity: order.Quantity.String()}
	}
	if b.Contains(order.ID) {
		return nil, &DuplicateOrderError{OrderID: order.ID}
	}

	fills := b.half(order.Side.Opposite()).WalkForMatching(order.Quantity, nil)
	trades, filled := b.tradesFromFills(order.ID, order.Side, fills)
	remaining := order.Quantity.Sub(filled)

	status := StatusFilled
	switch {
	case filled.IsZero():
		status = StatusUnfilled
	case !remaining.IsZero():
		status = StatusPartialFill
	}

	return &OrderResult{
		OrderID:           order.ID,
		Status:            status,
		FilledQuantity:    filled,
		RemainingQuantity: remaining,
		Trades:            trades,
	}, nil
}

// Cancel removes a resting order from whichever side holds it and returns
// the freed quantity.
func (b *OrderBook) Cancel(orderID string) (fixed.Quantity, error) {
	if b.bids.Contains(orderID) {
		return b.bids.Cancel(orderID)
	}
	if b.asks.Contains(orderID) {
		return b.asks.Cancel(orderID)
	}
	return fixed.Quantity{}, &UnknownOrderError{OrderID: orderID}
}

// Modify amends a resting order. A pure quantity decrease is applied in
// place and keeps time priority. A price change, or a quantity increase, is
// a cancel plus reinsert: the order re-enters as a fresh aggressor at the
// tail of its new level, and may match on the way in.
func (b *OrderBook) Modify(orderID string, newPrice *fixed.Price, newQty *fixed.Quantity) (*OrderResult, error) {
	if newPrice == nil && newQty == nil {
		return nil, ErrEmptyModify
	}

	side := SideBid
	half := b.bids
	if !half.Contains(orderID) {
		side = SideAsk
		half = b.asks
		if !half.Contains(orderID) {
			return nil, &UnknownOrderError{OrderID: orderID}
		}
	}

	currentPrice, _ := half.RestingPrice(orderID)
	currentQty, _ := half.RestingQuantity(orderID)

	price := currentPrice
	if newPrice != nil {
		if newPrice.Precision() != b.inst.PricePrecision {
			return nil, &fixed.PrecisionMismatchError{A: newPrice.Precision(), B: b.inst.PricePrecision}
		}
		if !newPrice.IsPositive() {
			return nil, &InvalidPriceError{OrderID: orderID, Price: newPrice.String()}
		}
		price = *newPrice
	}

	qty := currentQty
	if newQty != nil {
		if newQty.Precision() != b.inst.QuantityPrecision {
			return nil, &fixed.PrecisionMismatchError{A: newQty.Precision(), B: b.inst.QuantityPrecision}
		}
		if newQty.IsZero() {
			return nil, &InvalidQuantityError{OrderID: orderID, Quantity: newQty.String()}
		}
		qty = *newQty
	}

	if price.Equal(currentPrice) && qty.Cmp(currentQty) < 0 {
		if err := half.ReduceQuantity(orderID, qty); err != nil {
			return nil, err
		}
		return &OrderResult{
			OrderID:           orderID,
			Status:            StatusResting,
			FilledQuantity:    fixed.ZeroQuantity(b.inst.QuantityPrecision),
			RemainingQuantity: qty,
		}, nil
	}
	if price.Equal(currentPrice) && qty.Equal(currentQty) {
		if newQty != nil {
			return nil, &InvalidQuantityError{OrderID: orderID, Quantity: qty.String()}
		}
		return nil, ErrEmptyModify
	}

	// All inputs validated above, so the reinsert cannot be rejected and
	// the cancel+add pair is atomic from the caller's view.
	if _, err := half.Cancel(orderID); err != nil {
		return nil, err
	}
	return b.AddLimitOrder(LimitOrder{ID: orderID, Side: side, Price: price, Quantity: qty})
}

// BestBid returns the top bid price and its aggregate quantity.
func (b *OrderBook) BestBid() (fixed.Price, fixed.Quantity, bool) {
	return b.bestOf(b.bids)
}

// BestAsk returns the top ask price and its aggregate quantity.
func (b *OrderBook) BestAsk() (fixed.Price, fixed.Quantity, bool) {
	return b.bestOf(b.asks)
}

func (b *OrderBook) bestOf(h *HalfBook) (fixed.Price, fixed.Quantity, bool) {
	best, ok := h.BestPrice()
	if !ok {
		return fixed.Price{}, fixed.Quantity{}, false
	}
	return best, h.mustLevel(best).SumQuantity(), true
}

// Depth returns up to n levels of one side in priority order. n <= 0 means
// all levels.
func (b *OrderBook) Depth(side Side, n int) []LevelView {
	return b.half(side).Depth(n)
}

// SideQuantity sums all resting quantity on one side, for diagnostics and
// conservation checks.
func (b *OrderBook) SideQuantity(side Side) fixed.Quantity {
	return b.half(side).TotalQuantity()
}

// String renders the book for operational diagnostics: asks from worst to
// best, a separator, then bids from best to worst.
func (b *OrderBook) String() string {
	var sb strings.Builder
	sb.WriteString(b.inst.String())

	asks := b.asks.Depth(0)
	bids := b.bids.Depth(0)
	sb.WriteString(" (bids=")
	sb.WriteString(strconv.Itoa(b.bids.Orders()))
	sb.WriteString(" asks=")
	sb.WriteString(strconv.Itoa(b.asks.Orders()))
	sb.WriteString(")\n")

	for i := len(asks) - 1; i >= 0; i-- {
		sb.WriteString("  ASK ")
		sb.WriteString(asks[i].Price.String())
		sb.WriteString(" x ")
		sb.WriteString(asks[i].Quantity.String())
		sb.WriteString("\n")
	}
	sb.WriteString("  ----\n")
	for _, level := range bids {
		sb.WriteString("  BID ")
		sb.WriteString(level.Price.String())
		sb.WriteString(" x ")
		sb.WriteString(level.Quantity.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

func (b *OrderBook) tradesFromFills(aggressorID string, side Side, fills []Fill) ([]Trade, fixed.Quantity) {
	filled := fixed.ZeroQuantity(b.inst.QuantityPrecision)
	if len(fills) == 0 {
		return nil, filled
	}
	now := time.Now().UnixMilli()
	trades := make([]Trade, 0, len(fills))
	for _, fill := range fills {
		b.tradeSeq++
		trades = append(trades, Trade{
			TradeID:       uuid.New().String(),
			Price:         fill.Price,
			Quantity:      fill.Quantity,
			AggressorID:   aggressorID,
			RestingID:     fill.RestingID,
			AggressorSide: side,
			Sequence:      b.tradeSeq,
			Timestamp:     now,
		})
		filled = filled.Add(fill.Quantity)
	}
	return trades, filled
}
