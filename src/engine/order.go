package engine

import (
	"book-engine/src/fixed"
)

type Side string

const (
	SideBid Side = "BID"
	SideAsk Side = "ASK"
)

func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

func (s Side) Opposite() Side {
	if s == SideBid {
		return SideAsk
	}
	return SideBid
}

type OrderStatus string

const (
	StatusResting     OrderStatus = "RESTING"
	StatusPartialFill OrderStatus = "PARTIAL_FILL"
	StatusFilled      OrderStatus = "FILLED"
	StatusCancelled   OrderStatus = "CANCELLED"
	// StatusUnfilled marks a market order that found no opposite liquidity
	// at all; its quantity was discarded, not queued.
	StatusUnfilled OrderStatus = "UNFILLED"
)

// LimitOrder is an incoming order that may rest at its limit price.
type LimitOrder struct {
	ID       string
	Side     Side
	Price    fixed.Price
	Quantity fixed.Quantity
}

// MarketOrder is an incoming order that executes against available
// liquidity and never rests.
type MarketOrder struct {
	ID       string
	Side     Side
	Quantity fixed.Quantity
}

// Trade is one execution between an aggressor and a resting order. Trades
// are handed to the caller; the book keeps no trade history.
type Trade struct {
	TradeID       string
	Price         fixed.Price
	Quantity      fixed.Quantity
	AggressorID   string
	RestingID     string
	AggressorSide Side
	Sequence      uint64
	Timestamp     int64 // unix milliseconds
}

// OrderResult reports the outcome of a book operation: terminal status, how
// much matched, how much is left (resting for limits, discarded for
// markets), and the trades produced.
type OrderResult struct {
	OrderID           string
	Status            OrderStatus
	FilledQuantity    fixed.Quantity
	RemainingQuantity fixed.Quantity
	Trades            []Trade
}
