package engine

import (
	"fmt"

	"book-engine/src/fixed"
)

type levelEntry struct {
	OrderID   string
	Remaining fixed.Quantity
}

// Fill is one execution taken from the front of a price level during
// matching. RestingRemaining is the resting order's quantity after the fill;
// zero means the resting order is done and must leave the book.
type Fill struct {
	RestingID        string
	Price            fixed.Price
	Quantity         fixed.Quantity
	RestingRemaining fixed.Quantity
}

// PriceLevel is the FIFO queue of resting orders sharing one price. The
// queue order is strict arrival order; sum always equals the total of the
// entries' remaining quantities.
type PriceLevel struct {
	Price fixed.Price
	queue []levelEntry
	sum   fixed.Quantity
}

func newPriceLevel(price fixed.Price, quantityPrecision uint8) *PriceLevel {
	return &PriceLevel{
		Price: price,
		sum:   fixed.ZeroQuantity(quantityPrecision),
	}
}

func (l *PriceLevel) Len() int                    { return len(l.queue) }
func (l *PriceLevel) Empty() bool                 { return len(l.queue) == 0 }
func (l *PriceLevel) SumQuantity() fixed.Quantity { return l.sum }

// insert appends to the queue tail, preserving time priority of everything
// already resting here.
func (l *PriceLevel) insert(orderID string, qty fixed.Quantity) {
	l.queue = append(l.queue, levelEntry{OrderID: orderID, Remaining: qty})
	l.sum = l.sum.Add(qty)
}

// remove deletes the entry from anywhere in the queue. It returns the freed
// quantity and whether the level is now empty.
func (l *PriceLevel) remove(orderID string) (fixed.Quantity, bool, bool) {
	for i := range l.queue {
		if l.queue[i].OrderID == orderID {
			freed := l.queue[i].Remaining
			l.queue = append(l.queue[:i], l.queue[i+1:]...)
			l.sum = l.sum.Sub(freed)
			return freed, true, len(l.queue) == 0
		}
	}
	return fixed.Quantity{}, false, len(l.queue) == 0
}

// remaining reports the entry's current remaining quantity.
func (l *PriceLevel) remaining(orderID string) (fixed.Quantity, bool) {
	for i := range l.queue {
		if l.queue[i].OrderID == orderID {
			return l.queue[i].Remaining, true
		}
	}
	return fixed.Quantity{}, false
}

// reduce lowers an entry's remaining quantity in place. The entry keeps its
// queue position, so time priority is preserved. The caller validates that
// newQty is positive and strictly below the current remaining.
func (l *PriceLevel) reduce(orderID string, newQty fixed.Quantity) bool {
	for i := range l.queue {
		if l.queue[i].OrderID == orderID {
			delta := l.queue[i].Remaining.Sub(newQty)
			l.queue[i].Remaining = newQty
			l.sum = l.sum.Sub(delta)
			return true
		}
	}
	return false
}

// popFrontFill consumes entries oldest-first until max is exhausted or the
// level empties, producing one Fill per touched entry. It returns the fills
// and whatever portion of max is left over.
func (l *PriceLevel) popFrontFill(max fixed.Quantity) ([]Fill, fixed.Quantity) {
	var fills []Fill
	for !max.IsZero() && len(l.queue) > 0 {
		head := &l.queue[0]
		if head.Remaining.IsZero() {
			panic(fmt.Sprintf("price level %s: empty entry %s at queue head", l.Price, head.OrderID))
		}

		take := max.Min(head.Remaining)
		head.Remaining = head.Remaining.Sub(take)
		l.sum = l.sum.Sub(take)
		max = max.Sub(take)

		fills = append(fills, Fill{
			RestingID:        head.OrderID,
			Price:            l.Price,
			Quantity:         take,
			RestingRemaining: head.Remaining,
		})

		if head.Remaining.IsZero() {
			l.queue = l.queue[1:]
		}
	}
	return fills, max
}
