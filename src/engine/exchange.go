package engine

import (
	"fmt"
	"sync"

	"book-engine/src/fixed"
	"book-engine/src/instrument"
)

// bookShard pairs a book with the mutex that serializes its event stream.
// The book itself has no locking; the shard is the sequencer boundary.
type bookShard struct {
	mu   sync.Mutex
	book *OrderBook
}

// Exchange owns one order book per registered instrument. Instruments are
// fully independent: each shard applies its events one at a time, and no
// state is shared between shards.
type Exchange struct {
	registry *instrument.Registry
	mu       sync.RWMutex
	shards   map[instrument.ID]*bookShard
}

func NewExchange(registry *instrument.Registry) *Exchange {
	return &Exchange{
		registry: registry,
		shards:   make(map[instrument.ID]*bookShard),
	}
}

func (e *Exchange) Registry() *instrument.Registry { return e.registry }

func (e *Exchange) shard(id instrument.ID) (*bookShard, error) {
	e.mu.RLock()
	if s, exists := e.shards[id]; exists {
		e.mu.RUnlock()
		return s, nil
	}
	e.mu.RUnlock()

	inst, exists := e.registry.Get(id)
	if !exists {
		return nil, fmt.Errorf("unknown instrument id %d", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// edge case: double-check after acquiring write lock
	if s, exists := e.shards[id]; exists {
		return s, nil
	}
	s := &bookShard{book: NewOrderBook(inst)}
	e.shards[id] = s
	return s, nil
}

func (e *Exchange) shardsSnapshot() []*bookShard {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make([]*bookShard, 0, len(e.shards))
	for _, s := range e.shards {
		snapshot = append(snapshot, s)
	}
	return snapshot
}

// SubmitLimit applies a limit order to the instrument's book.
func (e *Exchange) SubmitLimit(id instrument.ID, order LimitOrder) (*OrderResult, error) {
	s, err := e.shard(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.AddLimitOrder(order)
}

// SubmitMarket applies a market order to the instrument's book.
func (e *Exchange) SubmitMarket(id instrument.ID, order MarketOrder) (*OrderResult, error) {
	s, err := e.shard(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.AddMarketOrder(order)
}

// Cancel removes a resting order, searching every book since the protocol
// does not carry the instrument on cancels.
func (e *Exchange) Cancel(orderID string) (fixed.Quantity, error) {
	for _, s := range e.shardsSnapshot() {
		s.mu.Lock()
		if s.book.Contains(orderID) {
			freed, err := s.book.Cancel(orderID)
			s.mu.Unlock()
			return freed, err
		}
		s.mu.Unlock()
	}
	return fixed.Quantity{}, &UnknownOrderError{OrderID: orderID}
}

// Modify amends a resting order on the instrument's book.
func (e *Exchange) Modify(id instrument.ID, orderID string, newPrice *fixed.Price, newQty *fixed.Quantity) (*OrderResult, error) {
	s, err := e.shard(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Modify(orderID, newPrice, newQty)
}

// Quote returns both sides of the top of book.
func (e *Exchange) Quote(id instrument.ID) (bid, ask LevelView, hasBid, hasAsk bool, err error) {
	s, err := e.shard(id)
	if err != nil {
		return LevelView{}, LevelView{}, false, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if price, qty, ok := s.book.BestBid(); ok {
		bid, hasBid = LevelView{Price: price, Quantity: qty}, true
	}
	if price, qty, ok := s.book.BestAsk(); ok {
		ask, hasAsk = LevelView{Price: price, Quantity: qty}, true
	}
	return bid, ask, hasBid, hasAsk, nil
}

// Depth returns up to n levels per side in priority order.
func (e *Exchange) Depth(id instrument.ID, n int) (bids, asks []LevelView, err error) {
	s, err := e.shard(id)
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.Depth(SideBid, n), s.book.Depth(SideAsk, n), nil
}

// Dump renders the instrument's book as a display string.
func (e *Exchange) Dump(id instrument.ID) (string, error) {
	s, err := e.shard(id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.book.String(), nil
}

// RestingOrders counts resting orders across all books.
func (e *Exchange) RestingOrders() int {
	total := 0
	for _, s := range e.shardsSnapshot() {
		s.mu.Lock()
		total += s.book.RestingOrders()
		s.mu.Unlock()
	}
	return total
}
