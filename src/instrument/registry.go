// Package instrument provides an interning registry for instrument identity.
//
// Books and gateway handlers refer to instruments through a dense ID handle
// handed out by a Registry instance. Identity is structural on the
// (symbol, venue) pair; there is no package-level state, so tests construct
// independent registries.
package instrument

import (
	"fmt"
	"sync"

	"book-engine/src/fixed"
)

// ID is a dense handle into one Registry. IDs from different registries are
// not comparable.
type ID uint32

// Instrument describes a single tradable listing and the fixed-point
// precisions its book uses.
type Instrument struct {
	Symbol            string
	Venue             string
	PricePrecision    uint8
	QuantityPrecision uint8
}

func (i Instrument) String() string {
	return i.Symbol + "@" + i.Venue
}

type key struct {
	symbol string
	venue  string
}

// Registry interns instruments and resolves handles back to their
// definitions. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ids   map[key]ID
	table []Instrument
}

func NewRegistry() *Registry {
	return &Registry{ids: make(map[key]ID)}
}

// Intern registers an instrument and returns its handle. Re-registering the
// same (symbol, venue) with identical precisions returns the existing
// handle; conflicting precisions are rejected so a live book never changes
// scale underneath its resting orders.
func (r *Registry) Intern(inst Instrument) (ID, error) {
	if inst.Symbol == "" || inst.Venue == "" {
		return 0, fmt.Errorf("instrument requires symbol and venue")
	}
	if inst.PricePrecision > fixed.MaxPrecision || inst.QuantityPrecision > fixed.MaxPrecision {
		return 0, fmt.Errorf("instrument %s: precision above %d unsupported", inst, fixed.MaxPrecision)
	}

	k := key{symbol: inst.Symbol, venue: inst.Venue}

	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.ids[k]; exists {
		existing := r.table[id]
		if existing.PricePrecision != inst.PricePrecision || existing.QuantityPrecision != inst.QuantityPrecision {
			return 0, fmt.Errorf("instrument %s already registered with different precisions", inst)
		}
		return id, nil
	}

	id := ID(len(r.table))
	r.table = append(r.table, inst)
	r.ids[k] = id
	return id, nil
}

// Lookup resolves a (symbol, venue) pair to its handle.
func (r *Registry) Lookup(symbol, venue string) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, exists := r.ids[key{symbol: symbol, venue: venue}]
	return id, exists
}

// Get returns the instrument behind a handle.
func (r *Registry) Get(id ID) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.table) {
		return Instrument{}, false
	}
	return r.table[id], true
}

// Len reports how many instruments are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table)
}
