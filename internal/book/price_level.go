// Package book maintains a price-indexed, time-priority view of resting
// order chains for one market and fans out update notifications.
//
// Level totals and side ordering are cached behind explicit dirty flags
// and recomputed lazily from live chain state. Totals are never maintained
// incrementally: a chain that closed reports zero and would make
// subtraction unsafe.
package book

import (
	"log/slog"

	"tapebook/internal/chain"
	"tapebook/internal/domain"
)

// PriceLevel holds the chains resting at one price on one side, in FIFO
// arrival order (time priority). Moving a chain to the back is a
// Remove/Add pair.
type PriceLevel struct {
	price  domain.Price
	chains []*chain.Chain

	dirty         bool
	cachedVisible int64
	cachedHidden  int64
	cachedOrders  int
}

// NewPriceLevel creates an empty level at the given price.
func NewPriceLevel(price domain.Price) *PriceLevel {
	return &PriceLevel{price: price, dirty: true}
}

// Price returns the level's price.
func (l *PriceLevel) Price() domain.Price { return l.price }

// Add appends a chain at the back of the queue. Adding a chain that is
// already present is logged and ignored.
func (l *PriceLevel) Add(ch *chain.Chain) bool {
	if l.contains(ch) {
		slog.Error("chain already at price level",
			slog.String("chain", ch.ID()), slog.String("price", l.price.String()))
		return false
	}
	l.chains = append(l.chains, ch)
	l.dirty = true
	return true
}

// Remove deletes a chain from the queue, preserving the order of the
// rest. Removing an absent chain is logged and ignored.
func (l *PriceLevel) Remove(ch *chain.Chain) bool {
	for i := range l.chains {
		if l.chains[i] == ch {
			l.chains = append(l.chains[:i], l.chains[i+1:]...)
			l.dirty = true
			return true
		}
	}
	slog.Error("chain not at price level",
		slog.String("chain", ch.ID()), slog.String("price", l.price.String()))
	return false
}

// ForceDirty invalidates the cached totals without touching membership.
// Callers use it when a member chain's quantities changed in place.
func (l *PriceLevel) ForceDirty() {
	l.dirty = true
}

// VisibleQty returns the summed visible quantity of all member chains.
func (l *PriceLevel) VisibleQty() int64 {
	l.recompute()
	return l.cachedVisible
}

// HiddenQty returns the summed iceberg reserve of all member chains.
func (l *PriceLevel) HiddenQty() int64 {
	l.recompute()
	return l.cachedHidden
}

// NumOrders returns the number of chains resting at the level.
func (l *PriceLevel) NumOrders() int {
	l.recompute()
	return l.cachedOrders
}

// Chains returns the member chains in time-priority order. The slice is
// the level's own; callers must not modify it.
func (l *PriceLevel) Chains() []*chain.Chain { return l.chains }

// Empty reports whether no chains rest at the level.
func (l *PriceLevel) Empty() bool { return len(l.chains) == 0 }

// Contains reports whether the chain rests at this level.
func (l *PriceLevel) Contains(ch *chain.Chain) bool { return l.contains(ch) }

func (l *PriceLevel) contains(ch *chain.Chain) bool {
	for _, member := range l.chains {
		if member == ch {
			return true
		}
	}
	return false
}

func (l *PriceLevel) recompute() {
	if !l.dirty {
		return
	}
	var visible, hidden int64
	for _, ch := range l.chains {
		visible += ch.VisibleQty()
		hidden += ch.HiddenQty()
	}
	l.cachedVisible = visible
	l.cachedHidden = hidden
	l.cachedOrders = len(l.chains)
	l.dirty = false
}
