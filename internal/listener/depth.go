package listener

import (
	rbt "github.com/emirpasic/gods/v2/trees/redblacktree"

	"tapebook/internal/book"
	"tapebook/internal/chain"
	"tapebook/internal/domain"
)

// DepthEntry is one aggregated price level in a depth snapshot.
type DepthEntry struct {
	Price      domain.Price
	VisibleQty int64
	NumOrders  int
}

// DepthTracker keeps a sorted aggregate depth view of one order book,
// rebuilt on every notification, plus a count of top-of-book changes.
type DepthTracker struct {
	levels     int // max entries per side in Snapshot
	bids       *rbt.Tree[domain.Price, DepthEntry]
	asks       *rbt.Tree[domain.Price, DepthEntry]
	tobChanges int
}

// NewDepthTracker creates a tracker reporting up to levels entries per
// side.
func NewDepthTracker(levels int) *DepthTracker {
	return &DepthTracker{
		levels: levels,
		bids:   rbt.NewWith[domain.Price, DepthEntry](priceComparator(domain.Buy)),
		asks:   rbt.NewWith[domain.Price, DepthEntry](priceComparator(domain.Sell)),
	}
}

// priceComparator orders prices best-first for the given side.
func priceComparator(side domain.Side) func(a, b domain.Price) int {
	return func(a, b domain.Price) int {
		if a.BetterThan(b, side) {
			return -1
		}
		if b.BetterThan(a, side) {
			return 1
		}
		return 0
	}
}

// OnBookUpdate implements book.Listener.
func (d *DepthTracker) OnBookUpdate(b *book.OrderBook, _ *chain.Chain, tobChanged bool) {
	if tobChanged {
		d.tobChanges++
	}
	d.rebuild(d.bids, b.Side(domain.Buy))
	d.rebuild(d.asks, b.Side(domain.Sell))
}

func (d *DepthTracker) rebuild(tree *rbt.Tree[domain.Price, DepthEntry], si *book.SideIndex) {
	tree.Clear()
	for _, price := range si.Prices() {
		level, ok := si.Level(price)
		if !ok {
			continue
		}
		tree.Put(price, DepthEntry{
			Price:      price,
			VisibleQty: level.VisibleQty(),
			NumOrders:  level.NumOrders(),
		})
	}
}

// Snapshot returns up to the configured number of entries for one side,
// best price first.
func (d *DepthTracker) Snapshot(side domain.Side) []DepthEntry {
	tree := d.bids
	if side == domain.Sell {
		tree = d.asks
	}
	out := make([]DepthEntry, 0, d.levels)
	it := tree.Iterator()
	for it.Next() && len(out) < d.levels {
		out = append(out, it.Value())
	}
	return out
}

// TOBChanges returns how many notifications flagged a top-of-book change.
func (d *DepthTracker) TOBChanges() int { return d.tobChanges }
