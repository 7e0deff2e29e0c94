package listener

import (
	"github.com/shopspring/decimal"

	"tapebook/internal/book"
	"tapebook/internal/chain"
	"tapebook/internal/domain"
)

// ImpactGauge measures how far each top-of-book change moved the best
// price, in ticks, tracking the cumulative and maximum displacement per
// side of each observed book.
type ImpactGauge struct {
	tick     decimal.Decimal
	lastBest map[string]domain.Price // book id + side
	cumTicks map[string]int64
	maxTicks map[string]int64
}

// NewImpactGauge creates a gauge with the given tick size.
func NewImpactGauge(tick decimal.Decimal) *ImpactGauge {
	return &ImpactGauge{
		tick:     tick,
		lastBest: make(map[string]domain.Price),
		cumTicks: make(map[string]int64),
		maxTicks: make(map[string]int64),
	}
}

// OnBookUpdate implements book.Listener.
func (g *ImpactGauge) OnBookUpdate(b *book.OrderBook, _ *chain.Chain, tobChanged bool) {
	if !tobChanged {
		return
	}
	g.observe(b, domain.Buy)
	g.observe(b, domain.Sell)
}

func (g *ImpactGauge) observe(b *book.OrderBook, side domain.Side) {
	key := b.ID() + "/" + side.String()
	best, ok := b.Side(side).BestPrice()
	if !ok {
		delete(g.lastBest, key)
		return
	}
	if prev, seen := g.lastBest[key]; seen && !prev.Equal(best) {
		ticks := best.TicksFrom(prev, g.tick)
		g.cumTicks[key] += ticks
		if ticks > g.maxTicks[key] {
			g.maxTicks[key] = ticks
		}
	}
	g.lastBest[key] = best
}

// CumulativeTicks returns the summed tick displacement of one side's
// best price for a book.
func (g *ImpactGauge) CumulativeTicks(bookID string, side domain.Side) int64 {
	return g.cumTicks[bookID+"/"+side.String()]
}

// MaxTicks returns the largest single tick displacement observed.
func (g *ImpactGauge) MaxTicks(bookID string, side domain.Side) int64 {
	return g.maxTicks[bookID+"/"+side.String()]
}
