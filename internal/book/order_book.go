package book

import (
	"log/slog"

	"tapebook/internal/chain"
	"tapebook/internal/domain"
	"tapebook/internal/event"
)

// Listener consumes book-update notifications. Notification happens
// synchronously, in registration order, after every state-changing report.
type Listener interface {
	OnBookUpdate(b *OrderBook, causing *chain.Chain, tobChanged bool)
}

// OrderBook is the reconstructed book for one market: a bid and an ask
// side index plus an ordered listener registry. It is driven exclusively
// by execution reports; commands never touch it.
type OrderBook struct {
	id     string
	market domain.Market
	bids   *SideIndex
	asks   *SideIndex

	lastUpdate int64 // market time, unix micros

	listeners   []Listener
	listenerIDs map[string]struct{}
}

// NewOrderBook creates an empty book for a market under a caller-chosen
// book id.
func NewOrderBook(id string, market domain.Market) *OrderBook {
	return &OrderBook{
		id:          id,
		market:      market,
		bids:        NewSideIndex(domain.Buy),
		asks:        NewSideIndex(domain.Sell),
		listenerIDs: make(map[string]struct{}),
	}
}

func (b *OrderBook) ID() string            { return b.id }
func (b *OrderBook) Market() domain.Market { return b.market }

// LastUpdate returns the market timestamp of the last book change.
func (b *OrderBook) LastUpdate() int64 { return b.lastUpdate }

// Side returns the index for one side of the book.
func (b *OrderBook) Side(side domain.Side) *SideIndex {
	if side == domain.Buy {
		return b.bids
	}
	return b.asks
}

// BestBid returns the highest resting bid price.
func (b *OrderBook) BestBid() (domain.Price, bool) { return b.bids.BestPrice() }

// BestAsk returns the lowest resting ask price.
func (b *OrderBook) BestAsk() (domain.Price, bool) { return b.asks.BestPrice() }

// RegisterListener adds a listener under a unique id. Listeners are
// notified in registration order.
func (b *OrderBook) RegisterListener(id string, l Listener) error {
	if _, taken := b.listenerIDs[id]; taken {
		return domain.ErrDuplicateListener
	}
	b.listenerIDs[id] = struct{}{}
	b.listeners = append(b.listeners, l)
	return nil
}

// Apply routes an execution report, already applied to its chain, into
// the book. It returns whether any book state changed and whether the top
// of book changed. Listeners are notified on every change.
func (b *OrderBook) Apply(rep event.Report, ch *chain.Chain) (changed, tobChanged bool) {
	switch ev := rep.(type) {
	case *event.Ack:
		changed, tobChanged = b.handleAck(ev, ch)
	case *event.Reject:
		// Rejects never alter resting state.
	case *event.PartialFill:
		changed, tobChanged = b.handlePartialFill(ev, ch)
	case *event.FullFill:
		changed, tobChanged = b.handleFullFill(ev, ch)
	case *event.CancelConfirm:
		changed, tobChanged = b.handleCancelConfirm(ev, ch)
	default:
		slog.Warn("report kind has no book handler", slog.String("kind", rep.GetKind().String()))
	}
	if changed {
		b.lastUpdate = rep.GetTs()
		b.notify(ch, tobChanged)
	}
	return changed, tobChanged
}

func (b *OrderBook) handleAck(ev *event.Ack, ch *chain.Chain) (bool, bool) {
	if !ch.TIF().AllowsResting() {
		slog.Warn("acknowledgement for non-resting order ignored",
			slog.String("chain", ch.ID()), slog.String("tif", ch.TIF().String()))
		return false, false
	}
	si := b.Side(ch.Side())
	before := bestOrNil(si)
	tr := ch.LastAck()

	switch tr.Kind {
	case chain.AckNew:
		price := ch.AckedPrice()
		if price == nil {
			slog.Warn("acknowledgement without price ignored", slog.String("chain", ch.ID()))
			return false, false
		}
		si.GetOrCreate(*price).Add(ch)
		return true, b.tob(si, before, *price)

	case chain.AckPriceChange:
		price := ch.AckedPrice()
		if tr.PrevPrice == nil || price == nil {
			slog.Warn("price change without prices ignored", slog.String("chain", ch.ID()))
			return false, false
		}
		b.removeFromLevel(si, *tr.PrevPrice, ch)
		si.GetOrCreate(*price).Add(ch)
		return true, b.tob(si, before, *tr.PrevPrice, *price)

	case chain.AckQtyIncrease:
		// Same price, but the chain loses time priority.
		price := ch.AckedPrice()
		if price == nil {
			return false, false
		}
		if level, ok := si.Level(*price); ok {
			level.Remove(ch)
			level.Add(ch)
			level.ForceDirty()
		} else {
			slog.Warn("quantity increase for chain not on book",
				slog.String("chain", ch.ID()), slog.String("price", price.String()))
			si.GetOrCreate(*price).Add(ch)
		}
		return true, b.tob(si, before, *price)

	case chain.AckQtyDecrease, chain.AckNoop:
		// Priority is kept; only the cached totals go stale.
		price := ch.AckedPrice()
		if price == nil {
			return false, false
		}
		level, ok := si.Level(*price)
		if !ok {
			slog.Warn("quantity change for chain not on book",
				slog.String("chain", ch.ID()), slog.String("price", price.String()))
			return false, false
		}
		level.ForceDirty()
		return true, b.tob(si, before, *price)

	case chain.AckToZero:
		if tr.PrevPrice == nil {
			return false, false
		}
		if !b.removeFromLevel(si, *tr.PrevPrice, ch) {
			return false, false
		}
		return true, b.tob(si, before, *tr.PrevPrice)
	}
	return false, false
}

func (b *OrderBook) handlePartialFill(ev *event.PartialFill, ch *chain.Chain) (bool, bool) {
	if ev.Aggressor {
		// The aggressor is not resting yet; nothing to update.
		return false, false
	}
	price := ch.AckedPrice()
	if price == nil {
		price = &ev.FillPrice
	}
	si := b.Side(ch.Side())
	before := bestOrNil(si)

	level, ok := si.Level(*price)
	if !ok {
		slog.Warn("passive fill for chain not on book",
			slog.String("chain", ch.ID()), slog.String("price", price.String()))
		return false, false
	}

	switch {
	case ch.RefreshedBy(ev.Seq):
		// Iceberg replenishment: the chain goes to the back of the queue.
		level.Remove(ch)
		level.Add(ch)
	case ch.VisibleQty() == 0:
		// Exhausted without replenishment; take it off the book.
		b.removeFromLevel(si, *price, ch)
	default:
		level.ForceDirty()
	}
	return true, b.tob(si, before, *price)
}

func (b *OrderBook) handleFullFill(ev *event.FullFill, ch *chain.Chain) (bool, bool) {
	si := b.Side(ch.Side())
	before := bestOrNil(si)

	if !ev.Aggressor {
		if !b.removeFromLevel(si, ev.FillPrice, ch) {
			slog.Warn("passive full fill for chain not on book",
				slog.String("chain", ch.ID()), slog.String("price", ev.FillPrice.String()))
			return false, false
		}
		return true, b.tob(si, before, ev.FillPrice)
	}

	// An aggressive chain rests only if it was acknowledged before the
	// fill, e.g. when a fill lands before an in-flight replace is acked.
	if !ch.EverAcked() || ch.ClosePrice() == nil {
		return false, false
	}
	price := *ch.ClosePrice()
	if !b.removeFromLevel(si, price, ch) {
		return false, false
	}
	return true, b.tob(si, before, price)
}

func (b *OrderBook) handleCancelConfirm(ev *event.CancelConfirm, ch *chain.Chain) (bool, bool) {
	if !ch.EverAcked() || !ch.TIF().AllowsResting() {
		return false, false
	}
	si := b.Side(ch.Side())
	before := bestOrNil(si)

	if price := ch.ClosePrice(); price != nil && b.removeFromLevel(si, *price, ch) {
		return true, b.tob(si, before, *price)
	}

	// Not at its expected price; recover with a full side scan.
	slog.Warn("cancelled chain not at expected price, scanning side",
		slog.String("chain", ch.ID()))
	for _, level := range si.Levels() {
		if level.Contains(ch) {
			price := level.Price()
			b.removeFromLevel(si, price, ch)
			return true, b.tob(si, before, price)
		}
	}
	slog.Error("cancelled chain not found on book", slog.String("chain", ch.ID()))
	return false, false
}

// removeFromLevel removes ch from the level at price, deleting the level
// from the index if it empties.
func (b *OrderBook) removeFromLevel(si *SideIndex, price domain.Price, ch *chain.Chain) bool {
	level, ok := si.Level(price)
	if !ok {
		return false
	}
	if !level.Remove(ch) {
		return false
	}
	if level.Empty() {
		si.Delete(price)
	}
	return true
}

// tob reports whether any touched price was the best price before the
// mutation or is the best price after it.
func (b *OrderBook) tob(si *SideIndex, before *domain.Price, touched ...domain.Price) bool {
	after := bestOrNil(si)
	for _, p := range touched {
		if before != nil && p.Equal(*before) {
			return true
		}
		if after != nil && p.Equal(*after) {
			return true
		}
	}
	return false
}

func (b *OrderBook) notify(ch *chain.Chain, tobChanged bool) {
	for _, l := range b.listeners {
		l.OnBookUpdate(b, ch, tobChanged)
	}
}

func bestOrNil(si *SideIndex) *domain.Price {
	if best, ok := si.BestPrice(); ok {
		return &best
	}
	return nil
}
