// Package router is the top-level entry point of the reconstruction
// pipeline. It classifies each tape event, routes it to its order event
// chain, fans resulting execution reports out to every order book
// registered for the market, and notifies listeners in registration
// order.
//
// Processing is single-threaded: events are applied strictly one at a
// time, synchronously, in the order supplied by the caller.
package router

import (
	"fmt"
	"time"

	"tapebook/internal/book"
	"tapebook/internal/chain"
	"tapebook/internal/domain"
	"tapebook/internal/event"
	"tapebook/internal/infra"
)

// EventListener consumes order-event notifications, one callback per
// event kind, each invoked with the chain after the event was applied.
// OnChainClose fires when a chain transitions to closed; consumers that
// need the history must capture it there, because the router drops the
// chain afterwards.
type EventListener interface {
	OnNewOrder(ev *event.NewOrder, ch *chain.Chain)
	OnCancelReplace(ev *event.CancelReplace, ch *chain.Chain)
	OnCancel(ev *event.Cancel, ch *chain.Chain)
	OnAck(ev *event.Ack, ch *chain.Chain)
	OnReject(ev *event.Reject, ch *chain.Chain)
	OnPartialFill(ev *event.PartialFill, ch *chain.Chain)
	OnFullFill(ev *event.FullFill, ch *chain.Chain)
	OnCancelConfirm(ev *event.CancelConfirm, ch *chain.Chain)
	OnChainClose(ch *chain.Chain)
}

// NopListener implements EventListener with no-ops, for embedding.
type NopListener struct{}

func (NopListener) OnNewOrder(*event.NewOrder, *chain.Chain)           {}
func (NopListener) OnCancelReplace(*event.CancelReplace, *chain.Chain) {}
func (NopListener) OnCancel(*event.Cancel, *chain.Chain)               {}
func (NopListener) OnAck(*event.Ack, *chain.Chain)                     {}
func (NopListener) OnReject(*event.Reject, *chain.Chain)               {}
func (NopListener) OnPartialFill(*event.PartialFill, *chain.Chain)     {}
func (NopListener) OnFullFill(*event.FullFill, *chain.Chain)           {}
func (NopListener) OnCancelConfirm(*event.CancelConfirm, *chain.Chain) {}
func (NopListener) OnChainClose(*chain.Chain)                          {}

// Router owns the chain-id to chain map and the per-market book
// registry.
type Router struct {
	chains      map[string]*chain.Chain
	books       map[domain.Market][]*book.OrderBook
	bookIDs     map[domain.Market]map[string]*book.OrderBook
	listeners   []EventListener
	listenerIDs map[string]struct{}
}

// New creates an empty router.
func New() *Router {
	return &Router{
		chains:      make(map[string]*chain.Chain),
		books:       make(map[domain.Market][]*book.OrderBook),
		bookIDs:     make(map[domain.Market]map[string]*book.OrderBook),
		listenerIDs: make(map[string]struct{}),
	}
}

// RegisterBook registers a book to receive every execution report for
// the given market. A book may be registered under several markets to
// form an aggregate view. Fails if the book id is already taken for the
// market.
func (r *Router) RegisterBook(market domain.Market, b *book.OrderBook) error {
	ids := r.bookIDs[market]
	if ids == nil {
		ids = make(map[string]*book.OrderBook)
		r.bookIDs[market] = ids
	}
	if _, taken := ids[b.ID()]; taken {
		return fmt.Errorf("%w: %q for %s", domain.ErrDuplicateBook, b.ID(), market)
	}
	ids[b.ID()] = b
	r.books[market] = append(r.books[market], b)
	return nil
}

// Book looks up a registered book by (market, id).
func (r *Router) Book(market domain.Market, id string) (*book.OrderBook, bool) {
	b, ok := r.bookIDs[market][id]
	return b, ok
}

// RegisterListener adds an order-event listener under a unique string
// id. Listeners are notified in registration order.
func (r *Router) RegisterListener(id string, l EventListener) error {
	if _, taken := r.listenerIDs[id]; taken {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateListener, id)
	}
	r.listenerIDs[id] = struct{}{}
	r.listeners = append(r.listeners, l)
	return nil
}

// Chain looks up a live chain by id. Closed chains are dropped and will
// not be found.
func (r *Router) Chain(id string) (*chain.Chain, bool) {
	ch, ok := r.chains[id]
	return ch, ok
}

// NumChains returns the number of live chains.
func (r *Router) NumChains() int { return len(r.chains) }

// Process applies one tape event. It returns the chain the event touched
// and the markets whose books changed. A contract violation (duplicate
// or unknown chain, event after close, replace of a non-resting order)
// returns an error and must halt the replay; reconciliation anomalies
// are logged inside the chain and books, and processing continues.
func (r *Router) Process(ev event.Event) (*chain.Chain, []domain.Market, error) {
	start := time.Now()

	ch, err := r.applyToChain(ev)
	if err != nil {
		infra.GlobalMetrics.RecordContractViolation()
		return nil, nil, err
	}

	r.notifyEvent(ev, ch)

	var changed []domain.Market
	if rep, ok := ev.(event.Report); ok {
		changed = r.applyToBooks(rep, ch)
	}

	if ch.Closed() {
		for _, l := range r.listeners {
			l.OnChainClose(ch)
		}
		delete(r.chains, ch.ID())
	}

	infra.GlobalMetrics.RecordEvent(time.Since(start).Nanoseconds())
	return ch, changed, nil
}

func (r *Router) applyToChain(ev event.Event) (*chain.Chain, error) {
	if e, ok := ev.(*event.NewOrder); ok {
		if _, exists := r.chains[e.ChainID]; exists {
			return nil, domain.NewContractError("process", e.ChainID, domain.ErrDuplicateChain)
		}
		ch := chain.New(e)
		r.chains[e.ChainID] = ch
		return ch, nil
	}

	ch, ok := r.chains[ev.GetChainID()]
	if !ok {
		return nil, domain.NewContractError("process", ev.GetChainID(), domain.ErrUnknownChain)
	}

	var err error
	switch e := ev.(type) {
	case *event.CancelReplace:
		err = ch.ApplyCancelReplace(e)
	case *event.Cancel:
		err = ch.ApplyCancel(e)
	case *event.Ack:
		err = ch.ApplyAck(e)
	case *event.Reject:
		err = ch.ApplyReject(e)
	case *event.PartialFill:
		err = ch.ApplyPartialFill(e)
		infra.GlobalMetrics.RecordFill()
	case *event.FullFill:
		err = ch.ApplyFullFill(e)
		infra.GlobalMetrics.RecordFill()
	case *event.CancelConfirm:
		err = ch.ApplyCancelConfirm(e)
	default:
		err = domain.NewContractError("process", ev.GetChainID(),
			fmt.Errorf("unhandled event kind %s", ev.GetKind()))
	}
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (r *Router) applyToBooks(rep event.Report, ch *chain.Chain) []domain.Market {
	var changed []domain.Market
	seen := make(map[domain.Market]struct{})
	for _, b := range r.books[rep.GetMarket()] {
		bookChanged, _ := b.Apply(rep, ch)
		if !bookChanged {
			continue
		}
		infra.GlobalMetrics.RecordBookChange()
		m := b.Market()
		if _, dup := seen[m]; !dup {
			seen[m] = struct{}{}
			changed = append(changed, m)
		}
	}
	return changed
}

func (r *Router) notifyEvent(ev event.Event, ch *chain.Chain) {
	for _, l := range r.listeners {
		switch e := ev.(type) {
		case *event.NewOrder:
			l.OnNewOrder(e, ch)
		case *event.CancelReplace:
			l.OnCancelReplace(e, ch)
		case *event.Cancel:
			l.OnCancel(e, ch)
		case *event.Ack:
			l.OnAck(e, ch)
		case *event.Reject:
			l.OnReject(e, ch)
		case *event.PartialFill:
			l.OnPartialFill(e, ch)
		case *event.FullFill:
			l.OnFullFill(e, ch)
		case *event.CancelConfirm:
			l.OnCancelConfirm(e, ch)
		}
	}
}
