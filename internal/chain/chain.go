// Package chain tracks the full lifecycle of a single order as an
// event-sourced aggregate: requested versus acknowledged exposure, iceberg
// visibility, fill accounting and priority epochs (subchains).
//
// Contract violations (events out of order, unknown causing commands)
// return *domain.ContractError and must halt the replay. Reconciliation
// anomalies (quantity mismatches from the venue) are logged and processing
// continues best-effort.
package chain

import (
	"log/slog"

	"tapebook/internal/domain"
	"tapebook/internal/event"
)

// Exposure is one outstanding request or the acknowledged resting state:
// a price (nil for market orders and pending cancels), a quantity and the
// tape sequence of the event that caused it.
type Exposure struct {
	Price      *domain.Price
	Qty        int64
	CausingSeq uint64
}

// AckKind classifies an acknowledgement against the prior acknowledged
// exposure. The order book keys its level moves off this classification.
type AckKind uint8

const (
	// AckNew is the first acknowledgement of the chain.
	AckNew AckKind = iota + 1
	// AckPriceChange acknowledged a cancel-replace to a different price.
	AckPriceChange
	// AckQtyIncrease acknowledged an exposure increase at the same price.
	AckQtyIncrease
	// AckQtyDecrease acknowledged an exposure decrease at the same price.
	AckQtyDecrease
	// AckNoop acknowledged unchanged terms.
	AckNoop
	// AckToZero acknowledged a cancel-replace down to zero quantity,
	// closing the chain.
	AckToZero
)

// AckTransition records the most recent acknowledgement transition so the
// order book can replay it against its price levels.
type AckTransition struct {
	Seq       uint64
	Kind      AckKind
	PrevPrice *domain.Price
	PrevQty   int64
}

// Chain is the aggregate for one order's command/report sequence.
// Only its Apply* methods mutate it; order books hold read-only views.
type Chain struct {
	id      string
	market  domain.Market
	side    domain.Side
	tif     domain.TimeInForce
	peakQty int64

	requested  []Exposure // not yet acknowledged, FIFO oldest first
	pendingCmd map[uint64]event.Event
	acked      *Exposure
	visibleQty int64

	events    []event.Event
	subchains []*SubChain
	matches   map[string]struct{}

	lastAck    AckTransition
	refreshSeq uint64 // seq of the fill that replenished visible qty

	closed      bool
	closeReason CloseReason
	closePrice  *domain.Price
	everAcked   bool
}

// New creates a chain from its first command. Every chain begins with a
// new-order command; the router enforces that.
func New(ev *event.NewOrder) *Chain {
	c := &Chain{
		id:         ev.ChainID,
		market:     ev.Market,
		side:       ev.Side,
		tif:        ev.TIF,
		peakQty:    ev.PeakQty,
		pendingCmd: map[uint64]event.Event{ev.Seq: ev},
		matches:    make(map[string]struct{}),
	}
	c.requested = append(c.requested, Exposure{Price: ev.Price, Qty: ev.Qty, CausingSeq: ev.Seq})
	c.events = append(c.events, ev)
	c.openSubChain(OpenNew, ev)
	return c
}

// ApplyCancelReplace appends a new requested exposure. Acknowledged state
// and subchains change only when the venue responds.
func (c *Chain) ApplyCancelReplace(ev *event.CancelReplace) error {
	if c.closed {
		return domain.NewContractError("apply_cancel_replace", c.id, domain.ErrChainClosed)
	}
	if !c.tif.AllowsResting() {
		return domain.NewContractError("apply_cancel_replace", c.id, domain.ErrNotRestable)
	}
	c.requested = append(c.requested, Exposure{Price: ev.Price, Qty: ev.Qty, CausingSeq: ev.Seq})
	c.pendingCmd[ev.Seq] = ev
	c.events = append(c.events, ev)
	return nil
}

// ApplyCancel appends a null exposure signalling pending cancellation.
func (c *Chain) ApplyCancel(ev *event.Cancel) error {
	if c.closed {
		return domain.NewContractError("apply_cancel", c.id, domain.ErrChainClosed)
	}
	c.requested = append(c.requested, Exposure{CausingSeq: ev.Seq})
	c.pendingCmd[ev.Seq] = ev
	c.events = append(c.events, ev)
	return nil
}

// ApplyAck consumes the requested exposure matching the causing command,
// classifies the transition against the prior acknowledged exposure, and
// rolls the subchain over when priority resets (price change or exposure
// increase). An acknowledged quantity of zero closes the chain.
func (c *Chain) ApplyAck(ev *event.Ack) error {
	if c.closed {
		return domain.NewContractError("apply_ack", c.id, domain.ErrChainClosed)
	}
	_, cmd, ok := c.takeRequested(ev.CausingSeq)
	if !ok {
		return domain.NewContractError("apply_ack", c.id, domain.ErrUnknownCommand)
	}
	c.events = append(c.events, ev)

	prev := c.acked
	kind := c.classifyAck(prev, ev)

	c.lastAck = AckTransition{Seq: ev.Seq, Kind: kind}
	if prev != nil {
		c.lastAck.PrevPrice = prev.Price
		c.lastAck.PrevQty = prev.Qty
	}

	switch kind {
	case AckPriceChange:
		c.closeSubChain(CloseReplacePrice)
		c.openSubChain(OpenReplacePrice, cmd)
		c.appendSub(ev)
	case AckQtyIncrease:
		c.closeSubChain(CloseReplaceIncrease)
		c.openSubChain(OpenReplaceIncrease, cmd)
		c.appendSub(ev)
	default:
		if _, isNew := cmd.(*event.NewOrder); !isNew {
			c.appendSub(cmd)
		}
		c.appendSub(ev)
	}

	if kind == AckToZero {
		c.closeChain(CloseReplaceToZero)
		return nil
	}

	c.acked = &Exposure{Price: ev.Price, Qty: ev.Qty, CausingSeq: ev.Seq}
	c.everAcked = true
	c.peakQty = ev.PeakQty
	c.visibleQty = min(c.effectivePeak(ev.Qty), ev.Qty)
	return nil
}

// ApplyReject consumes the requested exposure matching the rejected
// command. The chain closes only if nothing remains outstanding anywhere.
func (c *Chain) ApplyReject(ev *event.Reject) error {
	if c.closed {
		return domain.NewContractError("apply_reject", c.id, domain.ErrChainClosed)
	}
	_, cmd, ok := c.takeRequested(ev.CausingSeq)
	if !ok {
		return domain.NewContractError("apply_reject", c.id, domain.ErrUnknownCommand)
	}
	c.events = append(c.events, ev)

	if cur := c.openSub(); cur == nil {
		// Defensive: a reject should always find the first subchain open.
		slog.Warn("reject with no open subchain", slog.String("chain", c.id))
		c.openSubChain(OpenNew, cmd)
	}
	if _, isNew := cmd.(*event.NewOrder); !isNew {
		c.appendSub(cmd)
	}
	c.appendSub(ev)

	if c.acked == nil && len(c.requested) == 0 {
		c.closeChain(CloseRejected)
	}
	return nil
}

// ApplyPartialFill decrements the exposure the fill consumed. Aggressive
// fills (this chain's command caused the match) hit the still-pending
// requested exposure; passive fills hit the acknowledged exposure and the
// visible quantity, replenishing it from hidden reserve when exhausted.
func (c *Chain) ApplyPartialFill(ev *event.PartialFill) error {
	if c.closed {
		return domain.NewContractError("apply_partial_fill", c.id, domain.ErrChainClosed)
	}
	c.events = append(c.events, ev)
	c.appendSub(ev)
	c.matches[ev.MatchID] = struct{}{}

	if ev.Aggressor {
		c.applyAggressivePartial(ev)
		return nil
	}
	c.applyPassivePartial(ev)
	return nil
}

func (c *Chain) applyAggressivePartial(ev *event.PartialFill) {
	i := c.findRequested(ev.CausingSeq)
	if i < 0 {
		slog.Error("aggressive partial fill with no pending exposure",
			slog.String("chain", c.id), slog.Uint64("causing_seq", ev.CausingSeq))
		return
	}
	c.requested[i].Qty -= ev.FillQty
	if c.requested[i].Qty <= 0 {
		if c.requested[i].Qty < 0 {
			slog.Error("partial fill drove exposure below zero",
				slog.String("chain", c.id), slog.Int64("qty", c.requested[i].Qty))
		} else {
			slog.Error("partial fill exhausted exposure, closing chain",
				slog.String("chain", c.id), slog.Int64("fill_qty", ev.FillQty))
		}
		c.removeRequested(ev.CausingSeq)
		c.closeChain(CloseFullFill)
	}
}

func (c *Chain) applyPassivePartial(ev *event.PartialFill) {
	if c.acked == nil {
		slog.Error("passive partial fill before acknowledgement",
			slog.String("chain", c.id), slog.Uint64("seq", ev.Seq))
		return
	}
	c.acked.Qty -= ev.FillQty
	c.visibleQty -= ev.FillQty

	if c.acked.Qty < 0 {
		slog.Error("passive fill drove acknowledged exposure below zero",
			slog.String("chain", c.id), slog.Int64("qty", c.acked.Qty))
		c.acked.Qty = 0
	}
	if c.acked.Qty == 0 {
		// A partial report that consumed the whole resting exposure
		// should have been a full fill. Warn and leave the chain open.
		slog.Warn("partial fill consumed entire acknowledged exposure",
			slog.String("chain", c.id), slog.Int64("fill_qty", ev.FillQty))
		c.visibleQty = 0
		return
	}
	if c.visibleQty <= 0 {
		c.visibleQty = min(c.effectivePeak(c.acked.Qty), c.acked.Qty)
		c.refreshSeq = ev.Seq
	}
}

// ApplyFullFill always closes the chain. A quantity mismatch against the
// outstanding exposure is logged and processing continues.
func (c *Chain) ApplyFullFill(ev *event.FullFill) error {
	if c.closed {
		return domain.NewContractError("apply_full_fill", c.id, domain.ErrChainClosed)
	}
	c.events = append(c.events, ev)
	c.appendSub(ev)
	c.matches[ev.MatchID] = struct{}{}

	if ev.Aggressor {
		exp, _, ok := c.takeRequested(ev.CausingSeq)
		if !ok {
			slog.Error("aggressive full fill with no pending exposure",
				slog.String("chain", c.id), slog.Uint64("causing_seq", ev.CausingSeq))
		} else if exp.Qty != ev.FillQty {
			slog.Error("full fill quantity mismatch",
				slog.String("chain", c.id),
				slog.Int64("exposure_qty", exp.Qty), slog.Int64("fill_qty", ev.FillQty))
		}
	} else {
		if c.acked == nil {
			slog.Error("passive full fill before acknowledgement",
				slog.String("chain", c.id), slog.Uint64("seq", ev.Seq))
		} else if c.acked.Qty != ev.FillQty {
			slog.Error("full fill quantity mismatch",
				slog.String("chain", c.id),
				slog.Int64("acked_qty", c.acked.Qty), slog.Int64("fill_qty", ev.FillQty))
		}
	}
	c.closeChain(CloseFullFill)
	return nil
}

// ApplyCancelConfirm closes the chain on a confirmed cancel.
func (c *Chain) ApplyCancelConfirm(ev *event.CancelConfirm) error {
	if c.closed {
		return domain.NewContractError("apply_cancel_confirm", c.id, domain.ErrChainClosed)
	}
	_, cmd, ok := c.takeRequested(ev.CausingSeq)
	if !ok {
		slog.Warn("cancel confirm with no pending cancel",
			slog.String("chain", c.id), slog.Uint64("causing_seq", ev.CausingSeq))
	}
	c.events = append(c.events, ev)
	if ok {
		c.appendSub(cmd)
	}
	c.appendSub(ev)
	c.closeChain(CloseCancelConfirm)
	return nil
}

// --- accessors ---

func (c *Chain) ID() string            { return c.id }
func (c *Chain) Market() domain.Market { return c.market }
func (c *Chain) Side() domain.Side     { return c.side }

// TIF returns the chain's time in force, fixed for its lifetime.
func (c *Chain) TIF() domain.TimeInForce { return c.tif }

// PeakQty returns the current iceberg peak quantity; zero means fully
// visible.
func (c *Chain) PeakQty() int64 { return c.peakQty }

// VisibleQty is the quantity currently shown on the book.
func (c *Chain) VisibleQty() int64 {
	return c.visibleQty
}

// HiddenQty is the acknowledged quantity held in iceberg reserve.
func (c *Chain) HiddenQty() int64 {
	if c.acked == nil {
		return 0
	}
	return c.acked.Qty - c.visibleQty
}

// ExposedQty is the currently acknowledged quantity, zero when not
// resting.
func (c *Chain) ExposedQty() int64 {
	if c.acked == nil {
		return 0
	}
	return c.acked.Qty
}

// AckedPrice returns the acknowledged resting price, nil when not resting.
func (c *Chain) AckedPrice() *domain.Price {
	if c.acked == nil {
		return nil
	}
	return c.acked.Price
}

// Requested returns the not-yet-acknowledged exposures, oldest first.
func (c *Chain) Requested() []Exposure { return c.requested }

// Events returns every event applied to the chain, in arrival order.
func (c *Chain) Events() []event.Event { return c.events }

// SubChains returns the chain's priority epochs, oldest first.
func (c *Chain) SubChains() []*SubChain { return c.subchains }

// Matches returns the set of match ids the chain participated in.
func (c *Chain) Matches() map[string]struct{} { return c.matches }

// LastAck returns the most recent acknowledgement transition.
func (c *Chain) LastAck() AckTransition { return c.lastAck }

// RefreshedBy reports whether the given fill replenished the visible
// quantity, costing the chain its queue position.
func (c *Chain) RefreshedBy(seq uint64) bool {
	return seq != 0 && c.refreshSeq == seq
}

// Closed reports whether the chain has ended.
func (c *Chain) Closed() bool { return c.closed }

// CloseReason returns why the chain ended; zero while open.
func (c *Chain) CloseReason() CloseReason { return c.closeReason }

// ClosePrice returns the price the chain last rested at when it closed,
// nil if it was never acknowledged.
func (c *Chain) ClosePrice() *domain.Price { return c.closePrice }

// EverAcked reports whether the chain was acknowledged at least once.
func (c *Chain) EverAcked() bool { return c.everAcked }

// --- internals ---

func (c *Chain) classifyAck(prev *Exposure, ev *event.Ack) AckKind {
	if ev.Qty == 0 {
		return AckToZero
	}
	if prev == nil {
		return AckNew
	}
	if prev.Price != nil && ev.Price != nil && !prev.Price.Equal(*ev.Price) {
		return AckPriceChange
	}
	switch {
	case ev.Qty > prev.Qty:
		return AckQtyIncrease
	case ev.Qty < prev.Qty:
		return AckQtyDecrease
	}
	return AckNoop
}

func (c *Chain) effectivePeak(qty int64) int64 {
	if c.peakQty <= 0 {
		return qty
	}
	return c.peakQty
}

func (c *Chain) openSubChain(reason OpenReason, open event.Event) {
	sc := &SubChain{
		ID:         len(c.subchains) + 1,
		OpenReason: reason,
		OpenEvent:  open,
		Events:     []event.Event{open},
	}
	c.subchains = append(c.subchains, sc)
}

func (c *Chain) closeSubChain(reason CloseReason) {
	cur := c.openSub()
	if cur == nil {
		slog.Error("closing subchain but none open", slog.String("chain", c.id))
		return
	}
	cur.CloseReason = reason
}

func (c *Chain) openSub() *SubChain {
	if n := len(c.subchains); n > 0 && c.subchains[n-1].Open() {
		return c.subchains[n-1]
	}
	return nil
}

func (c *Chain) appendSub(ev event.Event) {
	if cur := c.openSub(); cur != nil {
		cur.append(ev)
	}
}

func (c *Chain) closeChain(reason CloseReason) {
	c.closeSubChain(reason)
	if c.acked != nil {
		c.closePrice = c.acked.Price
	}
	c.acked = nil
	c.visibleQty = 0
	c.requested = nil
	c.closed = true
	c.closeReason = reason
}

func (c *Chain) findRequested(causingSeq uint64) int {
	for i := range c.requested {
		if c.requested[i].CausingSeq == causingSeq {
			return i
		}
	}
	return -1
}

func (c *Chain) removeRequested(causingSeq uint64) {
	if i := c.findRequested(causingSeq); i >= 0 {
		c.requested = append(c.requested[:i], c.requested[i+1:]...)
	}
	delete(c.pendingCmd, causingSeq)
}

func (c *Chain) takeRequested(causingSeq uint64) (Exposure, event.Event, bool) {
	i := c.findRequested(causingSeq)
	if i < 0 {
		return Exposure{}, nil, false
	}
	exp := c.requested[i]
	cmd := c.pendingCmd[causingSeq]
	c.requested = append(c.requested[:i], c.requested[i+1:]...)
	delete(c.pendingCmd, causingSeq)
	return exp, cmd, true
}
