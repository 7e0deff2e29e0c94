package event

import (
	"tapebook/internal/domain"
)

// Kind tags the closed set of order-lifecycle events. Commands come from
// the participant; reports come from the venue in response to a command.
type Kind uint16

const (
	KindNewOrder Kind = iota + 1
	KindCancelReplace
	KindCancel
	KindAck
	KindReject
	KindPartialFill
	KindFullFill
	KindCancelConfirm
)

func (k Kind) String() string {
	switch k {
	case KindNewOrder:
		return "NEW_ORDER"
	case KindCancelReplace:
		return "CANCEL_REPLACE"
	case KindCancel:
		return "CANCEL"
	case KindAck:
		return "ACK"
	case KindReject:
		return "REJECT"
	case KindPartialFill:
		return "PARTIAL_FILL"
	case KindFullFill:
		return "FULL_FILL"
	case KindCancelConfirm:
		return "CANCEL_CONFIRM"
	}
	return "UNKNOWN"
}

// IsCommand reports whether the kind is a participant command.
func (k Kind) IsCommand() bool {
	return k == KindNewOrder || k == KindCancelReplace || k == KindCancel
}

// Event is the interface for all tape events.
type Event interface {
	GetSeq() uint64
	GetTs() int64
	GetChainID() string
	GetMarket() domain.Market
	GetKind() Kind
}

// Report is an execution report; it references its causing command by
// tape sequence number.
type Report interface {
	Event
	GetCausingSeq() uint64
}

// BaseEvent contains common fields for all events. Seq is the tape
// sequence number and doubles as the unique event id; Ts is market time
// in unix microseconds.
type BaseEvent struct {
	Seq     uint64
	Ts      int64
	ChainID string
	Market  domain.Market
}

func (e BaseEvent) GetSeq() uint64           { return e.Seq }
func (e BaseEvent) GetTs() int64             { return e.Ts }
func (e BaseEvent) GetChainID() string       { return e.ChainID }
func (e BaseEvent) GetMarket() domain.Market { return e.Market }

// BaseReport adds the causing-command reference shared by all reports.
type BaseReport struct {
	BaseEvent
	CausingSeq uint64
}

func (r BaseReport) GetCausingSeq() uint64 { return r.CausingSeq }

// NewOrder is the first command of every chain.
// Price is nil for market orders. PeakQty limits the visible quantity of
// an iceberg order; zero means fully visible.
type NewOrder struct {
	BaseEvent
	Side    domain.Side
	Price   *domain.Price
	Qty     int64
	PeakQty int64
	TIF     domain.TimeInForce
}

func (e *NewOrder) GetKind() Kind { return KindNewOrder }

// CancelReplace requests new price/quantity terms for a resting order.
type CancelReplace struct {
	BaseEvent
	Side    domain.Side
	Price   *domain.Price
	Qty     int64
	PeakQty int64
}

func (e *CancelReplace) GetKind() Kind { return KindCancelReplace }

// Cancel requests removal of an outstanding order.
type Cancel struct {
	BaseEvent
	Reason string
}

func (e *Cancel) GetKind() Kind { return KindCancel }

// Ack acknowledges a command with the terms the venue actually granted.
type Ack struct {
	BaseReport
	Price   *domain.Price
	Qty     int64
	PeakQty int64
}

func (e *Ack) GetKind() Kind { return KindAck }

// Reject refuses a command.
type Reject struct {
	BaseReport
	Reason string
}

func (e *Reject) GetKind() Kind { return KindReject }

// PartialFill reports a match that leaves quantity outstanding.
// Aggressor is true iff this chain's own command caused the match.
type PartialFill struct {
	BaseReport
	FillPrice domain.Price
	FillQty   int64
	LeavesQty int64
	MatchID   string
	Aggressor bool
}

func (e *PartialFill) GetKind() Kind { return KindPartialFill }

// FullFill reports a match that consumes the order entirely.
type FullFill struct {
	BaseReport
	FillPrice domain.Price
	FillQty   int64
	MatchID   string
	Aggressor bool
}

func (e *FullFill) GetKind() Kind { return KindFullFill }

// CancelConfirm confirms a cancel command and closes the chain.
type CancelConfirm struct {
	BaseReport
	Reason string
}

func (e *CancelConfirm) GetKind() Kind { return KindCancelConfirm }
