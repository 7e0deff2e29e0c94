package chain

import "tapebook/internal/event"

// OpenReason says why a subchain (priority epoch) began.
type OpenReason uint8

const (
	// OpenNew is the first subchain of every chain.
	OpenNew OpenReason = iota + 1
	// OpenReplacePrice begins after a cancel-replace to a new price.
	OpenReplacePrice
	// OpenReplaceIncrease begins after a cancel-replace that increased
	// the exposed quantity.
	OpenReplaceIncrease
)

func (r OpenReason) String() string {
	switch r {
	case OpenNew:
		return "NEW"
	case OpenReplacePrice:
		return "REPLACE_PRICE"
	case OpenReplaceIncrease:
		return "REPLACE_INCREASE"
	}
	return "UNKNOWN"
}

// CloseReason says why a subchain, or the whole chain, ended.
type CloseReason uint8

const (
	// CloseReplacePrice closes a subchain because the next one opened at
	// a new price.
	CloseReplacePrice CloseReason = iota + 1
	// CloseReplaceIncrease closes a subchain because the next one opened
	// with increased exposure.
	CloseReplaceIncrease
	// CloseCancelConfirm ends the chain on a confirmed cancel.
	CloseCancelConfirm
	// CloseFullFill ends the chain on a full fill.
	CloseFullFill
	// CloseReplaceToZero ends the chain on a cancel-replace acknowledged
	// at zero quantity.
	CloseReplaceToZero
	// CloseRejected ends the chain when a reject leaves no exposure
	// outstanding anywhere.
	CloseRejected
)

func (r CloseReason) String() string {
	switch r {
	case CloseReplacePrice:
		return "REPLACE_PRICE"
	case CloseReplaceIncrease:
		return "REPLACE_INCREASE"
	case CloseCancelConfirm:
		return "CANCEL_CONFIRM"
	case CloseFullFill:
		return "FULL_FILL"
	case CloseReplaceToZero:
		return "REPLACE_TO_ZERO"
	case CloseRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// SubChain is a maximal interval of a chain's life during which queue
// priority (price + effective position) does not reset. Exactly one
// subchain is open at any time while the chain is open.
type SubChain struct {
	ID          int
	OpenReason  OpenReason
	OpenEvent   event.Event
	CloseReason CloseReason // zero while open
	Events      []event.Event
}

// Open reports whether the subchain has not yet been closed.
func (s *SubChain) Open() bool {
	return s.CloseReason == 0
}

func (s *SubChain) append(ev event.Event) {
	s.Events = append(s.Events, ev)
}
