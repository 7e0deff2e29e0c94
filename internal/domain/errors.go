package domain

import "errors"

// Two error classes flow out of event processing. Contract violations mean
// the caller fed events out of order or the venue is inconsistent; they
// abort the stream. Reconciliation anomalies are logged and processing
// continues best-effort; they never surface as errors.

var (
	// ErrUnknownChain is returned when a report or follow-up command
	// references a chain id the router has never seen.
	ErrUnknownChain = errors.New("unknown order chain")

	// ErrDuplicateChain is returned when a new order arrives for a chain
	// id that is already live.
	ErrDuplicateChain = errors.New("order chain already exists")

	// ErrChainClosed is returned when an event arrives for a chain that
	// has already closed.
	ErrChainClosed = errors.New("order chain already closed")

	// ErrNotRestable is returned when a cancel-replace targets an order
	// whose time in force forbids resting.
	ErrNotRestable = errors.New("time in force forbids resting")

	// ErrUnknownCommand is returned when a report references a causing
	// command the chain has no pending exposure for.
	ErrUnknownCommand = errors.New("no pending exposure for causing command")

	// ErrDuplicateBook is returned when a book id is already registered
	// for a market.
	ErrDuplicateBook = errors.New("book id already registered")

	// ErrDuplicateListener is returned when a listener id is taken.
	ErrDuplicateListener = errors.New("listener id already registered")

	// ErrInvalidMarket is returned for a malformed market identifier.
	ErrInvalidMarket = errors.New("invalid market")
)

// ContractError wraps a contract violation with the operation and chain
// that tripped it. Downstream book state would be undefined if processing
// continued, so callers must halt the replay.
type ContractError struct {
	Op      string // operation that failed, e.g. "apply_ack"
	ChainID string
	Err     error
}

func (e *ContractError) Error() string {
	return e.Op + " [chain " + e.ChainID + "]: " + e.Err.Error()
}

func (e *ContractError) Unwrap() error {
	return e.Err
}

// NewContractError wraps err as a contract violation.
func NewContractError(op, chainID string, err error) *ContractError {
	return &ContractError{Op: op, ChainID: chainID, Err: err}
}

// IsContractViolation reports whether err is (or wraps) a contract
// violation.
func IsContractViolation(err error) bool {
	var ce *ContractError
	return errors.As(err, &ce)
}
