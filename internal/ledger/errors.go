package ledger

import (
	"errors"
	"fmt"
)

// Reason is the machine-readable failure cause reported by the ledger
type Reason string

const (
	ReasonAlreadyHasBet     Reason = "already_has_bet"
	ReasonInsufficientFunds Reason = "insufficient_funds"
	ReasonNoPendingBet      Reason = "no_pending_bet"
	ReasonUnreachable       Reason = "unreachable"
)

var (
	ErrAlreadyHasBet     = errors.New("ledger: identity already has an unresolved bet")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrNoPendingBet      = errors.New("ledger: no pending bet")
	ErrUnreachable       = errors.New("ledger: unreachable")
)

// Error is returned by every Gateway method on failure
type Error struct {
	Op     string
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("ledger %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("ledger %s: %s: %s", e.Op, e.Reason, e.Detail)
}

// Unwrap lets errors.Is match the package sentinels
func (e *Error) Unwrap() error {
	switch e.Reason {
	case ReasonAlreadyHasBet:
		return ErrAlreadyHasBet
	case ReasonInsufficientFunds:
		return ErrInsufficientFunds
	case ReasonNoPendingBet:
		return ErrNoPendingBet
	default:
		return ErrUnreachable
	}
}

// ReasonOf extracts the failure reason; anything unknown counts as unreachable
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var lerr *Error
	switch {
	case errors.As(err, &lerr):
		return lerr.Reason
	case errors.Is(err, ErrAlreadyHasBet):
		return ReasonAlreadyHasBet
	case errors.Is(err, ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, ErrNoPendingBet):
		return ReasonNoPendingBet
	}
	return ReasonUnreachable
}

func newError(op string, reason Reason, detail string) *Error {
	return &Error{Op: op, Reason: reason, Detail: detail}
}
