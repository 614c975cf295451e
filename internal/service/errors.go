package service

import (
	"errors"
	"fmt"

	"arebasic/internal/ledger"
)

var (
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientFunds      = errors.New("insufficient balance to play")
	ErrLedgerUnreachable      = errors.New("ledger unreachable")
	ErrCannotClear            = errors.New("could not clear pending bet, try again")
	ErrAnswerRejected         = errors.New("ledger rejected the answer; stake stands until reset")
	ErrEmptyAnswer            = errors.New("please provide an answer before submitting")
	ErrSessionTerminated      = errors.New("session terminated")
	ErrUnknownSession         = errors.New("session not connected")
)

// translateLedgerError maps gateway failures onto the session taxonomy
func translateLedgerError(err error) error {
	if err == nil {
		return nil
	}
	switch ledger.ReasonOf(err) {
	case ledger.ReasonInsufficientFunds:
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	case ledger.ReasonUnreachable:
		return fmt.Errorf("%w: %v", ErrLedgerUnreachable, err)
	default:
		return err
	}
}
