package ledger

import (
	"errors"

	"github.com/fatflowers/paygate/pkg/apperr"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrAlreadyTerminal marks a transition that lost the race against a
	// terminal or later state. Apply swallows it.
	ErrAlreadyTerminal      = errors.New("transaction already in a terminal or later state")
	ErrRefundExceedsBalance = errors.New("refund amount exceeds refundable balance")
	ErrInvalidRefundAmount  = errors.New("refund amount must be positive")
	ErrConcurrentUpdate     = errors.New("transaction changed concurrently")
	ErrInvalidFilter        = errors.New("invalid filter")
)

// AsAppError maps ledger sentinels onto caller-facing kinds.
func AsAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.KindNotFound, "transaction not found", err)
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrRefundExceedsBalance),
		errors.Is(err, ErrInvalidRefundAmount), errors.Is(err, ErrInvalidFilter):
		return apperr.Wrap(apperr.KindValidation, err.Error(), err)
	case errors.Is(err, ErrAlreadyTerminal):
		return apperr.Wrap(apperr.KindConflictAlreadyTerminal, err.Error(), err)
	}
	return err
}
