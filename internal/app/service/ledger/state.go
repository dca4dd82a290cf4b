package ledger

import (
	"github.com/samber/lo"

	"github.com/fatflowers/paygate/pkg/types"
)

var transitions = map[types.TransactionStatus][]types.TransactionStatus{
	types.TransactionStatusPending:           {types.TransactionStatusAuthorized, types.TransactionStatusCompleted, types.TransactionStatusFailed},
	types.TransactionStatusAuthorized:        {types.TransactionStatusCompleted, types.TransactionStatusFailed, types.TransactionStatusCancelled},
	types.TransactionStatusCompleted:         {types.TransactionStatusPartiallyRefunded, types.TransactionStatusRefunded},
	types.TransactionStatusPartiallyRefunded: {types.TransactionStatusPartiallyRefunded, types.TransactionStatusRefunded},
	types.TransactionStatusActive:            {types.TransactionStatusCancelled},
}

// progress orders the non-failure path so late deliveries can be told
// apart from nonsense.
var progress = map[types.TransactionStatus]int{
	types.TransactionStatusPending:           0,
	types.TransactionStatusAuthorized:        1,
	types.TransactionStatusCompleted:         2,
	types.TransactionStatusPartiallyRefunded: 3,
	types.TransactionStatusRefunded:          4,
}

// CanTransition reports whether from -> to is an edge of the state machine.
func CanTransition(from, to types.TransactionStatus) bool {
	return lo.Contains(transitions[from], to)
}

// CheckTransition returns nil for an allowed edge, ErrAlreadyTerminal when
// the record already moved past the target (terminal source, or a target
// behind the current progress), and ErrInvalidTransition otherwise.
func CheckTransition(from, to types.TransactionStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if from.IsTerminal() {
		return ErrAlreadyTerminal
	}
	fp, fok := progress[from]
	tp, tok := progress[to]
	if fok && tok && tp < fp {
		return ErrAlreadyTerminal
	}
	return ErrInvalidTransition
}
