package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paygate/pkg/types"
)

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		from, to types.TransactionStatus
		want     error
	}{
		{types.TransactionStatusPending, types.TransactionStatusAuthorized, nil},
		{types.TransactionStatusPending, types.TransactionStatusCompleted, nil},
		{types.TransactionStatusPending, types.TransactionStatusFailed, nil},
		{types.TransactionStatusAuthorized, types.TransactionStatusCompleted, nil},
		{types.TransactionStatusAuthorized, types.TransactionStatusCancelled, nil},
		{types.TransactionStatusCompleted, types.TransactionStatusPartiallyRefunded, nil},
		{types.TransactionStatusPartiallyRefunded, types.TransactionStatusRefunded, nil},
		{types.TransactionStatusActive, types.TransactionStatusCancelled, nil},

		{types.TransactionStatusFailed, types.TransactionStatusCompleted, ErrAlreadyTerminal},
		{types.TransactionStatusCancelled, types.TransactionStatusAuthorized, ErrAlreadyTerminal},
		{types.TransactionStatusRefunded, types.TransactionStatusCompleted, ErrAlreadyTerminal},
		{types.TransactionStatusCompleted, types.TransactionStatusAuthorized, ErrAlreadyTerminal},
		{types.TransactionStatusPartiallyRefunded, types.TransactionStatusCompleted, ErrAlreadyTerminal},

		{types.TransactionStatusPending, types.TransactionStatusRefunded, ErrInvalidTransition},
		{types.TransactionStatusPending, types.TransactionStatusCancelled, ErrInvalidTransition},
		{types.TransactionStatusCompleted, types.TransactionStatusFailed, ErrInvalidTransition},
		{types.TransactionStatusActive, types.TransactionStatusCompleted, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			err := CheckTransition(tc.from, tc.to)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}
