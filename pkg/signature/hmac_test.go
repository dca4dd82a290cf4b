package signature

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	body := []byte(`{"event_type":"payment.completed","order_ref":"ord_1"}`)
	sig := Sign("secret", body)
	require.Len(t, sig, 64)

	require.NoError(t, Verify("secret", body, sig))
	require.NoError(t, Verify("secret", body, "sha256="+sig))
	require.ErrorIs(t, Verify("other", body, sig), ErrInvalidSignature)
	require.ErrorIs(t, Verify("secret", []byte(`{}`), sig), ErrInvalidSignature)
	require.ErrorIs(t, Verify("secret", body, "zz-not-hex"), ErrInvalidSignature)
	require.ErrorIs(t, Verify("secret", body, ""), ErrMissingSignature)
}
