package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paygate/pkg/response"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, Kind(""), KindOf(nil))
	require.Equal(t, KindInternal, KindOf(errors.New("boom")))

	wrapped := fmt.Errorf("outer: %w", Wrap(KindNotFound, "transaction not found", errors.New("record not found")))
	require.Equal(t, KindNotFound, KindOf(wrapped))
	require.True(t, errors.Is(wrapped, New(KindNotFound, "")))
	require.False(t, errors.Is(wrapped, New(KindUnauthorized, "")))
}

func TestKindMappings(t *testing.T) {
	require.Equal(t, response.APIResponseCodeUnauthorized, KindUnauthorized.Code())
	require.Equal(t, http.StatusUnauthorized, KindUnauthorized.HTTPStatus())
	require.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	require.Equal(t, http.StatusNotFound, KindTokenNotFound.HTTPStatus())
	require.Equal(t, response.APIResponseCodeGatewayUnavailable, KindGatewayUnreachable.Code())
	require.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestErrorMessage(t *testing.T) {
	e := Validation("amount must be positive, got %s", "-1")
	require.Equal(t, "amount must be positive, got -1", e.Error())
	require.Equal(t, "gateway: timeout", Wrap(KindGatewayUnreachable, "gateway", errors.New("timeout")).Error())
}
