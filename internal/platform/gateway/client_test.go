package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/signature"
)

func newTestAPI(t *testing.T, url string, log *zap.SugaredLogger) *API {
	t.Helper()
	cfg := &config.Config{Gateway: config.GatewayConfig{
		BaseURL:      url,
		CompanyID:    "42",
		APIKey:       "key",
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return NewAPI(NewClient(cfg, log, nil))
}

func TestCharge_SuccessWithToken(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathCharge, r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, signature.Verify("key", raw, r.Header.Get("X-Signature")))
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte(`{"Status":0,"Data":{"DocumentID":"doc-1","CustomerID":"c-1","Payment":{"ID":"gw-1","ValidPayment":true,"AuthNumber":"A1","Amount":100,"PaymentMethod":{"CreditCard_Token":"tok-xyz","CreditCard_LastDigits":"4242","CreditCard_ExpirationMonth":12,"CreditCard_ExpirationYear":2030}}}}`))
	}))
	defer srv.Close()

	res, err := newTestAPI(t, srv.URL, nil).Charge(context.Background(), &ChargeRequest{
		OrderRef: "ord-1", Currency: "ILS", Amount: decimal.NewFromInt(100), Installments: 1,
		PaymentMethod: PaymentMethod{SingleUseToken: "su-1"},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "gw-1", res.GatewayTransactionID)
	require.Equal(t, "A1", res.AuthorizationCode)
	require.Equal(t, "doc-1", res.DocumentID)
	require.NotNil(t, res.Token)
	require.Equal(t, "4242", res.Token.LastFour)

	creds := got["Credentials"].(map[string]any)
	require.Equal(t, "42", creds["CompanyID"])
	require.Equal(t, "ord-1", got["ExternalReference"])
}

func TestCharge_DeclinedMessagePrecedence(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"user message wins", `{"Status":1,"UserErrorMessage":"card blocked","Data":{"Payment":{"ValidPayment":false,"StatusDescription":"refused"}}}`, "card blocked"},
		{"status description", `{"Status":0,"Data":{"Payment":{"ID":"gw-2","ValidPayment":false,"StatusDescription":"insufficient funds"}}}`, "insufficient funds"},
		{"fallback", `{"Status":0,"Data":{}}`, "payment declined"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			res, err := newTestAPI(t, srv.URL, nil).Charge(context.Background(), &ChargeRequest{OrderRef: "o", Amount: decimal.NewFromInt(1)})
			require.NoError(t, err)
			require.False(t, res.Success)
			require.Equal(t, tc.want, res.ErrorMessage)
		})
	}
}

func TestCharge_TransportErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestAPI(t, srv.URL, nil).Charge(context.Background(), &ChargeRequest{OrderRef: "o", Amount: decimal.NewFromInt(1)})
	require.Error(t, err)
	require.Equal(t, apperr.KindGatewayUnreachable, apperr.KindOf(err))
	require.EqualValues(t, 1, calls.Load())
}

func TestGetPayment_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"Status":0,"Data":{"Payment":{"ID":"gw-9","ValidPayment":true}}}`))
	}))
	defer srv.Close()

	res, err := newTestAPI(t, srv.URL, nil).GetPayment(context.Background(), "gw-9")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.EqualValues(t, 3, calls.Load())
}

func TestSend_LogsSanitizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Status":0,"Data":{"Payment":{"ID":"gw","ValidPayment":true}}}`))
	}))
	defer srv.Close()

	core, logs := observer.New(zap.InfoLevel)
	_, err := newTestAPI(t, srv.URL, zap.New(core).Sugar()).Charge(context.Background(), &ChargeRequest{
		OrderRef: "o", Amount: decimal.NewFromInt(5),
		PaymentMethod: PaymentMethod{CreditCardNumber: "4580000000000000", CreditCardCVV: "123", CreditCardExpirationMonth: 1, CreditCardExpirationYear: 2031},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("gateway_request").All()
	require.Len(t, entries, 1)
	raw, err := json.Marshal(entries[0].ContextMap()["body"])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "4580000000000000")
	assert.NotContains(t, string(raw), `"123"`)
	assert.NotContains(t, string(raw), `"key"`)
	assert.Contains(t, string(raw), `"CreditCard_Number":"****"`)
}

func TestSanitize_Nested(t *testing.T) {
	in := map[string]any{
		"PaymentMethod": map[string]any{"CardNumber": "4111", "cvv": "999", "ExpirationMonth": 1},
		"Items":         []any{map[string]any{"Name": "x"}},
		"Empty":         map[string]any{"CVV": ""},
	}
	out := Sanitize(in).(map[string]any)
	pm := out["PaymentMethod"].(map[string]any)
	require.Equal(t, "****", pm["CardNumber"])
	require.Equal(t, "***", pm["cvv"])
	require.Equal(t, 1, pm["ExpirationMonth"])
	require.Equal(t, "", out["Empty"].(map[string]any)["CVV"])
	require.Equal(t, "4111", in["PaymentMethod"].(map[string]any)["CardNumber"])
}
