package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_DefaultsAndFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "paygate.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
payment:
  merchant_number: "1001"
  subscription_merchant_number: "2002"
  authorize_added_percent: 5
  authorize_minimum_addition: 20
billing:
  workers: 8
`), 0o600))
	t.Setenv("APP_CONFIG_FILE", file)
	t.Setenv("APP_WEBHOOK_SECRET", "s3cret")

	c, err := New()
	require.NoError(t, err)
	require.Equal(t, "1001", c.Payment.MerchantNumber)
	require.Equal(t, "2002", c.Payment.SubscriptionMerchantNumber)
	require.Equal(t, 5.0, c.Payment.AuthorizeAddedPercent)
	require.Equal(t, 12, c.Payment.MaxInstallments)
	require.True(t, c.Payment.AutoCapture)
	require.Equal(t, 8, c.Billing.Workers)
	require.Equal(t, 24*time.Hour, c.Billing.Interval)
	require.Equal(t, 180*time.Second, c.Gateway.Timeout)
	require.Equal(t, "s3cret", c.Webhook.Secret)
	require.Equal(t, "X-Signature", c.Webhook.SignatureHeader)
	require.Equal(t, 20, c.Database.MaxOpenConns)
	require.Equal(t, 30*time.Minute, c.Database.ConnMaxLifetime)
	require.Equal(t, 10*time.Minute, c.Billing.LeaseTTL)
	require.True(t, c.Webhook.ConfirmLegacy)
	require.True(t, c.Payment.SupportsCurrency("usd"))
	require.False(t, c.Payment.SupportsCurrency("XYZ"))
}

func TestSupportsCurrency_EmptyAcceptsAny(t *testing.T) {
	require.True(t, PaymentConfig{}.SupportsCurrency("XYZ"))
	require.False(t, PaymentConfig{SupportedCurrencies: []string{"ILS"}}.SupportsCurrency("USD"))
}

func TestValidate(t *testing.T) {
	c := &Config{Payment: PaymentConfig{MaxInstallments: 0}, Billing: BillingConfig{Workers: 1}}
	require.Error(t, c.Validate())

	c.Payment.MaxInstallments = 12
	require.NoError(t, c.Validate())

	c.Payment.AuthorizeAddedPercent = -1
	require.Error(t, c.Validate())
}
