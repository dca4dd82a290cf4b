package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollectors_RecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollectors(reg)
	require.NoError(t, err)

	c.PaymentOutcome("payment", "completed")
	c.PaymentOutcome("payment", "completed")
	c.WebhookOutcome("payment.completed", "duplicate")
	c.GatewayLatency("/billing/payments/charge/", "ok", 120*time.Millisecond)
	c.BillingTick(time.Unix(1700000000, 0))

	require.Equal(t, 2.0, testutil.ToFloat64(c.paymentOutcome.WithLabelValues("payment", "completed")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.webhookOutcome.WithLabelValues("payment.completed", "duplicate")))
	require.Equal(t, 1700000000.0, testutil.ToFloat64(c.billingTick))

	_, err = NewCollectors(reg)
	require.Error(t, err)
}

func TestCollectors_NilIsNoop(t *testing.T) {
	var c *Collectors
	require.NotPanics(t, func() {
		c.PaymentOutcome("payment", "failed")
		c.BillingCharge("failed")
		c.BillingTick(time.Now())
	})
}

func TestPrometheus_ServesMetricsOnEngine(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	p := NewPrometheus(NewPrometheusOptions{Registerer: reg, Gatherer: reg})

	r := gin.New()
	p.Use(r)
	r.GET("/api/v1/payments/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/payments/abc", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.True(t, strings.Contains(body, `paygate_req_total{code="200",method="GET",url="/api/v1/payments/:id"} 1`), body)
}
