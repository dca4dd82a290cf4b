package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// HistogramBuckets are millisecond buckets sized for card gateway calls,
// which routinely take seconds and are cut off by the gateway timeout.
var HistogramBuckets = []float64{
	25, 50, 100, 200, 300, 500,
	750, 1000, 1500, 2000,
	3000, 5000, 7500, 10000, 15000,
	30000, 60000, 120000, 180000,
}

// Metric is a definition for the name, description, type, ID, and
// prometheus.Collector type (i.e. CounterVec, Summary, etc) of each metric
type Metric struct {
	MetricCollector prometheus.Collector
	ID              string
	Name            string
	Description     string
	Type            string
	Args            []string
}

// NewMetric associates prometheus.Collector based on Metric.Type
func NewMetric(m *Metric, subsystem string) prometheus.Collector {
	switch m.Type {
	case "counter_vec":
		return prometheus.NewCounterVec(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "counter":
		return prometheus.NewCounter(prometheus.CounterOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "gauge_vec":
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description}, m.Args)
	case "gauge":
		return prometheus.NewGauge(prometheus.GaugeOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description})
	case "histogram_vec":
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets}, m.Args)
	case "histogram":
		return prometheus.NewHistogram(prometheus.HistogramOpts{Subsystem: subsystem, Name: m.Name, Help: m.Description, Buckets: HistogramBuckets})
	}
	return nil
}

const Subsystem = "paygate"

var (
	MetricPaymentOutcome = &Metric{
		ID:          "paymentOutcome",
		Name:        "payment_outcomes_total",
		Description: "payment attempts by kind and resulting status",
		Type:        "counter_vec",
		Args:        []string{"kind", "status"},
	}
	MetricGatewayLatency = &Metric{
		ID:          "gatewayDur",
		Name:        "gateway_request_duration_ms",
		Description: "gateway request latency in milliseconds",
		Type:        "histogram_vec",
		Args:        []string{"path", "outcome"},
	}
	MetricWebhookOutcome = &Metric{
		ID:          "webhookOutcome",
		Name:        "webhook_outcomes_total",
		Description: "webhook notifications by event type and outcome",
		Type:        "counter_vec",
		Args:        []string{"event_type", "outcome"},
	}
	MetricBillingCharge = &Metric{
		ID:          "billingCharge",
		Name:        "billing_charges_total",
		Description: "recurring charges by outcome",
		Type:        "counter_vec",
		Args:        []string{"outcome"},
	}
	MetricBillingLastTick = &Metric{
		ID:          "billingLastTick",
		Name:        "billing_last_tick_timestamp_seconds",
		Description: "unix time of the last finished billing tick",
		Type:        "gauge",
	}
)

// Collectors holds the business metrics. A nil *Collectors is valid and
// records nothing, so services can be built without a registry in tests.
type Collectors struct {
	paymentOutcome *prometheus.CounterVec
	gatewayLatency *prometheus.HistogramVec
	webhookOutcome *prometheus.CounterVec
	billingCharge  *prometheus.CounterVec
	billingTick    prometheus.Gauge
}

// NewCollectors registers the business metrics on reg.
func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		paymentOutcome: NewMetric(MetricPaymentOutcome, Subsystem).(*prometheus.CounterVec),
		gatewayLatency: NewMetric(MetricGatewayLatency, Subsystem).(*prometheus.HistogramVec),
		webhookOutcome: NewMetric(MetricWebhookOutcome, Subsystem).(*prometheus.CounterVec),
		billingCharge:  NewMetric(MetricBillingCharge, Subsystem).(*prometheus.CounterVec),
		billingTick:    NewMetric(MetricBillingLastTick, Subsystem).(prometheus.Gauge),
	}
	for _, col := range []prometheus.Collector{c.paymentOutcome, c.gatewayLatency, c.webhookOutcome, c.billingCharge, c.billingTick} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) PaymentOutcome(kind, status string) {
	if c == nil {
		return
	}
	c.paymentOutcome.WithLabelValues(kind, status).Inc()
}

func (c *Collectors) GatewayLatency(path, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.gatewayLatency.WithLabelValues(path, outcome).Observe(float64(d.Milliseconds()))
}

func (c *Collectors) WebhookOutcome(eventType, outcome string) {
	if c == nil {
		return
	}
	c.webhookOutcome.WithLabelValues(eventType, outcome).Inc()
}

func (c *Collectors) BillingCharge(outcome string) {
	if c == nil {
		return
	}
	c.billingCharge.WithLabelValues(outcome).Inc()
}

func (c *Collectors) BillingTick(at time.Time) {
	if c == nil {
		return
	}
	c.billingTick.Set(float64(at.Unix()))
}

func newDefaultCollectors() (*Collectors, error) {
	return NewCollectors(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(newDefaultCollectors),
)
