package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var reqCnt = &Metric{
	ID:          "reqCnt",
	Name:        "req_total",
	Description: "How many HTTP requests processed, partitioned by status code and HTTP method.",
	Type:        "counter_vec",
	Args:        []string{"code", "method", "url"},
}

var reqDur = &Metric{
	ID:          "reqDur",
	Name:        "req_dur_ms",
	Description: "The HTTP request latencies in milliseconds.",
	Type:        "histogram_vec",
	Args:        []string{"code", "method", "url"},
}

const defaultMetricPath = "/metrics"

// RequestCounterURLLabelMappingFn maps a request to its "url" label. Use
// the route template (c.FullPath()) to keep payment ids out of label values.
type RequestCounterURLLabelMappingFn func(c *gin.Context) string

// Prometheus records per-request metrics for a gin engine and serves
// /metrics, either on the same engine or on a dedicated listen address.
type Prometheus struct {
	reqCnt *prometheus.CounterVec
	reqDur *prometheus.HistogramVec

	registry      *prometheus.Registry
	gatherer      prometheus.Gatherer
	listenAddress string
	server        *http.Server
	metricsPath   string
	urlLabel      RequestCounterURLLabelMappingFn
	log           *zap.SugaredLogger
}

type NewPrometheusOptions struct {
	Subsystem               string
	MetricsPath             string
	ReqCntURLLabelMappingFn RequestCounterURLLabelMappingFn
	// Registerer defaults to prometheus.DefaultRegisterer; Gatherer to
	// prometheus.DefaultGatherer.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *zap.SugaredLogger
}

func NewPrometheus(options NewPrometheusOptions) *Prometheus {
	p := &Prometheus{
		metricsPath: options.MetricsPath,
		urlLabel:    options.ReqCntURLLabelMappingFn,
		log:         options.Logger,
		gatherer:    options.Gatherer,
	}
	if p.metricsPath == "" {
		p.metricsPath = defaultMetricPath
	}
	if p.urlLabel == nil {
		p.urlLabel = func(c *gin.Context) string {
			if fp := c.FullPath(); fp != "" {
				return fp
			}
			return "unmatched"
		}
	}
	if p.log == nil {
		p.log = zap.NewNop().Sugar()
	}
	if p.gatherer == nil {
		p.gatherer = prometheus.DefaultGatherer
	}
	reg := options.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	subsystem := options.Subsystem
	if subsystem == "" {
		subsystem = Subsystem
	}
	p.reqCnt = p.register(reg, reqCnt, subsystem).(*prometheus.CounterVec)
	p.reqDur = p.register(reg, reqDur, subsystem).(*prometheus.HistogramVec)
	return p
}

func (p *Prometheus) register(reg prometheus.Registerer, def *Metric, subsystem string) prometheus.Collector {
	metric := NewMetric(def, subsystem)
	if err := reg.Register(metric); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector
		}
		p.log.Errorw("metric could not be registered", "metric", def.Name, "err", err)
	}
	return metric
}

// SetListenAddress serves metrics on a separate port instead of the API
// engine.
func (p *Prometheus) SetListenAddress(address string) {
	p.listenAddress = address
}

// Use attaches the middleware and exposes the metrics endpoint.
func (p *Prometheus) Use(e *gin.Engine) {
	e.Use(p.HandlerFunc())
	handler := gin.WrapH(promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{}))
	if p.listenAddress == "" {
		e.GET(p.metricsPath, handler)
		return
	}
	r := gin.New()
	r.GET(p.metricsPath, handler)
	p.server = &http.Server{Addr: p.listenAddress, Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.log.Errorw("metrics server stopped", "addr", p.listenAddress, "err", err)
		}
	}()
}

// Shutdown stops the dedicated metrics listener if one was started.
func (p *Prometheus) Shutdown(ctx context.Context) error {
	if p.server == nil {
		return nil
	}
	return p.server.Shutdown(ctx)
}

func (p *Prometheus) HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == p.metricsPath {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		url := p.urlLabel(c)
		p.reqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		p.reqDur.WithLabelValues(status, c.Request.Method, url).Observe(float64(time.Since(start).Milliseconds()))
	}
}
