// Package metrics exposes renderer and HTTP metrics in Prometheus format.
//
// Metrics live on a private registry so several servers (or tests) in one
// process never collide on registration.
//
//	m := metrics.New()
//	r, _ := mmdrender.NewRenderer(mmdrender.WithObserver(m))
//	router.GET("/metrics", gin.WrapH(m.Handler()))
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mmdrender "github.com/alnah/go-mmdrender"
)

const namespace = "mmdrender"

// Metrics holds all Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	// Renderer metrics
	RendersTotal    *prometheus.CounterVec
	RenderDuration  *prometheus.HistogramVec
	TabsOpen        prometheus.Gauge
	TabsTotal       prometheus.Counter
	BrowserRestarts *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec
}

// Compile-time interface check.
var _ mmdrender.Observer = (*Metrics)(nil)

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RendersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "renders_total",
				Help:      "Total number of renders by format and outcome",
			},
			[]string{"format", "outcome"},
		),
		RenderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "render_duration_seconds",
				Help:      "Render duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"format"},
		),
		TabsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tabs_open",
				Help:      "Number of browser tabs currently open",
			},
		),
		TabsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tabs_opened_total",
				Help:      "Total number of browser tabs opened",
			},
		),
		BrowserRestarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "browser_restarts_total",
				Help:      "Browser relaunch attempts by result",
			},
			[]string{"result"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
			[]string{"method", "path"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) TabOpened() {
	m.TabsOpen.Inc()
	m.TabsTotal.Inc()
}

func (m *Metrics) TabClosed() {
	m.TabsOpen.Dec()
}

func (m *Metrics) BrowserRestarted(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.BrowserRestarts.WithLabelValues(result).Inc()
}

func (m *Metrics) RenderDone(format mmdrender.Format, kind mmdrender.ErrorKind, elapsed time.Duration) {
	m.RendersTotal.WithLabelValues(string(format), string(kind)).Inc()
	m.RenderDuration.WithLabelValues(string(format)).Observe(elapsed.Seconds())
}

// Middleware records request count, latency and response size. The path
// label is the matched route, so arbitrary URLs cannot explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		m.RequestsTotal.WithLabelValues(method, path, status).Inc()
		m.RequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.ResponseSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
