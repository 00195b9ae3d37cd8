package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the service collectors and the registry they are exported
// from.
type Metrics struct {
	Registry         *prometheus.Registry
	RequestCount     *prometheus.CounterVec
	RequestLatency   *prometheus.HistogramVec
	InferenceLatency prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total count of API requests",
			}, []string{"method", "endpoint", "status"},
		),
		RequestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_latency_seconds",
				Help:    "Request latency in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "endpoint"},
		),
		InferenceLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "model_inference_latency_seconds",
				Help:    "Model inference latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	m.Registry.MustRegister(
		m.RequestCount,
		m.RequestLatency,
		m.InferenceLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveInference(d time.Duration) {
	m.InferenceLatency.Observe(d.Seconds())
}

// UnmatchedEndpoint labels requests that matched no route.
const UnmatchedEndpoint = "unmatched"

// Middleware counts every request and records its latency, labelled by the
// matched route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = UnmatchedEndpoint
		}
		m.RequestLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		m.RequestCount.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
