package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routes lists the API paths reported as their own label value; anything
// else collapses to "other" so scanners cannot blow up label cardinality.
var routes = map[string]string{
	"/healthz":              "/healthz",
	"/metrics":              "/metrics",
	"/v1/documents":         "/v1/documents",
	"/v1/documents/process": "/v1/documents/process",
	"/v1/documents/upload":  "/v1/documents/upload",
}

const recordsPrefix = "/v1/records/"

// HTTPServerMetrics instruments the API surface.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	inFlight  prometheus.Gauge
	bodyBytes *prometheus.CounterVec
}

// NewHTTPServerMetrics registers request metrics on registry, or on a fresh
// registry when nil.
func NewHTTPServerMetrics(service string, registry *prometheus.Registry) *HTTPServerMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "triage", Subsystem: "http", Name: name, Help: help}
	}

	m := &HTTPServerMetrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("requests_total", "HTTP requests by route and status.")),
			[]string{"service", "method", "path", "status"},
		),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "triage",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   []float64{.005, .025, .1, .25, .5, 1, 2.5, 5, 15, 30},
		}, []string{"service", "method", "path"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "triage",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Requests currently being served.",
			ConstLabels: prometheus.Labels{"service": service},
		}),
		bodyBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts(opts("response_bytes_total", "Response body bytes written by route.")),
			[]string{"service", "path"},
		),
	}
	registry.MustRegister(m.requests, m.latency, m.inFlight, m.bodyBytes)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		started := time.Now()
		rw := &responseMeter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routeLabel(r.URL.Path)
		m.requests.WithLabelValues(service, r.Method, route, strconv.Itoa(rw.status)).Inc()
		m.latency.WithLabelValues(service, r.Method, route).Observe(time.Since(started).Seconds())
		m.bodyBytes.WithLabelValues(service, route).Add(float64(rw.written))
	})
}

func routeLabel(path string) string {
	if strings.HasPrefix(path, recordsPrefix) {
		return recordsPrefix + "{email_id}"
	}
	if route, ok := routes[path]; ok {
		return route
	}
	return "other"
}

// responseMeter captures the status code and body size of a response.
type responseMeter struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *responseMeter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *responseMeter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.written += n
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseMeter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
