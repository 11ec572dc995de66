// Package metrics provides Prometheus metrics for the server.
package metrics

import (
	"bytes"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"cero/internal/httpd"
)

// Default histogram buckets for request latency.
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metric collectors for the server.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	RateLimitRejections prometheus.Counter
	SessionValidations  *prometheus.CounterVec
}

// New creates a Metrics instance with a custom registry and all
// collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cero_http_requests_total",
			Help: "Total inbound HTTP requests.",
		}, []string{"method", "status_code"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cero_http_request_duration_seconds",
			Help:    "Inbound HTTP request latency in seconds.",
			Buckets: defaultBuckets,
		}, []string{"method", "status_code"}),

		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cero_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter.",
		}),

		SessionValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cero_session_validations_total",
			Help: "Session cookie validations by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RateLimitRejections,
		m.SessionValidations,
	)

	return m
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label. Non-standard
// methods map to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// Observe records one completed request. It matches the server's
// observation hook signature.
func (m *Metrics) Observe(method string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	label := NormalizeMethod(method)
	m.RequestsTotal.WithLabelValues(label, code).Inc()
	m.RequestDuration.WithLabelValues(label, code).Observe(elapsed.Seconds())
	if status == 429 {
		m.RateLimitRejections.Inc()
	}
}

// Handler renders the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() httpd.Handler {
	return func(req *httpd.Request) *httpd.Response {
		resp := httpd.NewResponse()

		families, err := m.Registry.Gather()
		if err != nil {
			resp.SetStatus(500)
			resp.SetContentType("text/plain")
			resp.SetBody("gather failed\n")
			return resp
		}

		var buf bytes.Buffer
		enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				resp.SetStatus(500)
				resp.SetContentType("text/plain")
				resp.SetBody("encode failed\n")
				return resp
			}
		}

		resp.SetContentType(string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		resp.SetBody(buf.String())
		return resp
	}
}
