// Package metrics exposes request lifecycle and session metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exconnector"

var sessionStates = []string{"not_connected", "connecting", "connected", "disconnecting", "disconnected"}

// Collectors implements the connector observer on top of Prometheus vectors.
type Collectors struct {
	reg prometheus.Registerer

	sent      *prometheus.CounterVec
	completed *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	unknown   *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	late      *prometheus.CounterVec
	session   *prometheus.GaugeVec
	httpReqs  *prometheus.CounterVec
	httpTime  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		reg: reg,
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Requests handed to the session transport.",
		}, []string{"kind"}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_completed_total",
			Help:      "Requests returned to callers, by outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time from send to caller return.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		unknown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_correlation_total",
			Help:      "Responses whose correlation id matched no pending request.",
		}, []string{"family"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Outbound frames rejected by sequence number.",
		}, []string{"kind"}),
		late: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_completions_total",
			Help:      "Requests that completed after their caller timed out.",
		}, []string{"kind", "outcome"}),
		session: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_state",
			Help:      "1 for the current session state.",
		}, []string{"state"}),
		httpReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(c.sent, c.completed, c.latency, c.unknown, c.rejected, c.late, c.session, c.httpReqs, c.httpTime)
	return c
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (c *Collectors) RequestSent(kind string) {
	c.sent.WithLabelValues(kind).Inc()
}

func (c *Collectors) RequestCompleted(kind, outcome string, elapsed time.Duration) {
	c.completed.WithLabelValues(kind, outcome).Inc()
	if elapsed > 0 {
		c.latency.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

func (c *Collectors) UnknownCorrelation(family string) {
	c.unknown.WithLabelValues(family).Inc()
}

func (c *Collectors) FrameRejected(kind string) {
	c.rejected.WithLabelValues(kind).Inc()
}

func (c *Collectors) SessionState(state string) {
	for _, s := range sessionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.session.WithLabelValues(s).Set(v)
	}
}

func (c *Collectors) LateCompletion(kind, outcome string) {
	c.late.WithLabelValues(kind, outcome).Inc()
}

func (c *Collectors) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	c.httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpTime.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TrackPending exports fn as the pending-request gauge of one family.
func (c *Collectors) TrackPending(family string, fn func() float64) error {
	return c.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "pending_requests",
		Help:        "Requests waiting for a terminal response.",
		ConstLabels: prometheus.Labels{"family": family},
	}, fn))
}
