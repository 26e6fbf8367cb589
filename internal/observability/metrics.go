package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Metrics collects Prometheus metrics for the ledger processes.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	postings        *prometheus.CounterVec
	flags           *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	voids           prometheus.Counter
	verifications   *prometheus.CounterVec
}

// NewMetrics initialises the registry and its collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_postings_total",
		Help: "Posting attempts by outcome.",
	}, []string{"outcome"})
	flags := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_edge_case_flags_total",
		Help: "Edge-case flags raised by type and severity.",
	}, []string{"type", "severity"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_chain_conflicts_total",
		Help: "Chain tail conflicts; retried is false when the single retry conflicted again.",
	}, []string{"retried"})
	voids := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "odyssey_ledger_voids_total",
		Help: "Transactions voided through reversal entries.",
	})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_ledger_chain_verifications_total",
		Help: "Journal chain verifications by result.",
	}, []string{"result"})
	registry.MustRegister(requests, duration, postings, flags, conflicts, voids, verifications)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		postings:        postings,
		flags:           flags,
		conflicts:       conflicts,
		voids:           voids,
		verifications:   verifications,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for additional collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// ObservePosting counts a post outcome and the flags that came with it.
func (m *Metrics) ObservePosting(outcome string, flags []ledger.Flag) {
	if m == nil {
		return
	}
	m.postings.WithLabelValues(outcome).Inc()
	for _, f := range flags {
		severity := string(f.Severity)
		if severity == "" {
			severity = string(ledger.SeverityInfo)
		}
		m.flags.WithLabelValues(string(f.Type), severity).Inc()
	}
}

// ObserveConflict counts a chain conflict.
func (m *Metrics) ObserveConflict(retried bool) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(strconv.FormatBool(retried)).Inc()
}

// ObserveVoid counts a reversal.
func (m *Metrics) ObserveVoid() {
	if m == nil {
		return
	}
	m.voids.Inc()
}

// ObserveVerification counts a chain verification result.
func (m *Metrics) ObserveVerification(intact bool) {
	if m == nil {
		return
	}
	result := "intact"
	if !intact {
		result = "broken"
	}
	m.verifications.WithLabelValues(result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
