package engine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/getmockd/statemock/pkg/metrics"
	"github.com/getmockd/statemock/pkg/stateful"
)

// Metrics records stateful activity in a metrics.Registry. It implements
// stateful.Observer and provides an HTTP middleware for request totals.
type Metrics struct {
	registry *metrics.Registry

	responses    *metrics.Counter
	transitions  *metrics.Counter
	unmatched    *metrics.Counter
	errors       *metrics.Counter
	renderTime   *metrics.Histogram
	httpRequests *metrics.Counter
	httpDuration *metrics.Histogram
}

var _ stateful.Observer = (*Metrics)(nil)

// NewMetrics registers the statemock metrics in reg.
func NewMetrics(reg *metrics.Registry) *Metrics {
	return &Metrics{
		registry: reg,
		responses: reg.NewCounter("statemock_responses_total",
			"Stateful responses rendered.", "pattern", "state", "status"),
		transitions: reg.NewCounter("statemock_transitions_total",
			"State transitions fired.", "pattern", "from", "to"),
		unmatched: reg.NewCounter("statemock_unmatched_requests_total",
			"Requests no stateful config handled."),
		errors: reg.NewCounter("statemock_errors_total",
			"Requests that failed with a stateful error.", "pattern"),
		renderTime: reg.NewHistogram("statemock_process_duration_seconds",
			"Time spent processing a stateful request.", nil, "pattern"),
		httpRequests: reg.NewCounter("statemock_http_requests_total",
			"HTTP requests served by the mock listener.", "method", "status"),
		httpDuration: reg.NewHistogram("statemock_http_request_duration_seconds",
			"HTTP request latency on the mock listener.", nil, "method"),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *metrics.Registry { return m.registry }

// OnTransition implements stateful.Observer.
func (m *Metrics) OnTransition(pattern, _, from, to string) {
	_ = m.transitions.Inc(pattern, from, to)
}

// OnRender implements stateful.Observer.
func (m *Metrics) OnRender(pattern, _, state string, statusCode int, duration time.Duration) {
	_ = m.responses.Inc(pattern, state, strconv.Itoa(statusCode))
	_ = m.renderTime.Observe(duration.Seconds(), pattern)
}

// OnNoMatch implements stateful.Observer.
func (m *Metrics) OnNoMatch(_, _ string) {
	_ = m.unmatched.Inc()
}

// OnError implements stateful.Observer.
func (m *Metrics) OnError(pattern string, _ error) {
	_ = m.errors.Inc(pattern)
}

// Middleware records request counts and durations for next.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := newStatusWriter(w)

		next.ServeHTTP(sw, r)

		_ = m.httpRequests.Inc(r.Method, strconv.Itoa(sw.statusCode))
		_ = m.httpDuration.Observe(time.Since(start).Seconds(), r.Method)
	})
}

// statusWriter captures the status code written by a handler.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.written = true
	return w.ResponseWriter.Write(b)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
