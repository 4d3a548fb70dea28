package stateful

import (
	"sync/atomic"
	"time"
)

// Observer defines hooks for observability and metrics collection.
// Hooks are called synchronously on the request path and must not block.
type Observer interface {
	// OnTransition is called after a transition fired.
	OnTransition(pattern, resourceID, from, to string)

	// OnRender is called after a response was rendered.
	OnRender(pattern, resourceID, state string, statusCode int, duration time.Duration)

	// OnNoMatch is called when a request was not handled because no pattern
	// matched or no resource id could be extracted.
	OnNoMatch(method, path string)

	// OnError is called when a request failed with a misconfiguration error.
	OnError(pattern string, err error)
}

// NoopObserver is a no-op implementation of Observer.
type NoopObserver struct{}

func (NoopObserver) OnTransition(pattern, resourceID, from, to string) {}
func (NoopObserver) OnRender(pattern, resourceID, state string, statusCode int, duration time.Duration) {
}
func (NoopObserver) OnNoMatch(method, path string)     {}
func (NoopObserver) OnError(pattern string, err error) {}

// MetricsObserver counts handler events with atomic counters.
type MetricsObserver struct {
	renderCount     atomic.Int64
	transitionCount atomic.Int64
	noMatchCount    atomic.Int64
	errorCount      atomic.Int64
	totalLatencyNs  atomic.Int64
}

// NewMetricsObserver creates a new thread-safe metrics observer.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{}
}

func (m *MetricsObserver) OnTransition(pattern, resourceID, from, to string) {
	m.transitionCount.Add(1)
}

func (m *MetricsObserver) OnRender(pattern, resourceID, state string, statusCode int, duration time.Duration) {
	m.renderCount.Add(1)
	m.totalLatencyNs.Add(int64(duration))
}

func (m *MetricsObserver) OnNoMatch(method, path string) {
	m.noMatchCount.Add(1)
}

func (m *MetricsObserver) OnError(pattern string, err error) {
	m.errorCount.Add(1)
}

// Snapshot returns a copy of the current counters.
func (m *MetricsObserver) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		RenderCount:     m.renderCount.Load(),
		TransitionCount: m.transitionCount.Load(),
		NoMatchCount:    m.noMatchCount.Load(),
		ErrorCount:      m.errorCount.Load(),
		TotalLatency:    time.Duration(m.totalLatencyNs.Load()),
	}
}

// Reset clears all counters.
func (m *MetricsObserver) Reset() {
	m.renderCount.Store(0)
	m.transitionCount.Store(0)
	m.noMatchCount.Store(0)
	m.errorCount.Store(0)
	m.totalLatencyNs.Store(0)
}

// MetricsSnapshot is a point-in-time snapshot of MetricsObserver.
type MetricsSnapshot struct {
	RenderCount     int64         `json:"renderCount"`
	TransitionCount int64         `json:"transitionCount"`
	NoMatchCount    int64         `json:"noMatchCount"`
	ErrorCount      int64         `json:"errorCount"`
	TotalLatency    time.Duration `json:"totalLatencyNs"`
}

// multiObserver fans events out to several observers.
type multiObserver []Observer

func (m multiObserver) OnTransition(pattern, resourceID, from, to string) {
	for _, o := range m {
		o.OnTransition(pattern, resourceID, from, to)
	}
}

func (m multiObserver) OnRender(pattern, resourceID, state string, statusCode int, duration time.Duration) {
	for _, o := range m {
		o.OnRender(pattern, resourceID, state, statusCode, duration)
	}
}

func (m multiObserver) OnNoMatch(method, path string) {
	for _, o := range m {
		o.OnNoMatch(method, path)
	}
}

func (m multiObserver) OnError(pattern string, err error) {
	for _, o := range m {
		o.OnError(pattern, err)
	}
}
