// Package metrics is a small in-process metrics registry that serves the
// Prometheus text exposition format.
//
//	reg := metrics.NewRegistry()
//	requests := reg.NewCounter("statemock_requests_total", "Requests handled.", "pattern", "status")
//	_ = requests.Inc("/orders/{id}", "200")
//	http.Handle("/metrics", reg.Handler())
package metrics
