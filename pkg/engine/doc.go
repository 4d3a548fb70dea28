// Package engine serves stateful mocks over HTTP.
//
// It wires the pieces of statemock together:
//
//   - Handler adapts a stateful.Handler to net/http. Each request is run
//     through ProcessRequest and the rendered state response is written
//     back with X-Mockd-Resource-Id and X-Mockd-State headers. Requests no
//     config handles fall through to a Next handler (JSON 404 by default).
//   - Admin exposes inspection and control endpoints on a separate listener:
//     the state overview, registered configs, single resource lookup and
//     override, reset, Prometheus metrics and a health probe.
//   - Metrics is a stateful.Observer that feeds a metrics.Registry.
//   - Watcher reloads the config documents when files change on disk.
//   - Server runs the mock listener, the admin listener and the watcher
//     under one errgroup and shuts them down together.
//
// Typical use:
//
//	srv, err := engine.NewServer(engine.Config{
//		Addr:       ":4280",
//		AdminAddr:  ":4290",
//		ConfigPath: "mocks/",
//		Watch:      true,
//	}, engine.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx)
package engine
