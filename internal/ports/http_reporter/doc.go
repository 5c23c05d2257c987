// Package http_reporter provides the bridge's HTTP surfaces: the metrics
// handler that resolves a registry target, builds a snapshot and serializes
// it as the JSON metrics document (or the Prometheus text format on
// request), and the statistics handler that exposes the bridge's own
// counters as JSON.
//
// The package implements the standard http.Handler interface and can be
// mounted on any HTTP router or used with the standard library's http package.
package http_reporter
