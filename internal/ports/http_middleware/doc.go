// Package http_middleware provides HTTP middleware that records every
// request served by the bridge: path, latency and status code. Responses
// with a 5xx status are also kept as error events.
//
// The middleware is designed to be used with the standard library's
// net/http package and integrates with the bridge's statistics store.
package http_middleware
