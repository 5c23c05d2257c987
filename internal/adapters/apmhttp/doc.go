// Package apmhttp instruments the HTTP client the bridge uses to talk to
// remote registries. Its Transport wraps any http.RoundTripper and records
// the latency and status of every registry call in the statistics store.
package apmhttp
