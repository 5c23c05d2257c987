package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func NewMiddleware(handler http.Handler, operation string) http.Handler {
	return otelhttp.NewHandler(handler, operation)
}

// NewTransport wraps base so outgoing requests start client spans and carry
// the trace context.
func NewTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(base)
}
