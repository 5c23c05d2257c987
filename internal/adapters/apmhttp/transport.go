package apmhttp

import (
	"net/http"
	"time"

	"github.com/fllarpy/mbean-bridge/domain"
)

// Transport is an http.RoundTripper that measures requests and records them.
type Transport struct {
	// Base is the underlying RoundTripper to execute the request.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	// Store is the metric store to which metrics will be written.
	store domain.StoreWriter
}

// RoundTrip executes a single HTTP transaction, returning a Response for the request `req`.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	// Use the base RoundTripper, or the default if not provided.
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)

	duration := time.Since(start)

	if t.store == nil {
		return resp, err
	}

	// A round trip without a response is recorded with status 0.
	if err != nil {
		t.store.AddClientRequest(duration, 0)
		return nil, err
	}

	t.store.AddClientRequest(duration, resp.StatusCode)

	return resp, nil
}

// CloseIdleConnections forwards to the base transport when it supports it,
// so http.Client.CloseIdleConnections reaches the pooled connections.
func (t *Transport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.Base.(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

// NewAPMTransport creates a new Transport with the given store. A nil store
// disables recording.
func NewAPMTransport(base http.RoundTripper, store domain.StoreWriter) *Transport {
	return &Transport{
		Base:  base,
		store: store,
	}
}
