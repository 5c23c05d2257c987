package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
)

// ErrConnection marks failures to reach or resolve a registry target.
var ErrConnection = errors.New("registry connection failed")

// Registry is the narrow capability every managed-object source implements.
// Implementations must be safe for use by one request at a time; they are
// never shared between concurrent requests unless they say so.
type Registry interface {
	ListObjects(ctx context.Context) ([]mbean.ObjectName, error)
	ListAttributes(ctx context.Context, object mbean.ObjectName) ([]mbean.AttributeDescriptor, error)
	ReadAttribute(ctx context.Context, object mbean.ObjectName, attribute string) (mbean.Value, error)
}

// Connection is a Registry scoped to a single request. Close releases
// whatever the connection acquired and must be called on every exit path.
type Connection interface {
	Registry
	Close() error
}

// Connector opens connections to registry targets. An empty target selects
// the bridge's own local registry.
type Connector interface {
	Connect(ctx context.Context, target string) (Connection, error)
}

// Snapshot is a point-in-time, read-only copy of the bridge's own
// statistics, served on the debug endpoint.
type Snapshot struct {
	Endpoints map[string]metrics.EndpointMetricsSnapshot `json:"endpoints"`
	Targets   map[string]metrics.TargetMetricsSnapshot   `json:"targets"`
	Client    metrics.ClientMetricsSnapshot              `json:"registry_client"`
	Runtime   metrics.RuntimeMetrics                     `json:"runtime"`
	Errors    []metrics.ErrorEvent                       `json:"errors"`
}

// StoreReader defines the contract for reading statistics from a store.
type StoreReader interface {
	GetSnapshot() *Snapshot
}

// StoreWriter defines the contract for writing statistics to a store.
type StoreWriter interface {
	AddRequest(path string, duration time.Duration, statusCode int)
	AddClientRequest(duration time.Duration, statusCode int)
	AddScrape(target string, duration time.Duration, groups, samples int, err error)
	AddError(event metrics.ErrorEvent)
	UpdateRuntime()
}

// Store is the combined interface for a statistics store.
type Store interface {
	StoreReader
	StoreWriter
}

// Reporter defines a component that can report over HTTP.
type Reporter interface {
	Handler() http.Handler
}
