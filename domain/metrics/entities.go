package metrics

import (
	"net/http"
	"time"
)

// --- Data Structures for Metrics ---

// EndpointMetrics holds aggregated metrics for one HTTP path of the bridge.
type EndpointMetrics struct {
	TotalRequests    uint64
	TotalRequestTime uint64 // Stored in nanoseconds
	Status2xx        uint64
	Status4xx        uint64
	Status5xx        uint64
}

// TargetMetrics holds aggregated scrape metrics for one registry target.
// The local registry is recorded under LocalTarget.
type TargetMetrics struct {
	Scrapes         uint64
	Failures        uint64
	TotalScrapeTime uint64 // Stored in nanoseconds
	LastGroups      int
	LastSamples     int
	LastScrape      time.Time
}

// LocalTarget is the key used for scrapes of the in-process registry.
const LocalTarget = "local"

// ClientMetrics holds aggregated metrics for calls to remote registries.
// Failures counts round trips that produced no response at all.
type ClientMetrics struct {
	TotalRequests    uint64
	TotalRequestTime uint64 // Stored in nanoseconds
	Status2xx        uint64
	Status4xx        uint64
	Status5xx        uint64
	Failures         uint64
}

// RuntimeMetrics holds metrics about the Go runtime.
type RuntimeMetrics struct {
	NumGoroutine          int    `json:"num_goroutine"`
	MemoryAllocBytes      uint64 `json:"memory_alloc_bytes"`
	MemoryTotalAllocBytes uint64 `json:"memory_total_alloc_bytes"`
	MemoryHeapAllocBytes  uint64 `json:"memory_heap_alloc_bytes"`
	MemoryHeapSysBytes    uint64 `json:"memory_heap_sys_bytes"`
}

// ErrorEvent represents a failed scrape or a 5xx response.
type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Method    string    `json:"method,omitempty"`
	Path      string    `json:"path,omitempty"`
	Target    string    `json:"target,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// NewErrorEvent creates a new ErrorEvent from an HTTP request.
func NewErrorEvent(r *http.Request) ErrorEvent {
	return ErrorEvent{
		Timestamp: time.Now(),
		Method:    r.Method,
		Path:      r.URL.Path,
		Target:    r.URL.Query().Get("target"),
	}
}

// --- Snapshot Structures (for reporting) ---

// EndpointMetricsSnapshot is a read-only copy of an endpoint's metrics.
type EndpointMetricsSnapshot struct {
	TotalRequests    uint64 `json:"total_requests"`
	AvgRequestTimeNs uint64 `json:"avg_request_time_ns"`
	AvgRequestTime   string `json:"avg_request_time"`
	Status2xx        uint64 `json:"status_2xx"`
	Status4xx        uint64 `json:"status_4xx"`
	Status5xx        uint64 `json:"status_5xx"`
}

// TargetMetricsSnapshot is a read-only copy of a target's scrape metrics.
type TargetMetricsSnapshot struct {
	Scrapes         uint64    `json:"scrapes"`
	Failures        uint64    `json:"failures"`
	AvgScrapeTimeNs uint64    `json:"avg_scrape_time_ns"`
	AvgScrapeTime   string    `json:"avg_scrape_time"`
	LastGroups      int       `json:"last_groups"`
	LastSamples     int       `json:"last_samples"`
	LastScrape      time.Time `json:"last_scrape"`
}

// ClientMetricsSnapshot is a read-only copy of client metrics.
type ClientMetricsSnapshot struct {
	TotalRequests    uint64 `json:"total_requests"`
	AvgRequestTimeNs uint64 `json:"avg_request_time_ns"`
	AvgRequestTime   string `json:"avg_request_time"`
	Status2xx        uint64 `json:"status_2xx"`
	Status4xx        uint64 `json:"status_4xx"`
	Status5xx        uint64 `json:"status_5xx"`
	Failures         uint64 `json:"failures"`
}
