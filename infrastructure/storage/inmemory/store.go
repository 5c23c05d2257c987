package inmemory

import (
	"runtime"
	"sync"
	"time"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
)

const (
	// Default buffer size for error events.
	defaultEventBufferSize = 100
)

// --- Store Implementation ---

var _ domain.Store = (*Store)(nil)

// Store is a thread-safe in-memory store of the bridge's own statistics.
// It implements the domain.Store interface. Scraped metrics never pass
// through it; it only counts requests, scrapes and registry calls.
type Store struct {
	mu        sync.RWMutex
	endpoints map[string]*metrics.EndpointMetrics
	targets   map[string]*metrics.TargetMetrics
	client    metrics.ClientMetrics
	runtime   metrics.RuntimeMetrics
	errors    *ringBuffer[metrics.ErrorEvent]
}

// NewStore creates and initializes a new Store.
func NewStore() *Store {
	return NewStoreWithBufferSize(defaultEventBufferSize)
}

// NewStoreWithBufferSize creates a Store that keeps the given number of
// recent error events. Non-positive sizes select the default.
func NewStoreWithBufferSize(size int) *Store {
	if size <= 0 {
		size = defaultEventBufferSize
	}
	return &Store{
		endpoints: make(map[string]*metrics.EndpointMetrics),
		targets:   make(map[string]*metrics.TargetMetrics),
		errors:    newRingBuffer[metrics.ErrorEvent](size),
	}
}

// AddRequest records a request served by the bridge.
func (s *Store) AddRequest(path string, duration time.Duration, statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endpoint, ok := s.endpoints[path]
	if !ok {
		endpoint = &metrics.EndpointMetrics{}
		s.endpoints[path] = endpoint
	}

	endpoint.TotalRequests++
	endpoint.TotalRequestTime += uint64(duration.Nanoseconds())

	switch {
	case statusCode >= 500:
		endpoint.Status5xx++
	case statusCode >= 400:
		endpoint.Status4xx++
	default:
		endpoint.Status2xx++
	}
}

// AddClientRequest records a call to a remote registry. A zero status code
// means the round trip failed without a response.
func (s *Store) AddClientRequest(duration time.Duration, statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.client.TotalRequests++
	s.client.TotalRequestTime += uint64(duration.Nanoseconds())

	switch {
	case statusCode == 0:
		s.client.Failures++
	case statusCode >= 500:
		s.client.Status5xx++
	case statusCode >= 400:
		s.client.Status4xx++
	default:
		s.client.Status2xx++
	}
}

// AddScrape records one collection against target. A failed scrape also
// lands in the error buffer.
func (s *Store) AddScrape(target string, duration time.Duration, groups, samples int, err error) {
	if target == "" {
		target = metrics.LocalTarget
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tm, ok := s.targets[target]
	if !ok {
		tm = &metrics.TargetMetrics{}
		s.targets[target] = tm
	}
	tm.Scrapes++
	tm.TotalScrapeTime += uint64(duration.Nanoseconds())
	tm.LastScrape = now

	if err != nil {
		tm.Failures++
		s.errors.add(metrics.ErrorEvent{
			Timestamp: now,
			Target:    target,
			Error:     err.Error(),
		})
		return
	}
	tm.LastGroups = groups
	tm.LastSamples = samples
}

// AddError adds a new error event to the ring buffer.
func (s *Store) AddError(event metrics.ErrorEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors.add(event)
}

// UpdateRuntime captures current runtime metrics.
func (s *Store) UpdateRuntime() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runtime.NumGoroutine = runtime.NumGoroutine()
	s.runtime.MemoryAllocBytes = memStats.Alloc
	s.runtime.MemoryTotalAllocBytes = memStats.TotalAlloc
	s.runtime.MemoryHeapAllocBytes = memStats.HeapAlloc
	s.runtime.MemoryHeapSysBytes = memStats.HeapSys
}

// TargetSnapshot returns the scrape statistics of one target.
func (s *Store) TargetSnapshot(target string) (metrics.TargetMetricsSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tm, ok := s.targets[target]
	if !ok {
		return metrics.TargetMetricsSnapshot{}, false
	}
	return targetSnapshot(tm), true
}

// GetSnapshot returns a read-only copy of the current statistics.
func (s *Store) GetSnapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &domain.Snapshot{
		Endpoints: make(map[string]metrics.EndpointMetricsSnapshot, len(s.endpoints)),
		Targets:   make(map[string]metrics.TargetMetricsSnapshot, len(s.targets)),
		Errors:    s.errors.getAll(),
	}

	// Copy endpoint metrics
	for path, m := range s.endpoints {
		avgTimeNs := average(m.TotalRequestTime, m.TotalRequests)
		snapshot.Endpoints[path] = metrics.EndpointMetricsSnapshot{
			TotalRequests:    m.TotalRequests,
			AvgRequestTimeNs: avgTimeNs,
			AvgRequestTime:   time.Duration(avgTimeNs).String(),
			Status2xx:        m.Status2xx,
			Status4xx:        m.Status4xx,
			Status5xx:        m.Status5xx,
		}
	}

	// Copy scrape metrics
	for target, tm := range s.targets {
		snapshot.Targets[target] = targetSnapshot(tm)
	}

	// Copy client metrics
	avgClientTimeNs := average(s.client.TotalRequestTime, s.client.TotalRequests)
	snapshot.Client = metrics.ClientMetricsSnapshot{
		TotalRequests:    s.client.TotalRequests,
		AvgRequestTimeNs: avgClientTimeNs,
		AvgRequestTime:   time.Duration(avgClientTimeNs).String(),
		Status2xx:        s.client.Status2xx,
		Status4xx:        s.client.Status4xx,
		Status5xx:        s.client.Status5xx,
		Failures:         s.client.Failures,
	}

	// Copy runtime metrics
	snapshot.Runtime = s.runtime

	return snapshot
}

func targetSnapshot(tm *metrics.TargetMetrics) metrics.TargetMetricsSnapshot {
	avg := average(tm.TotalScrapeTime, tm.Scrapes)
	return metrics.TargetMetricsSnapshot{
		Scrapes:         tm.Scrapes,
		Failures:        tm.Failures,
		AvgScrapeTimeNs: avg,
		AvgScrapeTime:   time.Duration(avg).String(),
		LastGroups:      tm.LastGroups,
		LastSamples:     tm.LastSamples,
		LastScrape:      tm.LastScrape,
	}
}

func average(total, count uint64) uint64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// --- Ring Buffer for Events ---

// ringBuffer is a generic, thread-unsafe circular buffer.
// The locking must be handled by the parent (Store).
type ringBuffer[T any] struct {
	buffer []T
	size   int
	start  int
	count  int
}

// newRingBuffer creates a new ring buffer of a given size.
func newRingBuffer[T any](size int) *ringBuffer[T] {
	return &ringBuffer[T]{
		buffer: make([]T, size),
		size:   size,
	}
}

// add inserts an element into the buffer, overwriting the oldest if full.
func (rb *ringBuffer[T]) add(item T) {
	index := (rb.start + rb.count) % rb.size
	rb.buffer[index] = item
	if rb.count < rb.size {
		rb.count++
	} else {
		rb.start = (rb.start + 1) % rb.size
	}
}

// getAll returns all elements in the buffer in order.
func (rb *ringBuffer[T]) getAll() []T {
	if rb.count == 0 {
		return nil
	}
	items := make([]T, rb.count)
	for i := 0; i < rb.count; i++ {
		items[i] = rb.buffer[(rb.start+i)%rb.size]
	}
	return items
}
