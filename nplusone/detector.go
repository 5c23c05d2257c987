// Package nplusone flags scrapes that cost one registry round trip per
// attribute. The remote protocol reads attributes one call at a time, so a
// wide target turns a single scrape into hundreds of calls; such scrapes are
// recorded as error events so the filter rules can be tightened.
package nplusone

import (
	"fmt"
	"log"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
	"github.com/fllarpy/mbean-bridge/internal/application/collector"
)

// staleAfter drops calls whose trace never produced a collection span,
// such as failed handshakes.
const staleAfter = 2 * time.Minute

type Config struct {
	Enabled bool
	// Threshold is the number of registry calls within one scrape that
	// gets reported.
	Threshold int
}

type traceData struct {
	calls    int
	address  string
	lastSeen time.Time
}

type Detector struct {
	config     Config
	store      domain.StoreWriter
	traces     map[trace.TraceID]*traceData
	tracesLock sync.Mutex
	now        func() time.Time
}

func NewDetector(config Config, store domain.StoreWriter) *Detector {
	if !config.Enabled || store == nil || config.Threshold <= 0 {
		return nil
	}
	log.Println("Initializing registry round trip detector.")
	return &Detector{
		config: config,
		store:  store,
		traces: make(map[trace.TraceID]*traceData),
		now:    time.Now,
	}
}

// ProcessSpan counts registry calls per trace and settles the count when the
// trace's collection span arrives. Children end before their parent, so the
// calls of a scrape are always seen first. It is safe on a nil Detector.
func (d *Detector) ProcessSpan(span sdktrace.ReadOnlySpan) {
	if d == nil {
		return
	}
	traceID := span.SpanContext().TraceID()

	d.tracesLock.Lock()
	defer d.tracesLock.Unlock()

	switch {
	case span.Name() == collector.SpanName:
		d.settle(traceID, span)
	case span.SpanKind() == trace.SpanKindClient:
		var isRegistryCall bool
		var address string
		for _, attr := range span.Attributes() {
			switch attr.Key {
			case semconv.DBSystemKey:
				return
			case semconv.HTTPRequestMethodKey:
				isRegistryCall = true
			case semconv.ServerAddressKey:
				address = attr.Value.AsString()
			}
		}
		if !isRegistryCall {
			return
		}
		td, ok := d.traces[traceID]
		if !ok {
			td = &traceData{}
			d.traces[traceID] = td
		}
		td.calls++
		td.lastSeen = d.now()
		if address != "" {
			td.address = address
		}
	}
}

func (d *Detector) settle(traceID trace.TraceID, span sdktrace.ReadOnlySpan) {
	defer d.cleanupOldTraces()

	td, ok := d.traces[traceID]
	if !ok {
		return
	}
	delete(d.traces, traceID)
	if td.calls < d.config.Threshold {
		return
	}

	target := td.address
	for _, attr := range span.Attributes() {
		if attr.Key == collector.TargetKey {
			target = attr.Value.AsString()
		}
	}
	log.Printf("Round trip detector: scrape of %s issued %d registry calls", target, td.calls)
	d.store.AddError(metrics.ErrorEvent{
		Timestamp: span.EndTime(),
		Path:      collector.SpanName,
		Target:    target,
		Error:     fmt.Sprintf("scrape issued %d registry calls, threshold is %d", td.calls, d.config.Threshold),
	})
}

func (d *Detector) cleanupOldTraces() {
	now := d.now()
	cleaned := 0
	for traceID, data := range d.traces {
		if now.Sub(data.lastSeen) > staleAfter {
			delete(d.traces, traceID)
			cleaned++
		}
	}
	if cleaned > 0 {
		log.Printf("Round trip detector: Cleaned up %d stale traces.", cleaned)
	}
}

// Pending reports how many traces have calls awaiting their collection span.
func (d *Detector) Pending() int {
	if d == nil {
		return 0
	}
	d.tracesLock.Lock()
	defer d.tracesLock.Unlock()
	return len(d.traces)
}
