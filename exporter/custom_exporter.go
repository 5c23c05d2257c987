package exporter

import (
	"context"
	"errors"
	"log"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
	"github.com/fllarpy/mbean-bridge/internal/application/collector"
)

// Profiler is a very small interface used by the exporter. It allows test
// suites to inject lightweight mocks without depending on the concrete
// implementation from the profiling package.
type Profiler interface {
	// ProfileTargetIfSlow profiles the process when a scrape of target took
	// longer than a threshold. The real implementation is profiling.Profiler.
	ProfileTargetIfSlow(target string, duration time.Duration)
}

// Detector inspects every exported span. The real implementation is
// nplusone.Detector.
type Detector interface {
	ProcessSpan(span sdktrace.ReadOnlySpan)
}

// CustomExporter turns finished spans into bridge statistics instead of
// shipping them anywhere: collection spans become per-target scrape
// statistics and failed client spans become error events.
type CustomExporter struct {
	store    domain.StoreWriter
	profiler Profiler
	detector Detector
}

var _ sdktrace.SpanExporter = (*CustomExporter)(nil)

func NewCustomExporter(store domain.StoreWriter, profiler Profiler, detector Detector) (*CustomExporter, error) {
	if store == nil {
		return nil, errors.New("exporter: store is required")
	}
	log.Println("Initializing custom exporter.")
	return &CustomExporter{
		store:    store,
		profiler: profiler,
		detector: detector,
	}, nil
}

func (e *CustomExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		switch {
		case span.Name() == collector.SpanName:
			e.processCollectSpan(span)
		case span.SpanKind() == trace.SpanKindClient:
			e.processClientSpan(span)
		default:
			continue
		}
		if e.detector != nil {
			e.detector.ProcessSpan(span)
		}
	}
	return nil
}

func (e *CustomExporter) Shutdown(ctx context.Context) error {
	log.Println("Custom exporter shut down.")
	return nil
}

func (e *CustomExporter) processCollectSpan(span sdktrace.ReadOnlySpan) {
	duration := span.EndTime().Sub(span.StartTime())

	var (
		target          string
		groups, samples int
		scrapeErr       error
	)
	for _, attr := range span.Attributes() {
		switch attr.Key {
		case collector.TargetKey:
			target = attr.Value.AsString()
		case collector.GroupsKey:
			groups = int(attr.Value.AsInt64())
		case collector.SamplesKey:
			samples = int(attr.Value.AsInt64())
		}
	}
	if span.Status().Code == codes.Error {
		scrapeErr = errors.New(span.Status().Description)
	}
	if target == "" {
		target = metrics.LocalTarget
	}

	e.store.AddScrape(target, duration, groups, samples, scrapeErr)

	if e.profiler != nil {
		e.profiler.ProfileTargetIfSlow(target, duration)
	}
}

func (e *CustomExporter) processClientSpan(span sdktrace.ReadOnlySpan) {
	if span.Status().Code != codes.Error {
		return
	}

	event := metrics.ErrorEvent{
		Timestamp: span.EndTime(),
		Path:      span.Name(),
		Error:     span.Status().Description,
	}
	for _, attr := range span.Attributes() {
		switch attr.Key {
		case semconv.DBSystemKey:
			event.Method = "db"
		case semconv.ServerAddressKey:
			event.Target = attr.Value.AsString()
		case semconv.HTTPRequestMethodKey:
			event.Method = attr.Value.AsString()
		}
	}

	log.Printf("CustomExporter: Client span had an error: %s: %s", span.Name(), event.Error)
	e.store.AddError(event)
}
