package collector

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
	"github.com/fllarpy/mbean-bridge/internal/filter"
	"github.com/fllarpy/mbean-bridge/internal/flatten"
)

// Span name and attributes of one collection. The span exporter turns them
// into per-target scrape statistics.
const (
	SpanName = "collect"

	TargetKey  = attribute.Key("bridge.target")
	GroupsKey  = attribute.Key("bridge.groups")
	SamplesKey = attribute.Key("bridge.samples")
	SkippedKey = attribute.Key("bridge.skipped")
)

const instrumentationName = "github.com/fllarpy/mbean-bridge/internal/application/collector"

// ConnectionError reports that the registry could not be enumerated. The
// request that triggered the collection is answered with an error document.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot enumerate %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// Is makes every ConnectionError match domain.ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == domain.ErrConnection }

// AttributeReadError reports a single attribute that could not be read. It is
// logged and the attribute is skipped.
type AttributeReadError struct {
	Object    mbean.ObjectName
	Attribute string
	Err       error
}

func (e *AttributeReadError) Error() string {
	return fmt.Sprintf("read %s.%s: %v", e.Object, e.Attribute, e.Err)
}

func (e *AttributeReadError) Unwrap() error { return e.Err }

// Collector builds metric groups from a registry. It holds no per-request
// state and is safe for concurrent use.
type Collector struct {
	flattener *flatten.Flattener
	filter    *filter.Engine
	tracer    trace.Tracer
}

// Option configures a Collector.
type Option func(*Collector)

// WithTracerProvider sets the provider collection spans are started on. The
// global provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Collector) { c.tracer = tp.Tracer(instrumentationName) }
}

// New returns a Collector. A nil engine includes everything.
func New(flattener *flatten.Flattener, engine *filter.Engine, opts ...Option) *Collector {
	c := &Collector{
		flattener: flattener,
		filter:    engine,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(instrumentationName)
	}
	if c.flattener == nil {
		c.flattener = flatten.New(nil, 0)
	}
	return c
}

// Collect walks every object and attribute of reg and returns the metric
// groups sorted by name. target only labels logs and the collection span.
//
// A failure to list objects, a lost connection or an expired context aborts
// the collection with a ConnectionError. Any other read failure skips the
// attribute.
func (c *Collector) Collect(ctx context.Context, target string, reg domain.Registry) (groups []mbean.MetricGroup, err error) {
	ctx, span := c.tracer.Start(ctx, SpanName, trace.WithAttributes(TargetKey.String(target)))
	b := newBuilder()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(
			GroupsKey.Int(len(groups)),
			SamplesKey.Int(b.samples),
			SkippedKey.Int(b.skipped),
		)
		span.End()
	}()

	objects, err := reg.ListObjects(ctx)
	if err != nil {
		return nil, &ConnectionError{Target: target, Err: err}
	}

	for _, object := range objects {
		if c.filter.ObjectExcluded(object) {
			continue
		}

		attrs, err := reg.ListAttributes(ctx, object)
		if err != nil {
			if fatal(ctx, err) {
				return nil, &ConnectionError{Target: target, Err: err}
			}
			// The object may have gone away between listing and describing.
			log.Printf("Collector: skipping %s on %s: %v", object, target, err)
			b.skipped++
			continue
		}

		for _, attr := range attrs {
			if !c.filter.IsIncluded(object, attr.Name) {
				continue
			}
			value, err := reg.ReadAttribute(ctx, object, attr.Name)
			if err != nil {
				if fatal(ctx, err) {
					return nil, &ConnectionError{Target: target, Err: err}
				}
				rerr := &AttributeReadError{Object: object, Attribute: attr.Name, Err: err}
				log.Printf("Collector: skipping attribute on %s: %v", target, rerr)
				b.skipped++
				continue
			}
			b.add(attr, c.flattener.Flatten(object, attr, value))
		}
	}

	return b.groups(), nil
}

func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, domain.ErrConnection)
}

// builder groups triples by name in first-seen order.
type builder struct {
	index   map[mbean.MetricName]int
	out     []mbean.MetricGroup
	samples int
	skipped int
}

func newBuilder() *builder {
	return &builder{index: make(map[mbean.MetricName]int)}
}

func (b *builder) add(attr mbean.AttributeDescriptor, triples []flatten.Triple) {
	for _, t := range triples {
		i, ok := b.index[t.Name]
		if !ok {
			doc := attr.Description
			if doc == "" {
				doc = mbean.DefaultDocstring
			}
			i = len(b.out)
			b.index[t.Name] = i
			b.out = append(b.out, mbean.MetricGroup{
				Name:      t.Name,
				Docstring: doc,
				Type:      mbean.GaugeType,
			})
		}
		b.out[i].Samples = append(b.out[i].Samples, mbean.Sample{Value: t.Value, Labels: t.Labels})
		b.samples++
	}
}

func (b *builder) groups() []mbean.MetricGroup {
	slices.SortStableFunc(b.out, func(x, y mbean.MetricGroup) int {
		return cmp.Compare(x.Name, y.Name)
	})
	if b.out == nil {
		return []mbean.MetricGroup{}
	}
	return b.out
}
