package mbean_bridge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/fllarpy/mbean-bridge/config"
	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
	"github.com/fllarpy/mbean-bridge/exporter"
	"github.com/fllarpy/mbean-bridge/infrastructure/storage/inmemory"
	httpinst "github.com/fllarpy/mbean-bridge/instrumentation/http"
	sqlinst "github.com/fllarpy/mbean-bridge/instrumentation/sql"
	"github.com/fllarpy/mbean-bridge/internal/adapters/mbeanserver"
	"github.com/fllarpy/mbean-bridge/internal/adapters/remoteregistry"
	"github.com/fllarpy/mbean-bridge/internal/application/collector"
	"github.com/fllarpy/mbean-bridge/internal/filter"
	"github.com/fllarpy/mbean-bridge/internal/flatten"
	"github.com/fllarpy/mbean-bridge/internal/naming"
	"github.com/fllarpy/mbean-bridge/internal/ports/http_middleware"
	"github.com/fllarpy/mbean-bridge/internal/ports/http_reporter"
	"github.com/fllarpy/mbean-bridge/internal/ports/registry_http"
	"github.com/fllarpy/mbean-bridge/nplusone"
	pkgconfig "github.com/fllarpy/mbean-bridge/pkg/config"
	"github.com/fllarpy/mbean-bridge/profiling"
)

// Version is reported as the service version of the bridge's own spans.
const Version = "1.0.0"

// Bridge is a configured bridge: the local registry, the metrics handler
// and the self-observability pipeline behind it.
type Bridge struct {
	tp      *sdktrace.TracerProvider
	store   *inmemory.Store
	local   *mbeanserver.Server
	handler http.Handler
	dbs     []*sql.DB
}

var _ domain.Reporter = (*Bridge)(nil)

// Handler returns the root HTTP handler.
func (b *Bridge) Handler() http.Handler {
	return b.handler
}

// Store returns the bridge's self statistics.
func (b *Bridge) Store() *inmemory.Store {
	return b.store
}

// Registry returns the local registry. Beans registered on it after
// NewBridge are visible to the next request.
func (b *Bridge) Registry() *mbeanserver.Server {
	return b.local
}

// Shutdown flushes pending spans and closes the data sources.
func (b *Bridge) Shutdown(ctx context.Context) error {
	var errs []error
	if b.tp != nil {
		if err := b.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down tracer provider: %w", err))
		}
	}
	for _, db := range b.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewBridge builds a bridge from cfg. selfCfg holds the self-monitoring
// settings; nil reads them from the environment. Invalid rules or bean
// sources fail here, before anything is served.
func NewBridge(ctx context.Context, cfg config.Config, selfCfg *pkgconfig.Config) (b *Bridge, err error) {
	if selfCfg == nil {
		selfCfg = pkgconfig.Load()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	engine, err := filter.Compile(cfg.Rules, cfg.FilterOptions())
	if err != nil {
		return nil, err
	}
	mode, err := naming.ParseMode(cfg.Naming)
	if err != nil {
		return nil, err
	}

	b = &Bridge{
		store: inmemory.NewStoreWithBufferSize(selfCfg.ErrorBufferSize),
		local: mbeanserver.New(),
	}
	defer func() {
		if err != nil {
			_ = b.Shutdown(ctx)
		}
	}()

	var tp trace.TracerProvider = noop.NewTracerProvider()
	if cfg.Tracing {
		if b.tp, err = newTracerProvider(cfg.ServiceName, b.store, selfCfg); err != nil {
			return nil, err
		}
		otel.SetTracerProvider(b.tp)
		tp = b.tp
	}

	if err = b.registerBeans(cfg.Beans); err != nil {
		return nil, err
	}

	coll := collector.New(
		flatten.New(naming.NewNamer(mode), cfg.MaxDepth),
		engine,
		collector.WithTracerProvider(tp),
	)

	reporterCfg := http_reporter.Config{
		Collector: coll,
		Local:     b.local,
		Timeout:   cfg.TargetTimeout,
		Store:     b.store,
	}
	if cfg.RemoteTargets {
		dial := 5 * time.Second
		if cfg.TargetTimeout > 0 && cfg.TargetTimeout < dial {
			dial = cfg.TargetTimeout
		}
		reporterCfg.Remote = remoteregistry.NewConnector(
			remoteregistry.WithStore(b.store),
			remoteregistry.WithDialTimeout(dial),
		)
	}

	metricsHandler := http_reporter.NewHandler(reporterCfg)
	mux := http.NewServeMux()
	mux.Handle("/{$}", metricsHandler)
	mux.Handle("/metrics", metricsHandler)
	if cfg.ServeRegistry {
		registryHandler := registry_http.NewHandler(b.local)
		mux.Handle(mbean.ObjectsPath, registryHandler)
		mux.Handle(mbean.AttributePath, registryHandler)
	}
	if selfCfg.Enabled && selfCfg.DebugEndpoint != "" {
		mux.Handle("GET "+selfCfg.DebugEndpoint, http_reporter.NewStatsHandler(b.store))
	}

	var handler http.Handler = http_middleware.StatsMiddleware(b.store, selfCfg)(mux)
	if cfg.Tracing {
		handler = httpinst.NewMiddleware(handler, cfg.ServiceName)
	}
	b.handler = handler

	log.Printf("Bridge initialized: %d beans, naming %s, %d filter rules.",
		b.local.Len(), mode, len(engine.Rules()))
	return b, nil
}

func (b *Bridge) registerBeans(beans config.Beans) error {
	if beans.Runtime {
		if err := mbeanserver.RegisterPlatform(b.local, time.Now()); err != nil {
			return fmt.Errorf("platform beans: %w", err)
		}
	}
	if beans.Host {
		if err := mbeanserver.RegisterHost(b.local, beans.DiskPaths); err != nil {
			return fmt.Errorf("host beans: %w", err)
		}
	}
	if beans.Fixture != "" {
		if err := mbeanserver.LoadFixtureFile(b.local, beans.Fixture); err != nil {
			return err
		}
	}
	for _, ds := range beans.DataSources {
		db, err := sqlinst.Open(ds.Driver, ds.DSN)
		if err != nil {
			return fmt.Errorf("data source %s: %w", ds.Name, err)
		}
		b.dbs = append(b.dbs, db)
		if err := mbeanserver.RegisterDataSource(b.local, ds.Name, db); err != nil {
			return fmt.Errorf("data source %s: %w", ds.Name, err)
		}
	}
	return nil
}

func newTracerProvider(serviceName string, store *inmemory.Store, selfCfg *pkgconfig.Config) (*sdktrace.TracerProvider, error) {
	profiler := profiling.NewProfiler(profiling.Config{
		Enabled:          selfCfg.ProfilingEnabled,
		LatencyThreshold: selfCfg.ProfilingLatencyThreshold,
		Duration:         selfCfg.ProfilingDuration,
		Cooldown:         selfCfg.ProfilingCooldown,
		Dir:              selfCfg.ProfilingDir,
	})

	detector := nplusone.NewDetector(nplusone.Config{
		Enabled:   selfCfg.NPlusOneEnabled,
		Threshold: selfCfg.NPlusOneThreshold,
	}, store)

	customExporter, err := exporter.NewCustomExporter(store, profiler, detector)
	if err != nil {
		return nil, fmt.Errorf("failed to create custom exporter: %w", err)
	}

	res, err := newResource(serviceName, Version)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(customExporter),
		sdktrace.WithResource(res),
	), nil
}

func newResource(serviceName, serviceVersion string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
}
