package http_reporter

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/fllarpy/mbean-bridge/domain"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
	"github.com/fllarpy/mbean-bridge/domain/metrics"
)

// Collector builds metric groups from one registry.
type Collector interface {
	Collect(ctx context.Context, target string, reg domain.Registry) ([]mbean.MetricGroup, error)
}

// Config holds the dependencies of the metrics handler.
type Config struct {
	Collector Collector
	// Local is scraped when a request carries no target parameter.
	Local domain.Registry
	// Remote dials target=host:port requests. Nil disables remote targets.
	Remote domain.Connector
	// Timeout bounds resolving and scraping a target. Zero means no bound
	// beyond the request's own context.
	Timeout time.Duration
	// Store, when set, records targets that could not be resolved.
	Store domain.StoreWriter
}

// NewHandler returns the metrics handler. Every request is independent: the
// target is resolved, scraped and released within the request.
func NewHandler(cfg Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ctx := r.Context()
		if cfg.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
		}

		target := r.URL.Query().Get("target")
		label := target
		if label == "" {
			label = metrics.LocalTarget
		}

		reg, release, err := resolve(ctx, cfg, target)
		if err != nil {
			log.Printf("Reporter: cannot resolve target %s: %v", label, err)
			if cfg.Store != nil {
				cfg.Store.AddScrape(label, 0, 0, 0, err)
			}
			writeErrorDocument(w, label, err)
			return
		}
		defer release()

		groups, err := cfg.Collector.Collect(ctx, label, reg)
		if err != nil {
			log.Printf("Reporter: scrape of %s failed: %v", label, err)
			writeErrorDocument(w, label, err)
			return
		}

		if wantsText(r) {
			writeText(w, groups)
			return
		}
		writeDocument(w, groups)
	})
}

// resolve returns the registry for target and a function releasing it.
func resolve(ctx context.Context, cfg Config, target string) (domain.Registry, func(), error) {
	if target == "" {
		return cfg.Local, func() {}, nil
	}
	if cfg.Remote == nil {
		return nil, nil, errRemoteDisabled
	}
	conn, err := cfg.Remote.Connect(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	return conn, func() {
		if err := conn.Close(); err != nil {
			log.Printf("Reporter: closing connection to %s: %v", target, err)
		}
	}, nil
}

func wantsText(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "text":
		return true
	case "json":
		return false
	}
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/plain") && !strings.Contains(accept, "application/json")
}

// NewStatsHandler serves a snapshot of the bridge's own statistics. Runtime
// figures are refreshed on every request.
func NewStatsHandler(store domain.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		store.UpdateRuntime()
		snapshot := store.GetSnapshot()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			// If encoding fails, it's a server-side problem.
			http.Error(w, "Failed to encode statistics to JSON", http.StatusInternalServerError)
		}
	})
}
