// Command example runs a sample registry: the beans described in
// sample.yaml served over the registry protocol, so a bridge can scrape it
// with ?target=localhost:10100. With --bridge it also serves the bridge
// itself, scraping the same beans locally.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"log"
	"net/http"
	"time"

	"github.com/spf13/pflag"

	bridge "github.com/fllarpy/mbean-bridge"
	"github.com/fllarpy/mbean-bridge/config"
	"github.com/fllarpy/mbean-bridge/domain/mbean"
	httpinstrumentation "github.com/fllarpy/mbean-bridge/instrumentation/http"
	"github.com/fllarpy/mbean-bridge/internal/adapters/mbeanserver"
	"github.com/fllarpy/mbean-bridge/internal/ports/registry_http"
)

//go:embed sample.yaml
var sample []byte

func main() {
	listen := pflag.StringP("listen", "l", ":10100", "address of the sample registry")
	withBridge := pflag.Bool("bridge", false, "also serve the bridge on --bridge-listen")
	bridgeListen := pflag.String("bridge-listen", ":5556", "address of the bridge")
	pflag.Parse()

	registry := mbeanserver.New()
	if err := mbeanserver.LoadFixture(registry, bytes.NewReader(sample)); err != nil {
		log.Fatalf("failed to load sample beans: %v", err)
	}
	if err := mbeanserver.RegisterPlatform(registry, time.Now()); err != nil {
		log.Fatalf("failed to register platform beans: %v", err)
	}

	if *withBridge {
		go serveBridge(*bridgeListen)
	}

	mux := http.NewServeMux()
	handler := registry_http.NewHandler(registry)
	mux.Handle(mbean.ObjectsPath, handler)
	mux.Handle(mbean.AttributePath, handler)

	log.Printf("Starting sample registry with %d beans on %s", registry.Len(), *listen)
	log.Printf("Objects: http://localhost%s%s", *listen, mbean.ObjectsPath)
	if err := http.ListenAndServe(*listen, httpinstrumentation.NewMiddleware(mux, "sample-registry")); err != nil {
		log.Fatalf("could not start server: %v", err)
	}
}

func serveBridge(listen string) {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load bridge configuration: %v", err)
	}
	cfg.Listen = listen
	cfg.Naming = "type-labels"
	cfg.Blacklist = append(cfg.Blacklist, "java.lang:type=Compilation")

	ctx := context.Background()
	b, err := bridge.NewBridge(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("failed to initialize bridge: %v", err)
	}
	defer b.Shutdown(ctx)

	if err := mbeanserver.LoadFixture(b.Registry(), bytes.NewReader(sample)); err != nil {
		log.Fatalf("failed to load sample beans into the bridge: %v", err)
	}

	log.Printf("Bridge metrics: http://localhost%s/", listen)
	log.Printf("Bridge metrics of the sample registry: http://localhost%s/?target=localhost:10100", listen)
	if err := http.ListenAndServe(listen, b.Handler()); err != nil {
		log.Fatalf("could not start bridge: %v", err)
	}
}
