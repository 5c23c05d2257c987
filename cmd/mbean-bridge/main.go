package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	bridge "github.com/fllarpy/mbean-bridge"
	"github.com/fllarpy/mbean-bridge/config"
	"github.com/fllarpy/mbean-bridge/internal/logging"
)

// shutdownTimeout bounds draining in-flight requests on SIGINT or SIGTERM.
const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", ".", "configuration file, or a directory holding config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	_, restore, err := logging.Setup(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer restore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Printf("Bridge stopped: %v", err)
		restore()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	b, err := bridge.NewBridge(ctx, cfg, nil)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Serving metrics on %s", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = srv.Shutdown(shutdownCtx)
		if shutdownErr := b.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Printf("Error shutting down bridge: %v", shutdownErr)
		}
		return err
	}

	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	if shutdownErr := b.Shutdown(context.Background()); shutdownErr != nil {
		log.Printf("Error shutting down bridge: %v", shutdownErr)
	}
	return err
}
