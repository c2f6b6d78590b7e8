// iotdash is the REST backend of the IoT dashboard.
//
// It keeps the device and room catalogue in SQLite, mirrors device status
// and value messages from the MQTT broker into an in-memory snapshot, and
// serves both over the /api REST surface consumed by iotpanel. Commands
// posted to the control endpoint are forwarded to the broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/kichnu/iotdash/migrations"

	"github.com/kichnu/iotdash/internal/infrastructure/config"
	"github.com/kichnu/iotdash/internal/infrastructure/logging"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// healthInterval is how often the running backend re-checks its connections.
const healthInterval = time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the backend and blocks until ctx is cancelled.
func run(ctx context.Context) error {
	boot := logging.Default()
	boot.Info("starting iotdash", "version", version, "commit", commit, "build_date", date)

	path := getConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", path, "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	b := &backend{cfg: cfg, log: log}
	defer b.shutdown()

	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"opening database", b.openStore},
		{"loading catalogue", b.loadCatalogue},
		{"connecting to MQTT", b.connectBroker},
		{"connecting to InfluxDB", b.connectInflux},
		{"starting API server", b.serve},
	} {
		if err := step.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	probes := b.probes()
	if err := probes.run(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		monitorHealth(egCtx, healthInterval, log, probes.run)
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath honours IOTDASH_CONFIG before the default path.
func getConfigPath() string {
	if path := os.Getenv("IOTDASH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// monitorHealth runs check every interval until ctx is cancelled, logging
// transitions between healthy and unhealthy.
func monitorHealth(ctx context.Context, interval time.Duration, log *logging.Logger, check func(context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		checkCtx, cancel := context.WithTimeout(ctx, interval/2)
		err := check(checkCtx)
		cancel()

		switch {
		case err != nil && healthy:
			log.Warn("health check failed", "error", err)
		case err == nil && !healthy:
			log.Info("health restored")
		}
		healthy = err == nil
	}
}
