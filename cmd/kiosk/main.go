// Package main runs the kiosk service: one managed browser session pointed at
// a configurable website, controlled over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/kiosk/pkg/browser"
	"github.com/entrhq/kiosk/pkg/config"
	"github.com/entrhq/kiosk/pkg/coordinator"
	"github.com/entrhq/kiosk/pkg/logging"
	"github.com/entrhq/kiosk/pkg/metrics"
	"github.com/entrhq/kiosk/pkg/server"
)

const (
	version = "0.1.0"

	// shutdownTimeout bounds the whole stop sequence
	shutdownTimeout = 30 * time.Second
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	ListenAddr  string
	StateDir    string
	Headed      bool
	Install     bool
	ShowVersion bool

	set map[string]bool
}

func main() {
	cli := parseFlags()

	if cli.ShowVersion {
		fmt.Printf("kiosk v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Shutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cli); err != nil {
		cancel()
		log.Printf("kiosk failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cli := &CLIConfig{set: map[string]bool{}}

	flag.StringVar(&cli.ConfigFile, "config", "", "Path to settings file (YAML)")
	flag.StringVar(&cli.ListenAddr, "listen", "", "Control API listen address (overrides settings)")
	flag.StringVar(&cli.StateDir, "state-dir", "", "Directory for config.json and error.log (overrides settings)")
	flag.BoolVar(&cli.Headed, "headed", false, "Show the browser window")
	flag.BoolVar(&cli.Install, "install-browsers", false, "Download browser binaries before starting")
	flag.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "kiosk - keeps one browser session on a configurable website\n\n")
		fmt.Fprintf(os.Stderr, "Usage: kiosk [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables prefixed KIOSK_ override the settings file.\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  kiosk -listen :8080\n")
		fmt.Fprintf(os.Stderr, "  kiosk -config kiosk.yaml -headed\n")
	}

	flag.Parse()
	flag.Visit(func(f *flag.Flag) {
		cli.set[f.Name] = true
	})
	return cli
}

// loadSettings layers explicitly set flags over the file and environment.
func loadSettings(cli *CLIConfig) (*config.Settings, error) {
	settings, err := config.LoadSettings(cli.ConfigFile)
	if err != nil {
		return nil, err
	}

	if cli.set["listen"] {
		settings.ListenAddr = cli.ListenAddr
	}
	if cli.set["state-dir"] {
		settings.StateDir = cli.StateDir
	}
	if cli.set["headed"] {
		settings.Headless = !cli.Headed
	}
	if cli.set["install-browsers"] {
		settings.InstallBrowsers = cli.Install
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// run wires the service together and blocks until ctx is cancelled or the
// control API fails.
func run(ctx context.Context, cli *CLIConfig) error {
	settings, err := loadSettings(cli)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	logger, err := logging.NewLogger(settings.ProcessLogDir(), "kiosk", logging.ParseLevel(settings.LogLevel))
	if err != nil {
		log.Printf("Process log unavailable, using stderr: %v", err)
	}
	defer logger.Close()
	logger.Infof("kiosk v%s starting (run %s)", version, logger.RunID())

	registry := metrics.NewRegistry()
	sessionMetrics := metrics.NewSessionMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	sink := logging.NewSink(settings.EventLogPath(), clockwork.NewRealClock())
	pump := logging.NewPump(sink, logger.With("eventlog"), logging.WithFailureHook(sessionMetrics.LogWriteFailed))

	store := config.NewTargetStore(settings.ConfigPath(), settings.DefaultWebsite, pump)
	policy, err := config.NewTargetPolicy(settings.AllowedTargets, settings.DeniedTargets)
	if err != nil {
		pump.Close()
		return err
	}

	driver := browser.NewPlaywrightDriver(browser.Options{
		Headless: settings.Headless,
		Viewport: browser.Viewport{
			Width:  settings.ViewportWidth,
			Height: settings.ViewportHeight,
		},
		Timeout:   settings.OpenTimeout,
		WaitUntil: settings.WaitUntil,
		Install:   settings.InstallBrowsers,
	}, logger.With("browser"))
	if err := driver.Start(); err != nil {
		pump.Post(fmt.Sprintf("Browser driver failed to start: %v", err))
		pump.Close()
		return fmt.Errorf("failed to start browser driver: %w", err)
	}

	coord := coordinator.New(store, driver, pump,
		coordinator.WithLogger(logger.With("coordinator")),
		coordinator.WithMetrics(sessionMetrics),
		coordinator.WithTargetPolicy(policy),
		coordinator.WithOpenTimeout(settings.OpenTimeout),
	)
	if _, err := coord.Initialize(ctx); err != nil {
		// Still serve: an update request can bring the session back
		logger.Warnf("Starting without a live session: %v", err)
	}

	srv := server.New(server.Config{
		Address:     settings.ListenAddr,
		UpdateRate:  settings.UpdateRate,
		UpdateBurst: settings.UpdateBurst,
		Gatherer:    registry,
		HTTPMetrics: httpMetrics,
		LogFileName: settings.EventLogFile,
		Logger:      logger.With("http"),
	}, coord, sink)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		return shutdown(srv, coord, pump, driver, logger)
	})

	return g.Wait()
}

// shutdowner is a component stopped with a deadline (the HTTP server and
// the coordinator).
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// eventSink is the event log pump as seen by shutdown.
type eventSink interface {
	Close()
	Health() logging.LogHealth
}

type stopper interface {
	Stop() error
}

// shutdown stops the service in dependency order: no new requests, then the
// session, then the event log, then the browser driver. Every step runs even
// when an earlier one fails.
func shutdown(srv, coord shutdowner, pump eventSink, driver stopper, logger *logging.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := srv.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := coord.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("session shutdown: %w", err))
	}
	pump.Close()
	if err := driver.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("driver stop: %w", err))
	}

	if health := pump.Health(); health.Failures > 0 {
		logger.Warnf("Event log had %d write failures, last: %s", health.Failures, health.LastError)
	}
	logger.Infof("Shutdown complete")
	return errors.Join(errs...)
}
