package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart-parking/internal/config"
	"smart-parking/internal/logging"
	"smart-parking/internal/parking"
	"smart-parking/internal/server"
)

const (
	serverShutdownTimeout    = 10 * time.Second
	telemetryShutdownTimeout = 5 * time.Second
)

func main() {
	cfg := config.Load()

	mode := flag.String("mode", cfg.Mode, "Mode to run: cli, server, or both")
	port := flag.String("port", cfg.Port, "Port for HTTP server")
	flag.Parse()
	cfg.Mode, cfg.Port = *mode, *port

	logging.Init(cfg.IsDevelopment())
	log := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	telemetryProvider, err := newTelemetry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer shutdownTelemetry(telemetryProvider)

	switch cfg.Mode {
	case "cli":
		err = runCLI(ctx, cfg, telemetryProvider)
	case "server":
		err = runServer(ctx, cfg, telemetryProvider)
	case "both":
		err = runBoth(ctx, cfg, telemetryProvider)
	default:
		log.Error().Str("mode", cfg.Mode).Msg("invalid mode, must be cli, server, or both")
		err = errors.New("invalid mode")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("exiting with error")
		shutdownTelemetry(telemetryProvider)
		os.Exit(1)
	}
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*parking.TelemetryProvider, error) {
	if cfg.OTelDisabled {
		logging.Info(ctx).Msg("OpenTelemetry export disabled")
		return parking.NewLocalTelemetryProvider(nil, nil), nil
	}
	return parking.NewTelemetryProvider(ctx, parking.TelemetryConfig{
		ServiceName:  cfg.OTelServiceName,
		OTLPEndpoint: cfg.OTelEndpoint,
	})
}

func runCLI(ctx context.Context, cfg *config.Config, telemetryProvider *parking.TelemetryProvider) error {
	shell := parking.NewShell(os.Stdin, os.Stdout, telemetryProvider)
	if cfg.LotCapacity > 0 {
		lot, err := parking.NewInstrumentedParkingLot(cfg.LotCapacity, telemetryProvider)
		if err != nil {
			return err
		}
		defer lot.Close()
		shell.UseLot(lot)
	}

	done := make(chan error, 1)
	go func() {
		done <- shell.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logging.Info(ctx).Msg("shutting down")
		return nil
	}
}

type app struct {
	handler   *server.Handler
	server    *server.Server
	scheduler *server.Scheduler
}

func newApp(cfg *config.Config, telemetryProvider *parking.TelemetryProvider) (*app, error) {
	handler := server.NewHandler(cfg.OTelServiceName, telemetryProvider)
	if cfg.LotCapacity > 0 {
		if _, err := handler.CreateLot(cfg.LotCapacity); err != nil {
			return nil, err
		}
	}

	scheduler, err := server.NewScheduler(cfg.OptimizeSchedule, handler)
	if err != nil {
		return nil, err
	}

	return &app{
		handler:   handler,
		server:    server.NewServer(cfg.Port, handler),
		scheduler: scheduler,
	}, nil
}

// serve starts the scheduler and HTTP server. The returned channel yields
// the server's exit error.
func (a *app) serve() <-chan error {
	a.scheduler.Start()

	serverDone := make(chan error, 1)
	go func() {
		err := a.server.Start()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serverDone <- err
	}()
	return serverDone
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		logging.Error(ctx).Err(err).Msg("server shutdown error")
	}
	if err := a.scheduler.Stop(ctx); err != nil {
		logging.Error(ctx).Err(err).Msg("scheduler shutdown error")
	}
}

func runServer(ctx context.Context, cfg *config.Config, telemetryProvider *parking.TelemetryProvider) error {
	a, err := newApp(cfg, telemetryProvider)
	if err != nil {
		return err
	}

	logging.Info(ctx).Str("port", cfg.Port).Msg("starting server mode")
	serverDone := a.serve()

	select {
	case err = <-serverDone:
	case <-ctx.Done():
		logging.Info(ctx).Msg("received shutdown signal")
	}
	a.shutdown()
	return err
}

func runBoth(ctx context.Context, cfg *config.Config, telemetryProvider *parking.TelemetryProvider) error {
	a, err := newApp(cfg, telemetryProvider)
	if err != nil {
		return err
	}
	serverDone := a.serve()

	// The shell drives the same lot the API serves when one was preconfigured.
	shell := parking.NewShell(os.Stdin, os.Stdout, telemetryProvider)
	if lot := a.handler.Lot(); lot != nil {
		shell.UseLot(lot)
	}
	cliDone := make(chan error, 1)
	go func() {
		cliDone <- shell.Run(ctx)
	}()

	select {
	case err = <-serverDone:
	case err = <-cliDone:
		logging.Info(ctx).Msg("CLI exited")
	case <-ctx.Done():
		logging.Info(ctx).Msg("received shutdown signal")
	}
	a.shutdown()
	return err
}

func shutdownTelemetry(telemetryProvider *parking.TelemetryProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
	defer cancel()

	if err := telemetryProvider.Shutdown(ctx); err != nil {
		logging.Error(ctx).Err(err).Msg("error shutting down telemetry")
	}
}
