// Command vision runs a camera node: one stick counter per configured
// camera, gated by the game's control topics, publishing confirmed color
// counts as telemetry.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/falcongrasp/internal/adapters/bus"
	"github.com/okian/falcongrasp/internal/adapters/http/api"
	"github.com/okian/falcongrasp/internal/adapters/vision"
	"github.com/okian/falcongrasp/internal/config"
	"github.com/okian/falcongrasp/internal/domain/color"
	"github.com/okian/falcongrasp/internal/domain/model"
	"github.com/okian/falcongrasp/pkg/logger"
	"github.com/okian/falcongrasp/pkg/metrics"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		os.Stderr.WriteString("vision: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func loadTable(cfg config.VisionConfig) (*color.Table, error) {
	table := color.DefaultTable()
	if cfg.CalibrationPath != "" {
		t, err := color.LoadTable(cfg.CalibrationPath)
		if err != nil {
			return nil, fmt.Errorf("load calibration: %w", err)
		}
		table = t
	}
	if err := table.Require(cfg.RequiredColors...); err != nil {
		return nil, err
	}
	return table, nil
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := cfg.ValidateVision(); err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get().Named("vision")
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel))
		_ = logger.SetLevelString("info")
	}
	if err := metrics.RegisterRuntimeCollectors(); err != nil {
		log.Warn(ctx, "runtime collectors not registered", logger.Error(err))
	}

	table, err := loadTable(cfg.Vision)
	if err != nil {
		return err
	}

	topics := bus.NewTopics(cfg.Namespace)
	b := bus.New(bus.NewMQTTTransport(cfg.MQTT, "falcongrasp-vision"), topics,
		bus.WithControlKinds(model.ControlStart, model.ControlStop, model.ControlActivate, model.ControlDeactivate),
		bus.WithOfflineBuffer(cfg.MQTT.OfflineBuffer),
	)
	pool, err := vision.NewPool(cfg.Vision, table, b, topics.Camera)
	if err != nil {
		return err
	}
	b.OnControl(pool.HandleControl)
	if err := b.Connect(ctx); err != nil {
		return err
	}
	defer b.Close()

	pool.Start(ctx)
	log.Info(ctx, "vision node started",
		logger.Int("cameras", len(cfg.Vision.Cameras)),
		logger.Any("colors", table.Names()),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", api.MetricsMiddleware(api.NewHealthHandler().HandleHealth, "healthz"))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "HTTP server failed", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down vision node...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := pool.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "camera shutdown failed", logger.Error(err))
	}
	return nil
}
