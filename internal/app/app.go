package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/five82/cubespace/internal/config"
	"github.com/five82/cubespace/internal/docstore"
	"github.com/five82/cubespace/internal/flow"
	"github.com/five82/cubespace/internal/logging"
	"github.com/five82/cubespace/internal/prefs"
	"github.com/five82/cubespace/internal/state"
	"github.com/five82/cubespace/internal/telemetry"
	"github.com/five82/cubespace/internal/ui"
)

// Options configure the CubeSpace client.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/cubespace/prefs.toml
	StoreURL   string // overrides store_url when set
}

// Run boots the CubeSpace TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) (err error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if url := strings.TrimSpace(opts.StoreURL); url != "" {
		cfg.StoreURL = url
	}

	log, logFile, err := logging.OpenFile(cfg.LogPath, logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	defer logFile.Close()
	log = log.With(logging.String("component", "app"))
	log.Info(ctx, "starting", logging.String("store_url", cfg.StoreURL), logging.String("feed", cfg.Feed))

	reg := prometheus.NewRegistry()
	tel, shutdown, err := buildTelemetry(cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
			log.Warn(ctx, "telemetry shutdown failed", logging.Err(shutdownErr))
		}
	}()

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(ctx, cfg.MetricsAddr, reg, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	client, err := docstore.NewClient(docstore.Options{
		BaseURL:      cfg.StoreURL,
		Feed:         docstore.FeedMode(cfg.Feed),
		PollInterval: cfg.PollInterval,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("init store client: %w", err)
	}

	provider := state.New(state.Options{
		Feed:      client,
		Auth:      client,
		Logger:    log,
		Telemetry: tel,
	})
	go provider.Start(ctx)
	defer provider.Stop()

	session := flow.New(flow.Options{
		Store:         provider,
		Writer:        client,
		Identity:      client,
		Logger:        log,
		OnePerVisitor: cfg.OneCubePerVisitor,
		SaveTimeout:   cfg.SaveTimeout,
	})

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	err = ui.Run(ui.Options{
		Context:   ctx,
		Scene:     provider,
		Flow:      session,
		Logger:    log,
		LogPath:   cfg.LogPath,
		Prefs:     userPrefs,
		PrefsPath: opts.PrefsPath,
	})
	if err != nil {
		log.Error(ctx, "ui exited", logging.Err(err))
		return err
	}
	log.Info(ctx, "stopped")
	return nil
}

// buildTelemetry assembles the telemetry port from config. The returned
// function flushes any tracer and is always safe to call.
func buildTelemetry(cfg config.Config, log logging.Logger, reg prometheus.Registerer) (telemetry.Port, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	prom, err := telemetry.NewPrometheus(reg)
	if err != nil {
		return nil, noop, fmt.Errorf("init metrics: %w", err)
	}
	ports := telemetry.Multi{telemetry.NewLog(log), prom}

	if cfg.Tracing != "stdout" {
		return ports, noop, nil
	}

	// The terminal belongs to the UI, so spans go to a file beside the log.
	path := tracePath(cfg.LogPath)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, noop, fmt.Errorf("open trace file: %w", err)
	}
	tp, shutdownTracer, err := telemetry.NewStdoutProvider(file, "cubespace")
	if err != nil {
		_ = file.Close()
		return nil, noop, err
	}
	ports = append(ports, telemetry.NewTracer(tp))

	shutdown := func(ctx context.Context) error {
		return errors.Join(shutdownTracer(ctx), closeQuietly(file))
	}
	return ports, shutdown, nil
}

func tracePath(logPath string) string {
	dir := filepath.Dir(logPath)
	base := strings.TrimSuffix(filepath.Base(logPath), filepath.Ext(logPath))
	return filepath.Join(dir, base+".traces.json")
}

func closeQuietly(c io.Closer) error {
	if err := c.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
