package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/commentgoat/internal/config"
	"github.com/IshaanNene/commentgoat/internal/coordinator"
	"github.com/IshaanNene/commentgoat/internal/engine"
	"github.com/IshaanNene/commentgoat/internal/extractor"
	"github.com/IshaanNene/commentgoat/internal/fetcher"
	"github.com/IshaanNene/commentgoat/internal/observability"
	"github.com/IshaanNene/commentgoat/internal/pacing"
	"github.com/IshaanNene/commentgoat/internal/settings"
)

// app holds the components shared by the run commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	flags     *settings.Flags
	snapshot  settings.Snapshot
	metrics   *observability.Metrics
	fetcher   *fetcher.HTTPFetcher
	extractor *extractor.Extractor
	gate      engine.Gate

	opener *coordinator.BrowserTabOpener
	cancel context.CancelFunc
	done   chan struct{}
}

// newApp loads config and settings and starts the handshake coordinator.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, level := setupLogger(&cfg.Logging)

	store, err := settings.Open(ctx, &cfg.Settings, logger)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	flags := settings.NewFlags(store, logger)
	if err := flags.InstallDefaults(ctx); err != nil {
		logger.Warn("install default settings failed", "error", err)
	}
	snap := flags.Snapshot(ctx)
	level.Set(logLevel(&cfg.Logging, &snap))

	session, err := fetcher.NewSession(logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		flags:    flags,
		snapshot: snap,
		metrics:  observability.NewMetrics(logger),
		done:     make(chan struct{}),
	}

	serveCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	if cfg.Handshake.Enabled {
		label := cfg.Handshake.LikeLabel
		if snap.FeedbackDislike {
			label = cfg.Handshake.DislikeLabel
		}
		a.opener = coordinator.NewBrowserTabOpener(&cfg.Handshake, session,
			coordinator.Feedback{Label: label, Auto: snap.AutoFeedback}, logger)

		coord := coordinator.New(coordinator.NewBus(logger), a.opener, coordinator.Config{
			PollInterval:     cfg.Handshake.PollInterval,
			MaxCloseAttempts: cfg.Handshake.MaxCloseAttempts,
		}, logger, coordinator.WithMetrics(a.metrics))

		go func() {
			defer close(a.done)
			_ = coord.Serve(serveCtx)
		}()
		a.gate = coord
	} else {
		close(a.done)
	}

	a.fetcher = fetcher.NewHTTPFetcher(&cfg.Fetcher, session, logger)
	a.extractor = extractor.New(cfg.Scrape.Selectors, logger)
	return a, nil
}

// newController wires a controller over the shared components. extra
// options are applied after the defaults.
func (a *app) newController(extra ...engine.Option) *engine.Controller {
	opts := []engine.Option{
		engine.WithMetrics(a.metrics),
		engine.WithCommentsPerPage(a.cfg.Scrape.CommentsPerPage),
		engine.WithMaxBlockedRetries(a.cfg.Scrape.MaxBlockedRetries),
	}
	if a.gate != nil {
		opts = append(opts, engine.WithGate(a.gate))
	}
	return engine.New(a.fetcher, a.extractor, a.pacers(), a.logger, append(opts, extra...)...)
}

// pacers reads the randomization flags at the start of every run.
func (a *app) pacers() engine.PacerFactory {
	return func(ctx context.Context) engine.Pacer {
		snap := a.flags.Snapshot(ctx)
		return pacing.New(pacing.Config{
			BaseInterval:        a.cfg.Pacing.BaseInterval,
			RandomizeInterval:   snap.RandomInterval,
			MinInterval:         a.cfg.Pacing.MinInterval,
			MaxInterval:         a.cfg.Pacing.MaxInterval,
			RandomizeExtraDelay: snap.IncreaseRandom,
			MaxExtraDelay:       a.cfg.Pacing.MaxExtraDelay,
		})
	}
}

// startMetrics serves the metrics endpoint when enabled.
func (a *app) startMetrics(ctx context.Context) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	if err := a.metrics.StartServer(ctx, a.cfg.Metrics.Port, a.cfg.Metrics.Path); err != nil {
		a.logger.Warn("failed to start metrics server", "error", err)
	}
}

// Close stops the coordinator, the browser and the settings store.
func (a *app) Close() {
	a.cancel()
	<-a.done
	_ = a.fetcher.Close()
	if a.opener != nil {
		if err := a.opener.Close(); err != nil {
			a.logger.Warn("close browser failed", "error", err)
		}
	}
	if err := a.flags.Store().Close(); err != nil {
		a.logger.Warn("close settings failed", "error", err)
	}
}
