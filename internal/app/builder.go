package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"exconnector/internal/config"
	"exconnector/internal/gateway"
	"exconnector/internal/gateway/notifier"
	"exconnector/internal/logger"
	"exconnector/internal/metrics"
	"exconnector/internal/store/journal"
	"exconnector/internal/store/ledger"
	httpapi "exconnector/internal/transport/http"
)

type AppBuilder struct {
	cfg  *config.Config
	path string

	venueFn func(*config.Config, gateway.Deps) (gateway.Venue, error)
	httpFn  func(httpapi.ServerConfig) (*httpapi.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithVenueFactory replaces the config-driven venue construction.
func WithVenueFactory(fn func(*config.Config, gateway.Deps) (gateway.Venue, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.venueFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, path string, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:     cfg,
		path:    path,
		venueFn: gateway.NewVenueFromConfig,
		httpFn:  httpapi.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(_ context.Context) (_ *App, err error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	app := &App{cfg: cfg}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	if err := b.setupLogOutputs(app); err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	collectors := metrics.New(reg)

	app.ledger, err = ledger.Open(cfg.Storage.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	deps := gateway.Deps{Metrics: collectors, Ledger: app.ledger}
	if tg := cfg.Notify.Telegram; tg.Enabled {
		bot := notifier.NewTelegram(tg.BotToken, tg.ChatID)
		if tg.APIBaseURL != "" {
			bot.BaseURL = tg.APIBaseURL
		}
		app.alerts = notifier.NewAlerts(bot, cfg.Venue.Name, 0)
		deps.Alerts = app.alerts
	}

	if cfg.Storage.JournalEnabled && cfg.Venue.Name == config.VenueFIX {
		app.journal, err = journal.Open(cfg.Storage.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		app.recorder = journal.NewRecorder(app.journal, cfg.Storage.JournalBuffer)
		deps.Journal = app.recorder
	}

	app.venue, err = b.venueFn(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("build venue: %w", err)
	}
	logger.Infof("✓ venue %s configured (timeout=%s policy=%s)", app.venue.Name(), cfg.Venue.RequestTimeout, cfg.Venue.TimeoutPolicy)

	app.http, err = b.httpFn(httpapi.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		Mode:            cfg.HTTP.Mode,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Exchange:        app.venue,
		Metrics:         collectors,
		Gatherer:        reg,
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}

	if strings.TrimSpace(b.path) != "" {
		app.watcher, err = config.Watch(b.path, cfg)
		if err != nil {
			return nil, err
		}
		app.watcher.Subscribe(config.ApplyLogLevel)
	}

	app.Summary = NewStartupSummary(cfg)
	return app, nil
}

func (b *AppBuilder) setupLogOutputs(app *App) error {
	if f, err := openAppend(b.cfg.App.LogPath); err != nil {
		return fmt.Errorf("open log file: %w", err)
	} else if f != nil {
		mw := io.MultiWriter(os.Stdout, f)
		log.SetOutput(mw)
		logger.SetOutput(mw)
		app.closers = append(app.closers, f)
	}
	if f, err := openAppend(b.cfg.App.WireLogPath); err != nil {
		return fmt.Errorf("open wire log: %w", err)
	} else if f != nil {
		logger.SetWireWriter(f)
		app.closers = append(app.closers, wireCloser{f})
	}
	return nil
}

func openAppend(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// wireCloser detaches the wire writer before closing its file.
type wireCloser struct {
	f *os.File
}

func (w wireCloser) Close() error {
	logger.SetWireWriter(nil)
	return w.f.Close()
}
