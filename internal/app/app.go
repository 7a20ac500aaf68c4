// Package app builds and holds the long-lived services shared by the
// commands: the version store, the notifier, and the scrape runner.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/clock/system"
	"github.com/JakeFAU/version-radar/internal/config"
	collyfetcher "github.com/JakeFAU/version-radar/internal/fetcher/colly"
	"github.com/JakeFAU/version-radar/internal/id/uuid"
	emailnotify "github.com/JakeFAU/version-radar/internal/notify/email"
	"github.com/JakeFAU/version-radar/internal/notify/logsink"
	"github.com/JakeFAU/version-radar/internal/radar"
	"github.com/JakeFAU/version-radar/internal/storage"
)

// App holds the shared services for one process.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	store    radar.Store
	notifier radar.Notifier
	runner   *radar.Runner
}

// Option customises App construction.
type Option func(*options)

type options struct {
	notifier radar.Notifier
}

// WithNotifier replaces the notifier otherwise chosen from the email settings.
func WithNotifier(n radar.Notifier) Option {
	return func(o *options) {
		o.notifier = n
	}
}

// New connects the store and wires the scrape pipeline described by cfg.
// It fails fast when a critical service cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger.Info("Initializing application services...")

	store, err := storage.Open(ctx, storage.Config{
		URI:      cfg.Storage.URI,
		Database: cfg.Storage.Database,
		Table:    cfg.Storage.Table,
	}, logger.Named("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	notifier := o.notifier
	if notifier == nil {
		notifier, err = newNotifier(cfg, logger)
	}
	if err != nil {
		_ = store.Close(ctx)
		return nil, fmt.Errorf("failed to initialize notifier: %w", err)
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.HTTP.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		Headers:     http.Header{"Accept": {"text/html,application/xhtml+xml"}},
		MaxBodySize: cfg.HTTP.MaxBodyBytes,
	})
	detector := radar.NewDetector(store, notifier, system.New(), logger.Named("detector"))
	runner := radar.NewRunner(cfg.Extraction(), fetcher, radar.NewExtractor(nil, nil), detector, uuid.New(),
		logger.Named("runner"))

	logger.Info("Application services initialized successfully.",
		zap.String("software", cfg.Software.Name),
		zap.Bool("email", cfg.EmailEnabled()),
	)
	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		notifier: notifier,
		runner:   runner,
	}, nil
}

func newNotifier(cfg config.Config, logger *zap.Logger) (radar.Notifier, error) {
	if !cfg.EmailEnabled() {
		logger.Warn("Email is not configured. Version changes will only be logged.")
		return logsink.New(logger.Named("notify")), nil
	}
	n, err := emailnotify.New(emailnotify.Config{
		Host:      cfg.Email.Host,
		Port:      cfg.Email.Port,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		Recipient: cfg.Email.Recipient,
	}, logger.Named("email"))
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Store exposes the version store.
func (a *App) Store() radar.Store {
	return a.store
}

// Notifier exposes the notifier used on version changes.
func (a *App) Notifier() radar.Notifier {
	return a.notifier
}

// Runner exposes the scrape cycle runner.
func (a *App) Runner() *radar.Runner {
	return a.runner
}

// Close shuts down the services held by the App.
func (a *App) Close(ctx context.Context) error {
	a.logger.Info("Shutting down application services...")
	var errs []error
	if err := a.store.Close(ctx); err != nil {
		a.logger.Warn("Error closing version store", zap.Error(err))
		errs = append(errs, err)
	}
	// Sync commonly fails on stdout/stderr; best effort only.
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
