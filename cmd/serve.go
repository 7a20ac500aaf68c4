package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/api"
	"github.com/JakeFAU/version-radar/internal/metrics"
	"github.com/JakeFAU/version-radar/internal/schedule"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serves the HTTP API and runs scheduled scrape cycles",
		Args:  cobra.NoArgs,
		RunE:  runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx, stop := context.WithCancel(cmd.Context())
	defer stop()

	srv, scheduler, err := buildServer(ctx, appInstance)
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	cfg := appInstance.Config()

	var startup cycleGroup
	scheduler.Start()
	if cfg.Schedule.RunOnStart {
		runner := appInstance.Runner()
		startup.Go(func() { runner.RunScrapeCycle(ctx) })
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop error", zap.Error(err))
	}
	if err := startup.Wait(shutdownCtx); err != nil {
		logger.Warn("startup cycle still running", zap.Error(err))
	}
	logger.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// buildServer validates the scrape settings, registers the scrape cycle with
// the scheduler and assembles the HTTP server. Cycles run under ctx.
func buildServer(ctx context.Context, a App) (*http.Server, *schedule.Cron, error) {
	cfg := a.Config()
	if err := cfg.ValidateScrape(); err != nil {
		return nil, nil, fmt.Errorf("invalid scrape config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	metrics.Init()

	logger := a.Logger()
	runner := a.Runner()
	scheduler := schedule.New(loc, logger)
	if err := scheduler.Schedule(cfg.Schedule.Spec, func() { runner.RunScrapeCycle(ctx) }); err != nil {
		return nil, nil, err
	}

	var checker api.Checker
	if cfg.Server.EnableManualCheck {
		checker = runner
	}
	handler := api.NewServer(a.Store(), cfg.Software.Name, checker, logger).Handler()
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}, scheduler, nil
}

// cycleGroup tracks scrape cycles started outside the scheduler so shutdown
// can wait for them before the store is closed.
type cycleGroup struct {
	wg sync.WaitGroup
}

func (g *cycleGroup) Go(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// Wait blocks until every tracked cycle returns or ctx expires.
func (g *cycleGroup) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for scrape cycles: %w", ctx.Err())
	}
}
