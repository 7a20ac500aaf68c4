package radar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/metrics"
)

// Runner drives one fetch, extract, detect cycle at a time.
type Runner struct {
	cfg       ExtractionConfig
	fetcher   Fetcher
	extractor *Extractor
	detector  *Detector
	ids       IDGenerator
	logger    *zap.Logger
}

// NewRunner constructs a Runner. A nil extractor uses the default goquery/regexp pair.
func NewRunner(
	cfg ExtractionConfig,
	fetcher Fetcher,
	extractor *Extractor,
	detector *Detector,
	ids IDGenerator,
	logger *zap.Logger,
) *Runner {
	if extractor == nil {
		extractor = NewExtractor(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		detector:  detector,
		ids:       ids,
		logger:    logger,
	}
}

// Config returns the extraction settings the runner was built with.
func (r *Runner) Config() ExtractionConfig {
	return r.cfg
}

// RunScrapeCycle performs a single best-effort check. Failures, including
// panics, are logged and reported in the Result; they never reach the caller.
func (r *Runner) RunScrapeCycle(ctx context.Context) (res Result) {
	start := time.Now()
	res = Result{RunID: r.newRunID(), State: StateIdle}
	logger := r.logger.With(
		zap.String("run_id", res.RunID),
		zap.String("software", r.cfg.SoftwareName),
	)

	defer func() {
		if rec := recover(); rec != nil {
			res.fail(fmt.Errorf("panic: %v", rec))
			logger.Error("scrape cycle panicked", zap.Any("panic", rec), zap.Stack("stack"))
		}
		res.Duration = time.Since(start)
		metrics.ObserveScrapeCycle(string(res.State), res.Duration)
	}()

	logger.Info("scrape cycle started", zap.String("url", r.cfg.TargetURL))

	res.State = StateFetching
	body, err := r.fetcher.Fetch(ctx, r.cfg.TargetURL)
	if err != nil {
		res.fail(fmt.Errorf("%w: %w", ErrFetch, err))
		logger.Error("fetch failed", zap.String("url", r.cfg.TargetURL), zap.Error(err))
		return res
	}
	metrics.ObserveFetch(r.cfg.TargetURL, len(body))

	res.State = StateExtracting
	version, err := r.extractor.Extract(string(body), r.cfg.Selector, r.cfg.Pattern, r.cfg.Format)
	if err != nil {
		res.fail(err)
		switch {
		case errors.Is(err, ErrNoFormatMatch):
			logger.Warn("no format match", zap.String("format", string(r.cfg.Format)), zap.Error(err))
		default:
			logger.Warn("no versions found", zap.String("selector", r.cfg.Selector), zap.Error(err))
		}
		return res
	}
	res.Version = version
	logger.Info("selected version", zap.String("version", version))

	res.State = StateDetecting
	outcome, err := r.detector.DetectAndApply(ctx, r.cfg.SoftwareName, version)
	switch {
	case errors.Is(err, ErrNotification):
		res.Error = err.Error()
		res.Err = err
		logger.Error("notification failed; stored version kept", zap.Error(err))
	case err != nil:
		res.fail(err)
		logger.Error("change detection failed", zap.Error(err))
		return res
	}
	res.Changed = outcome.Changed
	res.Previous = outcome.Previous
	res.State = StateDone
	logger.Info("scrape cycle finished", zap.Bool("changed", outcome.Changed))
	return res
}

func (r *Runner) newRunID() string {
	if r.ids == nil {
		return ""
	}
	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("generate run id", zap.Error(err))
		return ""
	}
	return id
}
