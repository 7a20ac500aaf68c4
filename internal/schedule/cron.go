// Package schedule runs recurring tasks on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/logging"
)

// DefaultSpec fires at 00:00, 08:00 and 16:00.
const DefaultSpec = "0 0,8,16 * * *"

// Scheduler registers tasks against cron expressions.
type Scheduler interface {
	Schedule(spec string, task func()) error
}

// Cron is a Scheduler backed by robfig/cron. Specs use the standard
// five-field form and also accept descriptors such as "@every 1h".
type Cron struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New builds a Cron evaluated in loc. A nil loc means time.Local.
func New(loc *time.Location, logger *zap.Logger) *Cron {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := logging.Cron(logger)
	return &Cron{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger: logger,
	}
}

// Schedule registers task under spec.
func (c *Cron) Schedule(spec string, task func()) error {
	id, err := c.cron.AddFunc(spec, task)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.logger.Info("task scheduled", zap.String("spec", spec), zap.Int("entry_id", int(id)))
	return nil
}

// Start begins running scheduled tasks in the background.
func (c *Cron) Start() {
	c.cron.Start()
}

// Stop halts the scheduler and waits for running tasks until ctx expires.
func (c *Cron) Stop(ctx context.Context) error {
	done := c.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for scheduled tasks: %w", ctx.Err())
	}
}

// Len reports the number of registered tasks.
func (c *Cron) Len() int {
	return len(c.cron.Entries())
}
