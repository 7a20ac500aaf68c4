package radar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/metrics"
)

// Detector compares a candidate version with the stored record and applies
// the change. It is the only writer of version records.
type Detector struct {
	store    Store
	notifier Notifier
	clock    Clock
	logger   *zap.Logger
}

// NewDetector wires a Detector. A nil clock uses UTC wall time and a nil logger discards output.
func NewDetector(store Store, notifier Notifier, clock Clock, logger *zap.Logger) *Detector {
	if clock == nil {
		clock = utcClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		store:    store,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
	}
}

// DetectAndApply upserts candidate and notifies when it differs from the stored
// version (exact string comparison), and does nothing otherwise.
//
// A notification failure is returned wrapped in ErrNotification together with
// the Changed outcome; the store write stays committed.
func (d *Detector) DetectAndApply(ctx context.Context, softwareName, candidate string) (Outcome, error) {
	sess, err := d.store.Session(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: open session: %w", ErrStorage, err)
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil {
			d.logger.Warn("close store session", zap.Error(cerr))
		}
	}()

	current, err := sess.Get(ctx, softwareName)
	switch {
	case errors.Is(err, ErrNotFound):
		d.logger.Info("first version observed", zap.String("software", softwareName))
	case err != nil:
		return Outcome{}, fmt.Errorf("%w: read %q: %w", ErrStorage, softwareName, err)
	case current.Version == candidate:
		d.logger.Info("no new version detected",
			zap.String("software", softwareName),
			zap.String("version", candidate),
		)
		return Outcome{Record: current}, nil
	}

	record, err := sess.Upsert(ctx, softwareName, candidate, d.clock.Now())
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: upsert %q: %w", ErrStorage, softwareName, err)
	}
	outcome := Outcome{Changed: true, Previous: current.Version, Record: record}
	metrics.ObserveVersionChange(softwareName)
	d.logger.Info("new version detected",
		zap.String("software", softwareName),
		zap.String("previous", current.Version),
		zap.String("version", candidate),
	)

	if err := d.notifier.Notify(ctx, softwareName, candidate); err != nil {
		metrics.ObserveNotification(metrics.NotificationFailed)
		return outcome, fmt.Errorf("%w: %w", ErrNotification, err)
	}
	metrics.ObserveNotification(metrics.NotificationSent)
	return outcome, nil
}

// Lookup reads the record for softwareName through a short-lived session.
func Lookup(ctx context.Context, store Store, softwareName string) (rec VersionRecord, err error) {
	sess, err := store.Session(ctx)
	if err != nil {
		return VersionRecord{}, fmt.Errorf("%w: open session: %w", ErrStorage, err)
	}
	defer func() {
		if cerr := sess.Close(ctx); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close session: %w", ErrStorage, cerr)
		}
	}()
	rec, err = sess.Get(ctx, softwareName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return VersionRecord{}, fmt.Errorf("%w: read %q: %w", ErrStorage, softwareName, err)
	}
	return rec, err
}

type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}
