// Package logsink provides a notifier that only writes to the log. It stands
// in for email when no SMTP credentials or recipient are configured.
package logsink

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/notify"
)

// Notifier logs each message at info level.
type Notifier struct {
	logger *zap.Logger
}

// New creates a Notifier.
func New(logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{logger: logger}
}

// Notify logs the composed message.
func (n *Notifier) Notify(_ context.Context, softwareName, version string) error {
	msg := notify.Compose(softwareName, version)
	n.logger.Info("version notification",
		zap.String("software", softwareName),
		zap.String("version", version),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body),
	)
	return nil
}
