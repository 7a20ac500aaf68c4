// Package emailnotify delivers version notifications over SMTP.
package emailnotify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/JakeFAU/version-radar/internal/notify"
)

// Config holds the SMTP account and recipient.
type Config struct {
	Host      string
	Port      int
	Username  string
	Password  string
	Recipient string
}

// Validate reports missing settings.
func (c Config) Validate() error {
	switch {
	case c.Host == "":
		return errors.New("smtp host is required")
	case c.Port <= 0:
		return errors.New("smtp port must be > 0")
	case c.Username == "":
		return errors.New("email user is required")
	case c.Recipient == "":
		return errors.New("recipient email is required")
	}
	return nil
}

// Addr is the host:port of the SMTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// Notifier sends one plain-text email per version change.
type Notifier struct {
	cfg    Config
	send   sendFunc
	logger *zap.Logger
}

// New validates cfg and builds a Notifier.
func New(cfg Config, logger *zap.Logger) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
		logger: logger,
	}, nil
}

// Build composes the email for softwareName at version.
func (n *Notifier) Build(softwareName, version string) *email.Email {
	msg := notify.Compose(softwareName, version)
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", notify.SenderName, n.cfg.Username)
	mail.To = []string{n.cfg.Recipient}
	mail.Subject = msg.Subject
	mail.Text = []byte(msg.Body)
	return mail
}

// Notify sends the email, retrying once without AUTH when the server does not offer it.
func (n *Notifier) Notify(ctx context.Context, softwareName, version string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	mail := n.Build(softwareName, version)
	addr := n.cfg.Addr()

	err := n.send(mail, addr, smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		n.logger.Warn("smtp server does not support AUTH; sending unauthenticated", zap.String("addr", addr))
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send email to %s: %w", n.cfg.Recipient, err)
	}
	n.logger.Info("email sent",
		zap.String("recipient", n.cfg.Recipient),
		zap.String("subject", mail.Subject),
	)
	return nil
}
