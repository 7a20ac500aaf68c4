// Package memory contains an in-memory notifier for tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/version-radar/internal/notify"
)

// Notifier stores composed messages for inspection.
type Notifier struct {
	mu       sync.RWMutex
	messages []Sent
	err      error
}

// Sent captures one Notify call.
type Sent struct {
	SoftwareName string
	Version      string
	Message      notify.Message
}

// New returns a memory Notifier.
func New() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent Notify calls record the message and return err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notify records the message.
func (n *Notifier) Notify(_ context.Context, softwareName, version string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Sent{
		SoftwareName: softwareName,
		Version:      version,
		Message:      notify.Compose(softwareName, version),
	})
	return n.err
}

// Messages returns the recorded notifications.
func (n *Notifier) Messages() []Sent {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Sent, len(n.messages))
	copy(out, n.messages)
	return out
}
