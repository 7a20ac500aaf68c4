// Package notify composes version change messages. Delivery lives in the
// email, logsink and memory subpackages.
package notify

import "fmt"

// SenderName is the display name used on outgoing messages.
const SenderName = "Version Radar"

// Message is the subject and body announcing a new version.
type Message struct {
	Subject string
	Body    string
}

// Compose derives the message for softwareName at version.
func Compose(softwareName, version string) Message {
	return Message{
		Subject: fmt.Sprintf("New %s Version Available", softwareName),
		Body:    fmt.Sprintf("A new version of the %s is available: %s", softwareName, version),
	}
}
