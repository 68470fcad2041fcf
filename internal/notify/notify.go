// Package notify shows system notifications for pipeline milestones.
package notify

import "github.com/gen2brain/beeep"

const appName = "VoxPaste"

// Notifier sends desktop notifications. Delivery is best effort; a failed
// notification is never worth failing the pipeline over.
type Notifier struct {
	enabled bool
}

// New creates a Notifier.
func New(enabled bool) *Notifier {
	return &Notifier{enabled: enabled}
}

// SetEnabled toggles notification delivery.
func (n *Notifier) SetEnabled(enabled bool) {
	n.enabled = enabled
}

// Notify shows a plain notification with the app title.
func (n *Notifier) Notify(message string) {
	if !n.enabled {
		return
	}
	if len(message) > 100 {
		message = message[:100] + "..."
	}
	_ = beeep.Notify(appName, message, "")
}
