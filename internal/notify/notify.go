// Package notify delivers posture notifications to the user.
package notify

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notification kinds.
const (
	KindActivated  = "activated"
	KindBadPosture = "bad_posture"
)

// Notification is a single message shown to the user.
type Notification struct {
	Kind              string    `json:"kind"`
	Title             string    `json:"title"`
	Body              string    `json:"body"`
	Icon              string    `json:"icon,omitempty"`
	Sound             string    `json:"sound,omitempty"`
	OnlyWhenUnfocused bool      `json:"only_when_unfocused"`
	SessionID         string    `json:"session_id,omitempty"`
	Time              time.Time `json:"time"`
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Activated is sent once when monitoring starts.
func Activated() Notification {
	return Notification{
		Kind:              KindActivated,
		Title:             "🦐 Shrimp Sentry Activated!",
		Body:              "You'll receive alerts like this when bad posture is detected. Stay safe and maintain good posture!",
		Sound:             "good.mp3",
		OnlyWhenUnfocused: false,
	}
}

// BadPosture is sent when a bad posture verdict passes the cooldown.
func BadPosture() Notification {
	return Notification{
		Kind:              KindBadPosture,
		Title:             "🦐 Shrimp Alert!",
		Body:              "Bad posture detected! Sit up straight.",
		Sound:             "bad.mp3",
		OnlyWhenUnfocused: false,
	}
}

// Multi fans a notification out to every notifier.
// All notifiers are tried; their errors are combined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var err error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		err = multierr.Append(err, notifier.Notify(ctx, n))
	}
	return err
}

// Nop discards notifications.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notification) error { return nil }

// BestEffort wraps n so that its failures are logged and never reported.
func BestEffort(name string, n Notifier, logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.L()
	}
	return NotifierFunc(func(ctx context.Context, note Notification) error {
		if err := n.Notify(ctx, note); err != nil {
			logger.Warn("notifier failed",
				zap.String("notifier", name),
				zap.String("kind", note.Kind),
				zap.Error(err))
		}
		return nil
	})
}
