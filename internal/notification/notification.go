package notification

import (
	"context"
	"fmt"
	"log/slog"
)

const (
	// KindAccessGranted tells a user they were added to the allow-list.
	KindAccessGranted = "access_granted"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Recipient   string
	Text        string
	ActionURL   string
	ActionLabel string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// PlatformError carries the failure description returned by the messaging platform.
type PlatformError struct {
	Description string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform error: %s", e.Description)
}

// LoggerNotifier writes notifications to the logger instead of delivering them.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a dry-run notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("recipient", message.Recipient),
		slog.String("action_url", message.ActionURL),
		slog.String("text", message.Text),
	)
	return nil
}
