package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes journal events to an slog.Logger.
// Useful for development when you want to see events in the console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("component", event.Component),
		slog.String("category", event.Category.String()),
	}

	if event.InstanceID != "" {
		attrs = append(attrs, slog.String("instance_id", event.InstanceID))
	}

	switch {
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Command != nil:
		attrs = append(attrs, slog.String("command", event.Command.Name))
		if event.Command.Error != "" {
			attrs = append(attrs, slog.String("error", event.Command.Error))
		}
	case event.Watchdog != nil:
		attrs = append(attrs,
			slog.String("watchdog", event.Watchdog.Name),
			slog.String("event", event.Watchdog.Event),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "event", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
