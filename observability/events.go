package observability

import (
	"log/slog"

	"tokenmart/core/events"
	"tokenmart/core/types"
)

// LogEmitter mirrors every emitted marketplace event into the structured log
// at debug level. It is meant to run alongside the persistent archive via
// events.Multi.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter builds an emitter over the supplied logger. A nil logger
// falls back to the process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements the events.Emitter interface.
func (l *LogEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	args := []any{"event", evt.EventType()}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := typed.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, key, value)
			}
		}
	}
	l.logger.Debug("market event", args...)
}
