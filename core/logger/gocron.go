package logger

import (
	"context"
	"log/slog"

	"github.com/go-co-op/gocron/v2"
)

// schedulerLogger routes gocron's key/value logging into the component logger.
type schedulerLogger struct {
	component string
}

// NewSchedulerLogger returns a gocron.Logger that writes under the given component.
func NewSchedulerLogger(component string) gocron.Logger {
	return &schedulerLogger{component: component}
}

func (l *schedulerLogger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *schedulerLogger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *schedulerLogger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *schedulerLogger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *schedulerLogger) log(level slog.Level, msg string, args ...any) {
	if level == slog.LevelDebug && !ShouldSampleDebug() {
		return
	}
	Event(context.Background(), l.component, level, "scheduler", schedulerAttrs(msg, args)...)
}

func schedulerAttrs(msg string, args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2+1)
	if msg != "" {
		attrs = append(attrs, slog.String("payload", SanitizeLimit(msg, 256)))
	}
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok || key == "" {
			continue
		}
		if key == "error" {
			key = "err"
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}
