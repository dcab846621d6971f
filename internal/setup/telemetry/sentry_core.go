package telemetry

import (
	"fmt"
	"strings"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap/zapcore"
)

// SentryCore implements zapcore.Core interface to forward errors to Sentry.
type SentryCore struct {
	zapcore.LevelEnabler
	fields []zapcore.Field
}

// NewSentryCore creates a new Core that forwards errors to Sentry.
func NewSentryCore(enab zapcore.LevelEnabler) *SentryCore {
	return &SentryCore{LevelEnabler: enab}
}

// With adds structured context to the Core.
func (c *SentryCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)

	return &SentryCore{LevelEnabler: c.LevelEnabler, fields: merged}
}

// Check determines whether the supplied Entry should be logged.
func (c *SentryCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write forwards error and fatal level logs to Sentry.
func (c *SentryCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	if ent.Level < zapcore.ErrorLevel || sentry.CurrentHub().Client() == nil {
		return nil
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		event, extras := buildEvent(ent, append(c.fields[:len(c.fields):len(c.fields)], fields...))
		for k, v := range extras {
			scope.SetExtra(k, v)
		}

		scope.SetTag("category", errorCategory(ent))
		if ent.LoggerName != "" {
			scope.SetTag("logger", ent.LoggerName)
		}

		sentry.CaptureEvent(event)
	})

	return nil
}

// Sync implements zapcore.Core.
func (c *SentryCore) Sync() error {
	return nil
}

// buildEvent converts a log entry into a Sentry exception event plus the extra fields.
func buildEvent(ent zapcore.Entry, fields []zapcore.Field) (*sentry.Event, map[string]any) {
	enc := zapcore.NewMapObjectEncoder()

	var errorValues []string

	for i := range fields {
		if fields[i].Type == zapcore.ErrorType {
			if err, ok := fields[i].Interface.(error); ok {
				errorValues = append(errorValues, err.Error())
			}
		}

		fields[i].AddTo(enc)
	}

	delete(enc.Fields, "error")

	level := sentry.LevelError
	if ent.Level > zapcore.ErrorLevel {
		level = sentry.LevelFatal
	}

	// Split the caller into package path and function name
	var packagePath, funcName string

	if fn := ent.Caller.Function; fn != "" {
		funcName = fn
		if lastSlash := strings.LastIndexByte(fn, '/'); lastSlash > -1 {
			packagePath = fn[:lastSlash]
		}
		if lastDot := strings.LastIndexByte(fn, '.'); lastDot > -1 {
			funcName = fn[lastDot+1:]
		}
	}

	value := ent.Message
	if len(errorValues) > 0 {
		value = fmt.Sprintf("%s: %s", ent.Message, strings.Join(errorValues, "; "))
	}

	event := sentry.NewEvent()
	event.Level = level
	event.Message = ent.Message
	event.Exception = []sentry.Exception{{
		Value:      value,
		Type:       funcName,
		Module:     packagePath,
		Stacktrace: sentry.NewStacktrace(),
	}}

	return event, enc.Fields
}

// errorCategory groups errors by the component that logged them.
func errorCategory(ent zapcore.Entry) string {
	switch fn := ent.Caller.Function; {
	case strings.Contains(fn, "/internal/database"):
		return "database"
	case strings.Contains(fn, "/internal/redis"), strings.Contains(fn, "/internal/cache"):
		return "cache"
	case strings.Contains(fn, "/internal/starboard/"):
		return "starboard"
	case strings.Contains(fn, "/internal/bot"), strings.Contains(fn, "/internal/discord"):
		return "bot"
	case strings.Contains(fn, "/internal/worker"):
		return "worker"
	case strings.Contains(fn, "/internal/setup"):
		return "setup"
	default:
		return "application"
	}
}
