// Package logctx auto-tags every log line with the request's correlation id.
package logctx

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// WithCorrelationID returns a context carrying the correlation id used to
// tag every subsequent log line for this request.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// CorrelationID returns the request's correlation id, or "" if none was set.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// L returns a logrus entry pre-tagged with the request's correlation id.
func L(ctx context.Context, log *logrus.Logger) *logrus.Entry {
	id := CorrelationID(ctx)
	if id == "" {
		return logrus.NewEntry(log)
	}
	return log.WithField("correlation_id", id)
}

// Error logs message with err attached, tagged with the correlation id.
// Trailing keyvals are alternating field name/value pairs.
func Error(ctx context.Context, log *logrus.Logger, message string, err error, keyvals ...any) {
	fields := kv(keyvals...)
	if err != nil {
		fields["error"] = err.Error()
	}
	L(ctx, log).WithFields(fields).Error(message)
}

// Info logs an info-level message tagged with the correlation id.
func Info(ctx context.Context, log *logrus.Logger, message string, keyvals ...any) {
	L(ctx, log).WithFields(kv(keyvals...)).Info(message)
}

// Warn logs a warn-level message tagged with the correlation id.
func Warn(ctx context.Context, log *logrus.Logger, message string, keyvals ...any) {
	L(ctx, log).WithFields(kv(keyvals...)).Warn(message)
}

// kv turns an alternating key/value argument list into logrus.Fields,
// ignoring a trailing unpaired key.
func kv(keyvals ...any) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		fields[key] = keyvals[i+1]
	}
	return fields
}
