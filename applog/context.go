package applog

import (
	"context"
	"go.uber.org/zap"
	"slices"
)

type contextFieldsKey struct{}

// FromContext returns the package logger carrying the fields of ctx, for
// example the action and search cycle of the running operation.
func FromContext(ctx context.Context) *Logger {
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return globalLogger
	}
	return globalLogger.With(fields...)
}

// ContextFields returns the log fields attached to ctx in the order they
// were first added.
func ContextFields(ctx context.Context) []zap.Field {
	fields, _ := ctx.Value(contextFieldsKey{}).([]zap.Field)
	return fields
}

// AddContextFields returns a child of ctx carrying fields as well. A key that
// is already present keeps its position and takes the new value.
func AddContextFields(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return context.WithValue(ctx, contextFieldsKey{}, upsertFields(ContextFields(ctx), fields))
}

func upsertFields(current, fields []zap.Field) []zap.Field {
	out := slices.Clone(current)
	for _, f := range fields {
		i := slices.IndexFunc(out, func(c zap.Field) bool { return c.Key == f.Key })
		if i >= 0 {
			out[i] = f
			continue
		}
		out = append(out, f)
	}
	return out
}
