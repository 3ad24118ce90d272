package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	profileContextKey   contextKey = "profile"
	operationContextKey contextKey = "operation"
)

// WithProfile records the profile display name on the context so loggers
// derived through WithContext tag records with it.
func WithProfile(ctx context.Context, profile string) context.Context {
	if profile == "" {
		return ctx
	}
	return context.WithValue(ctx, profileContextKey, profile)
}

// ProfileFromContext extracts the profile recorded by WithProfile.
func ProfileFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	profile, ok := ctx.Value(profileContextKey).(string)
	return profile, ok && profile != ""
}

// WithOperation records the core operation name on the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	if operation == "" {
		return ctx
	}
	return context.WithValue(ctx, operationContextKey, operation)
}

// OperationFromContext extracts the operation recorded by WithOperation.
func OperationFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	operation, ok := ctx.Value(operationContextKey).(string)
	return operation, ok && operation != ""
}

// ContextFields extracts standardized slog attributes from the provided
// context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if profile, ok := ProfileFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldProfile, profile))
	}
	if operation, ok := OperationFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldOperation, operation))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived
// from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrArgs(fields)...)
}
