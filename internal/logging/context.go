package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Context key types
type sessionCtxKey struct{}
type runCtxKey struct{}
type stageCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 6)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}

	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}
	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if stageID := StageIDFromContext(ctx); stageID != "" {
		fields = append(fields, zap.String("stage.id", stageID))
	}

	return fields
}

// WithSessionID attaches a session id to the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionIDFromContext returns the session id, or "" if absent.
func SessionIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionCtxKey{}).(string)
	return v
}

// WithRunID attaches a workflow run id to the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runCtxKey{}, runID)
}

// RunIDFromContext returns the run id, or "" if absent.
func RunIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(runCtxKey{}).(string)
	return v
}

// WithStageID attaches the currently executing stage id to the context.
func WithStageID(ctx context.Context, stageID string) context.Context {
	return context.WithValue(ctx, stageCtxKey{}, stageID)
}

// StageIDFromContext returns the stage id, or "" if absent.
func StageIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(stageCtxKey{}).(string)
	return v
}
