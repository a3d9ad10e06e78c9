package core

import (
	"context"
	"time"
)

// Logger captures structured service events. The signature mirrors log/slog so
// callers can adapt any leveled logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder aggregates per-operation outcome counters and durations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan finalizes a span with the operation outcome.
type TraceSpan interface {
	End(err error)
}

// ServiceOption customizes a Service at construction time.
type ServiceOption func(*Service)

// WithLogger installs a structured logger. A nil logger is ignored.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics installs a metrics recorder. A nil recorder is ignored.
func WithMetrics(recorder MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// WithTracer installs a tracer. A nil tracer is ignored.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides the service clock, used by schedule tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// instrument wraps a service operation with tracing, metrics, and error
// logging. The returned error is passed through unchanged.
func (s *Service) instrument(ctx context.Context, operation string, fn func(context.Context) error) error {
	spanCtx := ctx
	var span TraceSpan
	if s.tracer != nil {
		spanCtx, span = s.tracer.Start(ctx, operation)
	}

	started := time.Now()
	err := fn(spanCtx)
	elapsed := time.Since(started)

	if span != nil {
		span.End(err)
	}
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, elapsed)
	}
	if err != nil {
		s.logger.Error("operation failed", "operation", operation, "error", err)
	} else {
		s.logger.Debug("operation completed", "operation", operation, "duration_ms", float64(elapsed)/float64(time.Millisecond))
	}
	return err
}
