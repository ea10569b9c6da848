package database

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/yes-simulation/accounts/pkg/database"

// QueryTracer wraps database calls in client spans and warns about calls that
// take longer than its slow-query threshold. It is built once at startup and
// shared by the repositories; a nil *QueryTracer traces with the global
// provider and never logs.
type QueryTracer struct {
	tracer        trace.Tracer
	slowThreshold time.Duration
	logger        *slog.Logger
}

// QueryTracerOption configures a QueryTracer.
type QueryTracerOption func(*QueryTracer)

// WithSlowQueryLog logs every call taking threshold or longer at warn level.
// A zero threshold or nil logger disables it.
func WithSlowQueryLog(threshold time.Duration, logger *slog.Logger) QueryTracerOption {
	return func(q *QueryTracer) {
		q.slowThreshold = threshold
		q.logger = logger
	}
}

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) QueryTracerOption {
	return func(q *QueryTracer) {
		q.tracer = tp.Tracer(tracerName)
	}
}

// NewQueryTracer creates a QueryTracer.
func NewQueryTracer(opts ...QueryTracerOption) *QueryTracer {
	q := &QueryTracer{tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// SlowThreshold returns the slow-query threshold, zero when disabled.
func (q *QueryTracer) SlowThreshold() time.Duration {
	if q == nil || q.logger == nil {
		return 0
	}
	return q.slowThreshold
}

// Start opens a span named "db."+operation. Call the returned function with
// the operation's outcome once it completes:
//
//	ctx, end := r.queries.Start(ctx, "GetUserByUsername", selectUserSQL)
//	defer func() { end(err) }()
//
// A nil outcome ends the span unset; callers pass nil for results that are
// expected, such as a lookup that finds nothing.
func (q *QueryTracer) Start(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	tracer := otel.Tracer(tracerName)
	if q != nil && q.tracer != nil {
		tracer = q.tracer
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBOperation(operation),
			semconv.DBStatement(statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		threshold := q.SlowThreshold()
		if threshold <= 0 {
			return
		}
		elapsed := time.Since(start)
		if elapsed < threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.Duration("duration", elapsed),
			slog.Duration("threshold", threshold),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		q.logger.WarnContext(ctx, "slow query", attrs...)
	}
}
