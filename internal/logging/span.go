package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span is one handled request on a connection, tied to a trace that lives
// as long as the connection.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	failed bool
}

// StartSpan derives a child span from ctx, enriching the scoped logger with
// trace metadata. It returns the derived context and the span handle.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = uuid.NewString()
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	parentSpanID := SpanIDFromContext(ctx)
	spanID := uuid.NewString()

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail marks the span as having produced an error response.
func (s *Span) Fail() {
	if s != nil {
		s.failed = true
	}
}

// End finalizes the span and emits a completion log entry at debug level,
// or warn level when the span failed.
func (s *Span) End() {
	if s == nil {
		return
	}
	level := slog.LevelDebug
	if s.failed {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "span completed",
		slog.Duration("duration", time.Since(s.start)),
		slog.Bool("failed", s.failed),
	)
}
