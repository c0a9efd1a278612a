package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/GabrijelGordic/Suzeraj/pkg/tracing"
)

const tracerName = "github.com/GabrijelGordic/Suzeraj/pkg/database"

var queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "market_store_query_duration_seconds",
	Help:    "Store operation latency by backend, operation and outcome.",
	Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
}, []string{"system", "operation", "result"})

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging warns about store operations taking threshold or
// longer. A zero threshold or a nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

// TraceQuery opens a client span named db.<operation> and returns a
// finisher to call with the operation's outcome:
//
//	ctx, end := database.TraceQuery(ctx, "postgresql", "SearchListings", query)
//	defer func() { end(err) }()
//
// The finisher also records latency and applies slow query logging.
func TraceQuery(ctx context.Context, system, operation, statement string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", system),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)
	start := time.Now()

	return ctx, func(err error) {
		elapsed := time.Since(start)
		tracing.End(span, err)

		result := "ok"
		if err != nil {
			result = "error"
		}
		queryDuration.WithLabelValues(system, operation, result).Observe(elapsed.Seconds())

		if slow := slowQueries.Load(); slow != nil && elapsed >= slow.threshold {
			slow.report(ctx, system, operation, statement, elapsed, err)
		}
	}
}

func (s *slowQueryLog) report(ctx context.Context, system, operation, statement string, elapsed time.Duration, err error) {
	attrs := []slog.Attr{
		slog.String("system", system),
		slog.String("operation", operation),
		slog.String("statement", statement),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelWarn, "slow query detected", attrs...)
}
