package telemetry

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Telemetry bundles the logger, tracer and metrics of one process.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry validates cfg and builds all three signals.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		logger.Close()
		return nil, err
	}
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		logger.Close()
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// WithContext attaches t and its logger to ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	return t.Logger.WithContext(ctx)
}

// FromTelemetryContext returns the Telemetry attached to ctx, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	t, _ := ctx.Value(telemetryContextKey{}).(*Telemetry)
	return t
}

// Shutdown flushes the tracer and closes the log file. The metrics server
// stops with the context it was started with.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Tracer.Shutdown(ctx), t.Logger.Close())
}

// Operation is one traced and timed unit of work.
type Operation struct {
	Ctx    context.Context
	Span   trace.Span
	Logger zerolog.Logger
	Timer  *Timer
}

// StartOperation opens a span named name and a logger tagged with the
// operation and trace IDs. Without telemetry in ctx the span is a no-op and
// the logger is whatever ctx carries.
func StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) *Operation {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		_, span := noop.NewTracerProvider().Tracer(name).Start(ctx, name)
		return &Operation{
			Ctx:    ctx,
			Span:   span,
			Logger: *FromContext(ctx).Zerolog(),
			Timer:  NewTimer(),
		}
	}

	ctx, span := tel.Tracer.StartSpan(ctx, name, attrs...)
	zctx := tel.Logger.Zerolog().With().Str("operation", name)
	if sc := span.SpanContext(); sc.IsValid() {
		zctx = zctx.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	logger := zctx.Logger()

	return &Operation{
		Ctx:    logger.WithContext(ctx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// SetResult records the merge list size and, on failure, the error kind on
// the span.
func (op *Operation) SetResult(entries int, errorKind string) {
	op.Span.SetAttributes(AttrEntries.Int(entries))
	if errorKind != "" {
		op.Span.SetAttributes(AttrErrorKind.String(errorKind))
	}
}

// End records the outcome on the span and closes it.
func (op *Operation) End(err error) {
	elapsed := op.Timer.Duration()
	if err != nil {
		RecordError(op.Span, err)
		op.Logger.Debug().Err(err).Dur("elapsed", elapsed).Msg("operation failed")
	} else {
		RecordSuccess(op.Span)
		op.Logger.Debug().Dur("elapsed", elapsed).Msg("operation finished")
	}
	op.Span.End()
}
