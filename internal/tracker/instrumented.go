package tracker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/jparent/internal/telemetry"
)

const trackerScope = "github.com/steveyegge/jparent/tracker/remote"

// InstrumentedTracker wraps an IssueTracker with OTel tracing and metrics.
// Every remote call gets a client span and is counted in jparent.tracker.*
// metrics. Use Instrument to create one; it returns the original tracker
// unchanged when telemetry is disabled.
type InstrumentedTracker struct {
	IssueTracker
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// Instrument returns t decorated with OTel instrumentation.
// When telemetry is disabled, t is returned as-is.
func Instrument(t IssueTracker) IssueTracker {
	if !telemetry.Enabled() {
		return t
	}
	m := telemetry.Meter(trackerScope)
	ops, _ := m.Int64Counter("jparent.tracker.operations",
		metric.WithDescription("Total remote tracker calls"),
	)
	dur, _ := m.Float64Histogram("jparent.tracker.operation.duration",
		metric.WithDescription("Remote tracker call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("jparent.tracker.errors",
		metric.WithDescription("Total failed remote tracker calls"),
	)
	return &InstrumentedTracker{
		IssueTracker: t,
		tracer:       telemetry.Tracer(trackerScope),
		ops:          ops,
		dur:          dur,
		errs:         errs,
	}
}

// op starts a span and records a metric for the named remote operation.
func (t *InstrumentedTracker) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{
		attribute.String("jparent.tracker", t.Name()),
		attribute.String("jparent.tracker.operation", name),
	}, attrs...)
	ctx, span := t.tracer.Start(ctx, "tracker."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	t.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (t *InstrumentedTracker) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	t.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (t *InstrumentedTracker) FetchIssue(ctx context.Context, key string) (*TrackerIssue, error) {
	attrs := []attribute.KeyValue{attribute.String("jparent.issue.key", key)}
	ctx, span, start := t.op(ctx, "FetchIssue", attrs...)
	issue, err := t.IssueTracker.FetchIssue(ctx, key)
	t.done(ctx, span, start, err, attrs...)
	return issue, err
}

func (t *InstrumentedTracker) SetParent(ctx context.Context, key, parentKey string) error {
	attrs := []attribute.KeyValue{
		attribute.String("jparent.issue.key", key),
		attribute.String("jparent.parent.key", parentKey),
	}
	ctx, span, start := t.op(ctx, "SetParent", attrs...)
	err := t.IssueTracker.SetParent(ctx, key, parentKey)
	t.done(ctx, span, start, err, attrs...)
	return err
}
