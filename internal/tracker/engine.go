package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/jparent/internal/telemetry"
	"github.com/steveyegge/jparent/internal/types"
)

const engineScope = "github.com/steveyegge/jparent/tracker"

// PlannedItem pairs a record with the decision made for it.
type PlannedItem struct {
	Record   types.IssueRecord `json:"record"`
	Decision types.Decision    `json:"decision"`
}

// Classify decides what to do with one record. A record is skipped only when
// its exported parent key is present and equals target exactly; an absent or
// blank parent key means the link must be applied. Matching is case-sensitive
// and never consults the remote tracker.
func Classify(rec types.IssueRecord, target string) types.Decision {
	if current, ok := rec.CurrentParentKey(); ok && current == target {
		return types.DecisionSkip
	}
	return types.DecisionApply
}

// Plan classifies every record in input order.
func Plan(records []types.IssueRecord, target string) []PlannedItem {
	items := make([]PlannedItem, 0, len(records))
	for _, rec := range records {
		items = append(items, PlannedItem{Record: rec, Decision: Classify(rec, target)})
	}
	return items
}

// Engine reconciles parent links between a batch of exported records and an
// external tracker.
type Engine struct {
	Tracker IssueTracker

	// Callbacks for UI feedback (optional).
	OnMessage func(msg string)
	OnWarning func(msg string)
	// OnItem is called once per record, in input order, as soon as the
	// record reaches a terminal outcome.
	OnItem func(item ItemResult)

	tracer trace.Tracer
	items  metric.Int64Counter
}

// NewEngine creates a new engine for the given tracker.
func NewEngine(tracker IssueTracker) *Engine {
	items, _ := telemetry.Meter(engineScope).Int64Counter("jparent.items",
		metric.WithDescription("Records processed, by outcome"),
	)
	return &Engine{
		Tracker: tracker,
		tracer:  telemetry.Tracer(engineScope),
		items:   items,
	}
}

// Resolve confirms that the target parent exists on the tracker. It performs
// exactly one FetchIssue call and modifies nothing.
func (e *Engine) Resolve(ctx context.Context, target string) (*TrackerIssue, error) {
	ctx, span := e.startSpan(ctx, "jparent.resolve", attribute.String("jparent.target", target))
	defer span.End()

	issue, err := e.Tracker.FetchIssue(ctx, target)
	if err == nil && issue == nil {
		err = fmt.Errorf("issue %s not found", target)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &TargetResolutionError{Target: target, Err: err}
	}
	return issue, nil
}

// Run performs a complete reconciliation: verify the target parent, then
// classify and apply every record sequentially in input order.
//
// Run returns an error only when nothing was attempted: ErrNoIssues for an
// empty batch, or a *TargetResolutionError when the target parent could not
// be verified. Per-record failures are reported in the Result.
func (e *Engine) Run(ctx context.Context, records []types.IssueRecord, opts Options) (*Result, error) {
	if len(records) == 0 {
		return nil, ErrNoIssues
	}

	ctx, span := e.startSpan(ctx, "jparent.run",
		attribute.String("jparent.target", opts.Target),
		attribute.Bool("jparent.dry_run", opts.DryRun),
		attribute.Int("jparent.records", len(records)),
	)
	defer span.End()

	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	result := &Result{
		RunID:     runID,
		Tracker:   e.Tracker.Name(),
		Target:    opts.Target,
		DryRun:    opts.DryRun,
		Items:     make([]ItemResult, 0, len(records)),
		StartedAt: time.Now().UTC(),
	}
	span.SetAttributes(attribute.String("jparent.run_id", result.RunID))

	e.msg("Verifying parent issue %s...", opts.Target)
	parent, err := e.Resolve(ctx, opts.Target)
	if err != nil {
		span.SetStatus(codes.Error, "target resolution failed")
		return nil, err
	}
	if parent != nil && parent.Title != "" {
		e.msg("Parent issue found: %s - %s", opts.Target, parent.Title)
	} else {
		e.msg("Parent issue found: %s", opts.Target)
	}

	cancelled := false
	for _, rec := range records {
		if !cancelled && ctx.Err() != nil {
			cancelled = true
			e.warn("Run interrupted: %v; remaining records will be marked failed", ctx.Err())
		}
		item := e.apply(ctx, rec, opts)
		if err := result.Stats.Record(item.Outcome); err != nil {
			// apply always returns a terminal outcome
			return nil, err
		}
		result.Items = append(result.Items, item)
		if e.OnItem != nil {
			e.OnItem(item)
		}
	}

	result.FinishedAt = time.Now().UTC()
	span.SetAttributes(
		attribute.Int("jparent.applied", result.Stats.Applied),
		attribute.Int("jparent.skipped", result.Stats.Skipped),
		attribute.Int("jparent.failed", result.Stats.Failed),
	)
	if result.Stats.Failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d record(s) failed", result.Stats.Failed))
	}
	return result, nil
}

// apply drives one record to a terminal outcome.
func (e *Engine) apply(ctx context.Context, rec types.IssueRecord, opts Options) ItemResult {
	item := ItemResult{
		Record:   rec,
		Decision: Classify(rec, opts.Target),
		Outcome:  types.OutcomePending,
	}

	ctx, span := e.startSpan(ctx, "jparent.apply",
		attribute.String("jparent.key", rec.Key),
		attribute.String("jparent.decision", string(item.Decision)),
	)
	defer func() {
		span.SetAttributes(attribute.String("jparent.outcome", string(item.Outcome)))
		span.End()
		if e.items != nil {
			e.items.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(item.Outcome))))
		}
	}()

	switch {
	case item.Decision == types.DecisionSkip:
		item.Outcome = types.OutcomeSkipped
	case opts.DryRun:
		item.Outcome = types.OutcomeApplied
		item.WouldApply = true
	default:
		if err := ctx.Err(); err != nil {
			item.fail(rec.Key, err)
			break
		}
		if err := e.Tracker.SetParent(ctx, rec.Key, opts.Target); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			item.fail(rec.Key, err)
			break
		}
		item.Outcome = types.OutcomeApplied
	}
	return item
}

func (item *ItemResult) fail(key string, err error) {
	var applyErr *ItemApplyError
	if !errors.As(err, &applyErr) {
		applyErr = &ItemApplyError{Key: key, Err: err}
	}
	item.Outcome = types.OutcomeFailed
	item.Err = applyErr
	item.Error = applyErr.Error()
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := e.tracer
	if tracer == nil {
		tracer = telemetry.Tracer(engineScope)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Helper methods for callbacks
func (e *Engine) msg(format string, args ...interface{}) {
	if e.OnMessage != nil {
		e.OnMessage(fmt.Sprintf(format, args...))
	}
}

func (e *Engine) warn(format string, args ...interface{}) {
	if e.OnWarning != nil {
		e.OnWarning(fmt.Sprintf(format, args...))
	}
}
