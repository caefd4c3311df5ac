package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/trailhead-labs/issuesync/internal/engine"
	"github.com/trailhead-labs/issuesync/internal/github"
	"github.com/trailhead-labs/issuesync/internal/types"
)

// syncEngine decorates an engine.Syncer with spans and metrics per pass.
type syncEngine struct {
	inner  engine.Syncer
	tracer trace.Tracer

	passes    metric.Int64Counter
	conflicts metric.Int64Counter
	duration  metric.Float64Histogram
}

// WrapEngine instruments a Syncer. Returns the inner Syncer unchanged
// when telemetry is disabled, so the hot path stays free of indirection.
func WrapEngine(inner engine.Syncer) engine.Syncer {
	if !Enabled() {
		return inner
	}

	meter := Meter("issuesync.engine")

	passes, err := meter.Int64Counter("issuesync.sync.passes",
		metric.WithDescription("Completed sync passes by direction and outcome"))
	if err != nil {
		return inner
	}
	conflicts, err := meter.Int64Counter("issuesync.sync.conflicts",
		metric.WithDescription("Sync conflicts detected"))
	if err != nil {
		return inner
	}
	duration, err := meter.Float64Histogram("issuesync.sync.duration",
		metric.WithDescription("Sync pass duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return inner
	}

	return &syncEngine{
		inner:     inner,
		tracer:    Tracer("issuesync.engine"),
		passes:    passes,
		conflicts: conflicts,
		duration:  duration,
	}
}

func (s *syncEngine) SyncExternalToCanonical(ctx context.Context, issueID string, ref github.Ref, opts types.SyncOptions) (*types.SyncResult, error) {
	return s.instrument(ctx, "sync.pull", issueID, ref, opts, func(ctx context.Context) (*types.SyncResult, error) {
		return s.inner.SyncExternalToCanonical(ctx, issueID, ref, opts)
	})
}

func (s *syncEngine) SyncCanonicalToExternal(ctx context.Context, issueID string, ref github.Ref, opts types.SyncOptions) (*types.SyncResult, error) {
	return s.instrument(ctx, "sync.push", issueID, ref, opts, func(ctx context.Context) (*types.SyncResult, error) {
		return s.inner.SyncCanonicalToExternal(ctx, issueID, ref, opts)
	})
}

func (s *syncEngine) instrument(ctx context.Context, op, issueID string, ref github.Ref, opts types.SyncOptions,
	fn func(context.Context) (*types.SyncResult, error)) (*types.SyncResult, error) {

	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("issue.id", issueID),
		attribute.String("github.ref", ref.String()),
		attribute.Bool("dry_run", opts.DryRun),
	))
	defer span.End()

	start := time.Now()
	result, err := fn(ctx)
	elapsed := time.Since(start).Seconds()

	attrs := []attribute.KeyValue{attribute.String("operation", op)}
	switch {
	case err != nil:
		attrs = append(attrs, attribute.String("outcome", "error"))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case result.ConflictDetected:
		attrs = append(attrs, attribute.String("outcome", "conflict"))
		s.conflicts.Add(ctx, 1, metric.WithAttributes(
			attribute.String("issue.id", issueID)))
		span.SetAttributes(attribute.String("conflict.reason", result.ConflictReason))
	case result.StatusChanged:
		attrs = append(attrs, attribute.String("outcome", "changed"),
			attribute.String("status.new", string(result.NewStatus)))
	default:
		attrs = append(attrs, attribute.String("outcome", "noop"))
	}

	s.passes.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.duration.Record(ctx, elapsed, metric.WithAttributes(attrs...))
	return result, err
}
