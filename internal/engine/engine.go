// Package engine implements the bidirectional sync orchestrator: the
// reconciliation passes that keep an issue's canonical lifecycle status
// and its external GitHub mirror converged.
//
// The engine is pull-based and holds no long-lived state: each call is a
// single bounded computation (load record, derive evidence, validate,
// persist or record a conflict, emit one audit event). It is safe to run
// concurrently for different issues; callers must serialize concurrent
// passes for the same issue themselves (see internal/issuelock).
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/trailhead-labs/issuesync/internal/evidence"
	"github.com/trailhead-labs/issuesync/internal/github"
	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/storage"
	"github.com/trailhead-labs/issuesync/internal/types"
)

// ErrConfig marks an operator configuration mistake (e.g. a canonical
// status with no label mapping). Fail-closed: never worked around.
var ErrConfig = errors.New("configuration error")

// SnapshotProvider fetches the external mirror's current condition.
// Implemented by *github.Client. A fetch failure fails the whole pass;
// the engine performs no retries and persists nothing partial.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context, ref github.Ref) (*github.Snapshot, error)
}

// LabelMutator replaces the external label set. Implemented by *github.Client.
type LabelMutator interface {
	SetLabels(ctx context.Context, ref github.Ref, labels []string) error
}

// Deps are the injected collaborators. The engine performs no network or
// SQL I/O of its own.
type Deps struct {
	Snapshots SnapshotProvider
	Records   storage.RecordStore
	Audit     storage.AuditSink
	Conflicts storage.ConflictStore
	Labels    LabelMutator
}

// Syncer is the engine surface exposed to callers, extracted as an
// interface so the telemetry wrapper can decorate it.
type Syncer interface {
	SyncExternalToCanonical(ctx context.Context, issueID string, ref github.Ref, opts types.SyncOptions) (*types.SyncResult, error)
	SyncCanonicalToExternal(ctx context.Context, issueID string, ref github.Ref, opts types.SyncOptions) (*types.SyncResult, error)
}

// Engine orchestrates reconciliation passes against a loaded lifecycle spec.
type Engine struct {
	spec *lifecycle.Spec
	deps Deps
}

// New creates an engine. The spec must already be loaded and validated;
// it is shared read-only across all passes.
func New(spec *lifecycle.Spec, deps Deps) *Engine {
	return &Engine{spec: spec, deps: deps}
}

// SyncExternalToCanonical reconciles the external mirror into the
// canonical record.
//
// A detected conflict is not a failure: the pass completed, it just could
// not progress the state. Hard failures (missing record, transport error,
// store error) abort before any audit event is written.
func (e *Engine) SyncExternalToCanonical(ctx context.Context, issueID string, ref github.Ref, opts types.SyncOptions) (*types.SyncResult, error) {
	rec, err := e.deps.Records.GetRecord(ctx, issueID)
	if err != nil {
		return nil, err
	}

	result := &types.SyncResult{
		IssueID:           issueID,
		Direction:         types.DirectionExternalToCanonical,
		OldStatus:         rec.Status,
		NewStatus:         rec.Status,
		TransitionAllowed: true,
		DryRun:            opts.DryRun,
	}

	// Manual protection outranks everything, including evidence: a
	// manually-set status is never overwritten by a poll unless the
	// caller explicitly overrides.
	if rec.StatusSource == types.SourceManual && !opts.AllowManualOverride {
		event := e.newEvent(issueID, rec, opts)
		event.ConflictReason = "status_source is manual; external sync skipped"
		auditID, err := e.audit(ctx, event, opts.DryRun)
		if err != nil {
			return nil, err
		}
		result.Success = true
		result.AuditEventID = auditID
		return result, nil
	}

	snap, err := e.deps.Snapshots.FetchSnapshot(ctx, ref)
	if err != nil {
		return nil, err
	}

	ev := evidence.Extract(snap)
	ev[lifecycle.PredReasonProvided] = opts.Reason != ""

	cand, hasOpinion := evidence.CandidateState(e.spec, snap, ev)

	// No evidence-based opinion, or the external side already agrees:
	// touch only the bookkeeping fields so repeated polls stay cheap.
	if !hasOpinion || cand.State == rec.Status {
		if !opts.DryRun {
			if err := e.deps.Records.UpdateRecord(ctx, issueID, map[string]interface{}{
				storage.FieldExternalStatusRaw:       snap.RawStatus(),
				storage.FieldExternalStatusUpdatedAt: snap.FetchedAt,
			}); err != nil {
				return nil, err
			}
		}
		event := e.newEvent(issueID, rec, opts)
		event.Evidence = ev.Snapshot()
		auditID, err := e.audit(ctx, event, opts.DryRun)
		if err != nil {
			return nil, err
		}
		result.Success = true
		result.AuditEventID = auditID
		return result, nil
	}

	decision := Validate(e.spec, rec.Status, cand.State, ev)
	if !decision.Allowed {
		kind := types.ConflictPreconditionFailed
		reason := fmt.Sprintf("preconditions not met for %s -> %s: missing %s",
			rec.Status, cand.State, strings.Join(decision.MissingNames(), ", "))
		if !decision.Structural {
			kind = types.ConflictTransitionNotAllowed
			reason = fmt.Sprintf("no transition from %s to %s", rec.Status, cand.State)
		}

		event := e.newEvent(issueID, rec, opts)
		event.NewStatus = cand.State
		event.TransitionAllowed = false
		event.Evidence = ev.Snapshot()
		event.ConflictDetected = true
		event.ConflictReason = reason

		conflict := &types.SyncConflict{
			IssueID:     issueID,
			Kind:        kind,
			FromState:   rec.Status,
			ToState:     cand.State,
			Description: reason,
		}

		auditID, conflictID, err := e.recordConflict(ctx, event, conflict, opts.DryRun)
		if err != nil {
			return nil, err
		}

		result.Success = true
		result.NewStatus = rec.Status // unchanged
		result.TransitionAllowed = false
		result.ConflictDetected = true
		result.ConflictReason = reason
		result.ConflictID = conflictID
		result.AuditEventID = auditID
		return result, nil
	}

	if !opts.DryRun {
		if err := e.deps.Records.UpdateRecord(ctx, issueID, map[string]interface{}{
			storage.FieldStatus:                  cand.State,
			storage.FieldStatusSource:            cand.Source,
			storage.FieldExternalStatusRaw:       snap.RawStatus(),
			storage.FieldExternalStatusUpdatedAt: snap.FetchedAt,
		}); err != nil {
			return nil, err
		}
	}

	event := e.newEvent(issueID, rec, opts)
	event.NewStatus = cand.State
	event.StatusChanged = true
	event.Evidence = ev.Snapshot()
	auditID, err := e.audit(ctx, event, opts.DryRun)
	if err != nil {
		return nil, err
	}

	result.Success = true
	result.NewStatus = cand.State
	result.StatusChanged = true
	result.AuditEventID = auditID
	return result, nil
}

// SyncCanonicalToExternal pushes the canonical status out as a label set.
//
// The external label set is replaced wholesale with the projection of the
// current status, keeping it a deterministic function of canonical state.
// A status without a label mapping is an operator mistake (ErrConfig),
// not a runtime conflict.
func (e *Engine) SyncCanonicalToExternal(ctx context.Context, issueID string, ref github.Ref, opts types.SyncOptions) (*types.SyncResult, error) {
	rec, err := e.deps.Records.GetRecord(ctx, issueID)
	if err != nil {
		return nil, err
	}

	ls, ok := e.spec.LabelsForState(rec.Status)
	if !ok {
		return nil, fmt.Errorf("%w: no label mapping for state %s", ErrConfig, rec.Status)
	}

	if !opts.DryRun {
		if err := e.deps.Labels.SetLabels(ctx, ref, ls.All()); err != nil {
			return nil, err
		}
	}

	event := e.newEvent(issueID, rec, opts)
	event.Direction = types.DirectionCanonicalToExternal
	auditID, err := e.audit(ctx, event, opts.DryRun)
	if err != nil {
		return nil, err
	}

	return &types.SyncResult{
		IssueID:           issueID,
		Direction:         types.DirectionCanonicalToExternal,
		Success:           true,
		OldStatus:         rec.Status,
		NewStatus:         rec.Status,
		TransitionAllowed: true,
		AuditEventID:      auditID,
		DryRun:            opts.DryRun,
	}, nil
}

// newEvent builds the baseline audit event for a pass; callers adjust the
// decision fields before persisting.
func (e *Engine) newEvent(issueID string, rec *types.CanonicalRecord, opts types.SyncOptions) *types.SyncAuditEvent {
	return &types.SyncAuditEvent{
		IssueID:   issueID,
		Direction: types.DirectionExternalToCanonical,
		OldStatus: rec.Status,
		NewStatus: rec.Status,
		// Self-state events are allowed no-ops unless a caller overrides.
		TransitionAllowed: true,
		DryRun:            opts.DryRun,
		RunID:             opts.RunID,
		Actor:             opts.Actor,
	}
}

// audit persists one audit event, unless the pass is a dry run: a dry run
// reports the decision but writes nothing at all.
func (e *Engine) audit(ctx context.Context, event *types.SyncAuditEvent, dryRun bool) (int64, error) {
	if dryRun {
		return 0, nil
	}
	id, err := e.deps.Audit.RecordEvent(ctx, event)
	if err != nil {
		return 0, fmt.Errorf("failed to record audit event: %w", err)
	}
	return id, nil
}
