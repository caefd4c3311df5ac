// Package types defines core data structures for the issuesync engine.
package types

import (
	"fmt"
	"time"
)

// LifecycleState identifies one node in the canonical status state machine.
//
// The set of built-in states matches the embedded lifecycle definition.
// Custom lifecycle documents may declare additional states; those are
// validated at spec load time, not here.
type LifecycleState string

// Built-in lifecycle states.
const (
	StateCreated      LifecycleState = "CREATED"
	StateSpecReady    LifecycleState = "SPEC_READY"
	StateImplementing LifecycleState = "IMPLEMENTING"
	StateVerified     LifecycleState = "VERIFIED"
	StateMergeReady   LifecycleState = "MERGE_READY"
	StateHold         LifecycleState = "HOLD"
	StateDone         LifecycleState = "DONE"
	StateKilled       LifecycleState = "KILLED"
)

// IsBuiltin reports whether the state is one of the built-in constants.
// States declared only in a custom lifecycle document return false.
func (s LifecycleState) IsBuiltin() bool {
	switch s {
	case StateCreated, StateSpecReady, StateImplementing, StateVerified,
		StateMergeReady, StateHold, StateDone, StateKilled:
		return true
	}
	return false
}

// StatusSource records the provenance of the canonical status value.
type StatusSource string

// Status source constants.
const (
	SourceManual         StatusSource = "manual"
	SourceGitHubLabel    StatusSource = "github_label"
	SourceGitHubPRStatus StatusSource = "github_pr_status"
	SourceGitHubState    StatusSource = "github_state"
)

// IsValid checks if the status source value is valid.
func (s StatusSource) IsValid() bool {
	switch s {
	case SourceManual, SourceGitHubLabel, SourceGitHubPRStatus, SourceGitHubState:
		return true
	}
	return false
}

// TransitionType categorizes how a lifecycle transition is initiated.
type TransitionType string

// Transition type constants.
const (
	TransitionForward        TransitionType = "forward"
	TransitionManualOverride TransitionType = "manual_override"
	TransitionRecovery       TransitionType = "recovery"
)

// IsValid checks if the transition type value is valid.
func (t TransitionType) IsValid() bool {
	switch t {
	case TransitionForward, TransitionManualOverride, TransitionRecovery:
		return true
	}
	return false
}

// ConflictKind categorizes why a sync pass could not progress the status.
type ConflictKind string

// Conflict kind constants.
const (
	ConflictTransitionNotAllowed ConflictKind = "TRANSITION_NOT_ALLOWED"
	ConflictPreconditionFailed   ConflictKind = "PRECONDITION_FAILED"
)

// IsValid checks if the conflict kind value is valid.
func (k ConflictKind) IsValid() bool {
	switch k {
	case ConflictTransitionNotAllowed, ConflictPreconditionFailed:
		return true
	}
	return false
}

// SyncDirection identifies which way a reconciliation pass flows.
type SyncDirection string

// Sync direction constants.
const (
	DirectionExternalToCanonical SyncDirection = "external_to_canonical"
	DirectionCanonicalToExternal SyncDirection = "canonical_to_external"
)

// CanonicalRecord is the persisted canonical view of one issue's lifecycle.
type CanonicalRecord struct {
	IssueID                 string         `json:"issue_id"`
	Status                  LifecycleState `json:"status"`
	StatusSource            StatusSource   `json:"status_source"`
	ExternalRef             string         `json:"external_ref,omitempty"` // e.g. "acme/widgets#42"
	ExternalStatusRaw       *string        `json:"external_status_raw,omitempty"`
	ExternalStatusUpdatedAt time.Time      `json:"external_status_updated_at"`
	CreatedAt               time.Time      `json:"created_at"`
	UpdatedAt               time.Time      `json:"updated_at"`
}

// Validate checks if the record has valid field values.
func (r *CanonicalRecord) Validate() error {
	if r.IssueID == "" {
		return fmt.Errorf("issue_id is required")
	}
	if r.Status == "" {
		return fmt.Errorf("status is required")
	}
	if !r.StatusSource.IsValid() {
		return fmt.Errorf("invalid status source: %s", r.StatusSource)
	}
	return nil
}

// SyncAuditEvent is an append-only record of one reconciliation decision.
// Events are never mutated or deleted after creation.
type SyncAuditEvent struct {
	ID                int64           `json:"id,omitempty"`
	IssueID           string          `json:"issue_id"`
	Direction         SyncDirection   `json:"direction"`
	OldStatus         LifecycleState  `json:"old_status"`
	NewStatus         LifecycleState  `json:"new_status"`
	StatusChanged     bool            `json:"status_changed"`
	TransitionAllowed bool            `json:"transition_allowed"`
	Evidence          map[string]bool `json:"evidence,omitempty"`
	ConflictDetected  bool            `json:"conflict_detected"`
	ConflictReason    string          `json:"conflict_reason,omitempty"`
	DryRun            bool            `json:"dry_run"`
	RunID             string          `json:"run_id,omitempty"`
	Actor             string          `json:"actor,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// SyncConflict is materialized when a sync pass detects a state the
// lifecycle rules cannot adjudicate. Conflicts are resolved out of band
// by an operator, never by the engine.
type SyncConflict struct {
	ID          string         `json:"id,omitempty"`
	IssueID     string         `json:"issue_id"`
	Kind        ConflictKind   `json:"kind"`
	FromState   LifecycleState `json:"from_state"`
	ToState     LifecycleState `json:"to_state"`
	Description string         `json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
}

// SyncOptions carries caller-supplied knobs for a single sync pass.
type SyncOptions struct {
	DryRun              bool   // compute and audit the decision without persisting mutations
	AllowManualOverride bool   // permit external evidence to overwrite a manually-set status
	RunID               string // caller-supplied idempotency/run identifier
	Actor               string // who triggered the pass (for the audit trail)
	Reason              string // operator reason; satisfies the reason_provided predicate
}

// SyncResult reports the outcome of one reconciliation pass.
type SyncResult struct {
	IssueID           string         `json:"issue_id"`
	Direction         SyncDirection  `json:"direction"`
	Success           bool           `json:"success"`
	OldStatus         LifecycleState `json:"old_status"`
	NewStatus         LifecycleState `json:"new_status"`
	StatusChanged     bool           `json:"status_changed"`
	TransitionAllowed bool           `json:"transition_allowed"`
	ConflictDetected  bool           `json:"conflict_detected"`
	ConflictReason    string         `json:"conflict_reason,omitempty"`
	ConflictID        string         `json:"conflict_id,omitempty"`
	AuditEventID      int64          `json:"audit_event_id,omitempty"`
	DryRun            bool           `json:"dry_run"`
}
