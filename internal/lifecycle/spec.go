// Package lifecycle implements the transition spec model: the set of
// lifecycle states, the directed transitions between them, the evidence
// predicates each transition requires, and the mapping between lifecycle
// states and the external tracker's label vocabulary.
//
// A Spec is loaded once per process (from the embedded default or a
// user-supplied YAML document), validated fail-fast, and treated as
// immutable afterwards. It is safe for concurrent use.
package lifecycle

import (
	"sort"

	"github.com/trailhead-labs/issuesync/internal/types"
)

// Predicate names a boolean evidence fact required by a transition.
// The vocabulary is closed: spec documents referencing a predicate
// outside this set are rejected at load time.
type Predicate string

// Recognized evidence predicates.
const (
	PredTestsPass           Predicate = "tests_pass"
	PredCIChecksPass        Predicate = "ci_checks_pass"
	PredCodeReviewApproved  Predicate = "code_review_approved"
	PredPRMerged            Predicate = "pr_merged"
	PredNoMergeConflicts    Predicate = "no_merge_conflicts"
	PredSpecificationExists Predicate = "specification_exists"
	PredReasonProvided      Predicate = "reason_provided"
)

// IsKnown reports whether the predicate is in the recognized vocabulary.
func (p Predicate) IsKnown() bool {
	switch p {
	case PredTestsPass, PredCIChecksPass, PredCodeReviewApproved, PredPRMerged,
		PredNoMergeConflicts, PredSpecificationExists, PredReasonProvided:
		return true
	}
	return false
}

// KnownPredicates returns the full predicate vocabulary in sorted order.
func KnownPredicates() []Predicate {
	return []Predicate{
		PredCIChecksPass,
		PredCodeReviewApproved,
		PredNoMergeConflicts,
		PredPRMerged,
		PredReasonProvided,
		PredSpecificationExists,
		PredTestsPass,
	}
}

// StateDef describes one lifecycle state.
type StateDef struct {
	Name       types.LifecycleState
	Terminal   bool
	Successors []types.LifecycleState
}

// Transition describes one permitted lifecycle change.
type Transition struct {
	From          types.LifecycleState
	To            types.LifecycleState
	Type          types.TransitionType
	Preconditions []Predicate
	Description   string
}

// LabelSet is the external label projection of one lifecycle state.
type LabelSet struct {
	Primary    string
	Additional []string
}

// All returns the full label set, primary first.
func (l LabelSet) All() []string {
	out := make([]string, 0, 1+len(l.Additional))
	out = append(out, l.Primary)
	out = append(out, l.Additional...)
	return out
}

// transitionKey identifies a transition by its endpoints.
type transitionKey struct {
	from types.LifecycleState
	to   types.LifecycleState
}

// inverseKey identifies an external raw status within a provenance source.
type inverseKey struct {
	raw    string
	source types.StatusSource
}

// Spec is the immutable, validated lifecycle model.
type Spec struct {
	initial     types.LifecycleState
	states      map[types.LifecycleState]StateDef
	transitions map[transitionKey]Transition
	labels      map[types.LifecycleState]LabelSet
	inverse     map[inverseKey]types.LifecycleState
}

// Initial returns the designated initial state.
func (s *Spec) Initial() types.LifecycleState {
	return s.initial
}

// States returns all declared states in sorted order.
func (s *Spec) States() []types.LifecycleState {
	out := make([]types.LifecycleState, 0, len(s.states))
	for name := range s.states {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// State returns the definition of a declared state.
func (s *Spec) State(name types.LifecycleState) (StateDef, bool) {
	def, ok := s.states[name]
	return def, ok
}

// TransitionAllowed reports whether a transition from one state to another
// is structurally permitted. Self-transitions are not modeled here; the
// validator treats them as idempotent no-ops before consulting the spec.
func (s *Spec) TransitionAllowed(from, to types.LifecycleState) bool {
	_, ok := s.transitions[transitionKey{from, to}]
	return ok
}

// Transition returns the declared transition for a (from, to) pair.
func (s *Spec) Transition(from, to types.LifecycleState) (Transition, bool) {
	t, ok := s.transitions[transitionKey{from, to}]
	return t, ok
}

// Transitions returns all declared transitions, sorted by (from, to) for
// deterministic iteration.
func (s *Spec) Transitions() []Transition {
	out := make([]Transition, 0, len(s.transitions))
	for _, t := range s.transitions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// LabelsForState returns the external label projection of a state.
func (s *Spec) LabelsForState(state types.LifecycleState) (LabelSet, bool) {
	ls, ok := s.labels[state]
	return ls, ok
}

// StateForExternalStatus resolves a raw external status value (a label
// name or an issue/PR state string) to a lifecycle state. Matching is
// exact and case-sensitive; unmapped values return false, which callers
// must treat as "no opinion", never as an error.
func (s *Spec) StateForExternalStatus(raw string, source types.StatusSource) (types.LifecycleState, bool) {
	state, ok := s.inverse[inverseKey{raw, source}]
	return state, ok
}
