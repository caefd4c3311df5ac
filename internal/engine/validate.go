package engine

import (
	"sort"

	"github.com/trailhead-labs/issuesync/internal/evidence"
	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/types"
)

// Decision is the outcome of validating one proposed transition.
type Decision struct {
	// Allowed reports whether the transition may be applied.
	Allowed bool
	// Structural is false when no transition exists for the (from, to)
	// pair at all; the caller surfaces that as TRANSITION_NOT_ALLOWED
	// rather than PRECONDITION_FAILED.
	Structural bool
	// Missing lists the unmet precondition predicates, sorted.
	Missing []lifecycle.Predicate
}

// Validate checks whether a transition from one state to another is
// permitted by the spec under the given evidence.
//
// A self-transition is an idempotent no-op and always allowed. For real
// transitions, every precondition on the matched transition must hold;
// a predicate absent from the evidence map counts as false. There is no
// "unknown, therefore skip": missing information blocks the transition.
func Validate(spec *lifecycle.Spec, from, to types.LifecycleState, ev evidence.Evidence) Decision {
	if from == to {
		return Decision{Allowed: true, Structural: true}
	}

	tr, ok := spec.Transition(from, to)
	if !ok {
		return Decision{Allowed: false, Structural: false}
	}

	var missing []lifecycle.Predicate
	for _, pred := range tr.Preconditions {
		if !ev[pred] {
			missing = append(missing, pred)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	return Decision{Allowed: len(missing) == 0, Structural: true, Missing: missing}
}

// MissingNames returns the missing predicates as plain strings, for
// conflict descriptions and results.
func (d Decision) MissingNames() []string {
	out := make([]string, len(d.Missing))
	for i, p := range d.Missing {
		out[i] = string(p)
	}
	return out
}
