// Package evidence reduces an external snapshot to named boolean facts and
// a single best-guess candidate lifecycle state.
//
// Extraction is deterministic and side-effect-free. Evidence is computed
// fresh on every sync pass and discarded afterwards; only the resulting
// decision is persisted.
package evidence

import (
	"sort"
	"strings"

	"github.com/trailhead-labs/issuesync/internal/github"
	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/types"
)

// Evidence maps predicate names to observed boolean facts. A predicate
// absent from the map is treated as false by the validator (fail-closed).
type Evidence map[lifecycle.Predicate]bool

// Snapshot returns the evidence as a plain string-keyed map for audit
// payloads.
func (e Evidence) Snapshot() map[string]bool {
	out := make(map[string]bool, len(e))
	for k, v := range e {
		out[string(k)] = v
	}
	return out
}

// specLabel is the label whose presence satisfies specification_exists.
const specLabel = "has-spec"

// Extract derives the full predicate map from an external snapshot.
func Extract(snap *github.Snapshot) Evidence {
	ev := Evidence{
		lifecycle.PredPRMerged:            snap.Merged,
		lifecycle.PredNoMergeConflicts:    snap.Mergeable != nil && *snap.Mergeable,
		lifecycle.PredCIChecksPass:        checksPass(snap.Checks),
		lifecycle.PredTestsPass:           testsPass(snap.Checks),
		lifecycle.PredCodeReviewApproved:  reviewApproved(snap.Reviews),
		lifecycle.PredSpecificationExists: hasLabel(snap.Labels, specLabel),
	}
	return ev
}

// checksPass reports whether CI is green: at least one check run, all of
// them concluded success or skipped. Zero check runs is false, not a
// vacuous pass.
func checksPass(checks []github.CheckRun) bool {
	if len(checks) == 0 {
		return false
	}
	for _, c := range checks {
		if c.Status != "completed" {
			return false
		}
		if c.Conclusion != github.CheckSuccess && c.Conclusion != github.CheckSkipped {
			return false
		}
	}
	return true
}

// testsPass reports whether at least one test-shaped check run succeeded.
func testsPass(checks []github.CheckRun) bool {
	for _, c := range checks {
		if !strings.Contains(strings.ToLower(c.Name), "test") {
			continue
		}
		if c.Status == "completed" && c.Conclusion == github.CheckSuccess {
			return true
		}
	}
	return false
}

// reviewApproved reports whether the latest review from at least one
// reviewer is an approval and no reviewer's latest review requests changes.
// Dismissed, commented, and pending reviews carry no verdict.
func reviewApproved(reviews []github.Review) bool {
	latest := make(map[string]github.Review)
	for _, r := range reviews {
		if r.User == nil {
			continue
		}
		prev, ok := latest[r.User.Login]
		if !ok || prev.SubmittedAt == nil ||
			(r.SubmittedAt != nil && r.SubmittedAt.After(*prev.SubmittedAt)) {
			latest[r.User.Login] = r
		}
	}

	approved := false
	for _, r := range latest {
		switch r.State {
		case github.ReviewApproved:
			approved = true
		case github.ReviewChangesRequested:
			return false
		}
	}
	return approved
}

func hasLabel(labels []github.Label, name string) bool {
	for _, l := range labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

// Candidate is the evidence-derived target state with its provenance.
type Candidate struct {
	State  types.LifecycleState
	Source types.StatusSource
}

// CandidateState derives the best-guess target state from a snapshot.
// Priority order, highest first:
//
//  1. PR merged -> DONE. Merge state is ground truth and is never
//     overridden by a stale label.
//  2. PR closed without merge -> KILLED.
//  3. CI green, review approved, PR open -> MERGE_READY.
//  4. First label (alphabetical order) that maps to a known state.
//  5. No opinion: ok=false, the caller must not change status.
//
// Label scan order is deliberately alphabetical rather than API order, so
// snapshots carrying conflicting lifecycle labels resolve deterministically.
func CandidateState(spec *lifecycle.Spec, snap *github.Snapshot, ev Evidence) (Candidate, bool) {
	if snap.Merged {
		if state, ok := spec.StateForExternalStatus("merged", types.SourceGitHubState); ok {
			return Candidate{State: state, Source: types.SourceGitHubState}, true
		}
	}

	if snap.State == "closed" && !snap.Merged {
		if state, ok := spec.StateForExternalStatus("closed", types.SourceGitHubState); ok {
			return Candidate{State: state, Source: types.SourceGitHubState}, true
		}
	}

	if snap.State == "open" && ev[lifecycle.PredCIChecksPass] && ev[lifecycle.PredCodeReviewApproved] {
		if state, ok := spec.StateForExternalStatus("ready_to_merge", types.SourceGitHubPRStatus); ok {
			return Candidate{State: state, Source: types.SourceGitHubPRStatus}, true
		}
	}

	names := github.LabelNames(snap.Labels)
	sort.Strings(names)
	for _, name := range names {
		if state, ok := spec.StateForExternalStatus(name, types.SourceGitHubLabel); ok {
			return Candidate{State: state, Source: types.SourceGitHubLabel}, true
		}
	}

	return Candidate{}, false
}
