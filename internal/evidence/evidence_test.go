package evidence

import (
	"testing"
	"time"

	"github.com/trailhead-labs/issuesync/internal/github"
	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/types"
)

func defaultSpec(t *testing.T) *lifecycle.Spec {
	t.Helper()
	spec, err := lifecycle.Default()
	if err != nil {
		t.Fatalf("lifecycle.Default() error = %v", err)
	}
	return spec
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }

func TestExtractPredicates(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		snap github.Snapshot
		want map[lifecycle.Predicate]bool
	}{
		{
			name: "green open PR with approval",
			snap: github.Snapshot{
				State:     "open",
				Mergeable: boolPtr(true),
				Labels:    []github.Label{{Name: "has-spec"}},
				Reviews: []github.Review{
					{User: &github.User{Login: "alice"}, State: github.ReviewApproved, SubmittedAt: timePtr(base)},
				},
				Checks: []github.CheckRun{
					{Name: "unit-tests", Status: "completed", Conclusion: "success"},
					{Name: "lint", Status: "completed", Conclusion: "skipped"},
				},
			},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredPRMerged:            false,
				lifecycle.PredNoMergeConflicts:    true,
				lifecycle.PredCIChecksPass:        true,
				lifecycle.PredTestsPass:           true,
				lifecycle.PredCodeReviewApproved:  true,
				lifecycle.PredSpecificationExists: true,
			},
		},
		{
			name: "nil mergeable is fail-closed",
			snap: github.Snapshot{State: "open", Mergeable: nil},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredNoMergeConflicts: false,
			},
		},
		{
			name: "zero check runs is not a pass",
			snap: github.Snapshot{State: "open", Checks: nil},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredCIChecksPass: false,
				lifecycle.PredTestsPass:    false,
			},
		},
		{
			name: "incomplete check blocks ci_checks_pass",
			snap: github.Snapshot{
				State: "open",
				Checks: []github.CheckRun{
					{Name: "unit-tests", Status: "in_progress"},
				},
			},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredCIChecksPass: false,
			},
		},
		{
			name: "changes requested overrides earlier approval",
			snap: github.Snapshot{
				State: "open",
				Reviews: []github.Review{
					{User: &github.User{Login: "alice"}, State: github.ReviewApproved, SubmittedAt: timePtr(base)},
					{User: &github.User{Login: "alice"}, State: github.ReviewChangesRequested, SubmittedAt: timePtr(base.Add(time.Hour))},
				},
			},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredCodeReviewApproved: false,
			},
		},
		{
			name: "re-approval after changes requested",
			snap: github.Snapshot{
				State: "open",
				Reviews: []github.Review{
					{User: &github.User{Login: "alice"}, State: github.ReviewChangesRequested, SubmittedAt: timePtr(base)},
					{User: &github.User{Login: "alice"}, State: github.ReviewApproved, SubmittedAt: timePtr(base.Add(time.Hour))},
				},
			},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredCodeReviewApproved: true,
			},
		},
		{
			name: "one changes-requested vetoes another reviewer's approval",
			snap: github.Snapshot{
				State: "open",
				Reviews: []github.Review{
					{User: &github.User{Login: "alice"}, State: github.ReviewApproved, SubmittedAt: timePtr(base)},
					{User: &github.User{Login: "bob"}, State: github.ReviewChangesRequested, SubmittedAt: timePtr(base)},
				},
			},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredCodeReviewApproved: false,
			},
		},
		{
			name: "merged PR",
			snap: github.Snapshot{State: "closed", Merged: true},
			want: map[lifecycle.Predicate]bool{
				lifecycle.PredPRMerged: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Extract(&tt.snap)
			for pred, want := range tt.want {
				if got := ev[pred]; got != want {
					t.Errorf("Extract()[%s] = %v, want %v", pred, got, want)
				}
			}
		})
	}
}

func TestCandidateStateMergePrecedence(t *testing.T) {
	spec := defaultSpec(t)

	// Merged with a stale open-state label present: merge wins.
	snap := &github.Snapshot{
		State:  "closed",
		Merged: true,
		Labels: []github.Label{{Name: "lifecycle:implementing"}},
	}
	cand, ok := CandidateState(spec, snap, Extract(snap))
	if !ok {
		t.Fatal("CandidateState() has no opinion, want DONE")
	}
	if cand.State != types.StateDone {
		t.Errorf("State = %q, want DONE", cand.State)
	}
	if cand.Source != types.SourceGitHubState {
		t.Errorf("Source = %q, want github_state", cand.Source)
	}
}

func TestCandidateStateClosedWithoutMerge(t *testing.T) {
	spec := defaultSpec(t)

	snap := &github.Snapshot{State: "closed", Merged: false}
	cand, ok := CandidateState(spec, snap, Extract(snap))
	if !ok || cand.State != types.StateKilled {
		t.Fatalf("CandidateState() = (%+v, %v), want KILLED", cand, ok)
	}
}

func TestCandidateStateReadyToMerge(t *testing.T) {
	spec := defaultSpec(t)

	snap := &github.Snapshot{
		State: "open",
		Reviews: []github.Review{
			{User: &github.User{Login: "alice"}, State: github.ReviewApproved},
		},
		Checks: []github.CheckRun{
			{Name: "unit-tests", Status: "completed", Conclusion: "success"},
		},
	}
	cand, ok := CandidateState(spec, snap, Extract(snap))
	if !ok || cand.State != types.StateMergeReady {
		t.Fatalf("CandidateState() = (%+v, %v), want MERGE_READY", cand, ok)
	}
	if cand.Source != types.SourceGitHubPRStatus {
		t.Errorf("Source = %q, want github_pr_status", cand.Source)
	}
}

func TestCandidateStateFromLabelsAlphabetical(t *testing.T) {
	spec := defaultSpec(t)

	// Two mapped lifecycle labels in reverse alphabetical API order; the
	// scan must pick the alphabetically first one regardless.
	snap := &github.Snapshot{
		State: "open",
		Labels: []github.Label{
			{Name: "lifecycle:verified"},
			{Name: "lifecycle:hold"},
		},
	}
	cand, ok := CandidateState(spec, snap, Extract(snap))
	if !ok {
		t.Fatal("CandidateState() has no opinion, want HOLD")
	}
	if cand.State != types.StateHold {
		t.Errorf("State = %q, want HOLD (lifecycle:hold sorts before lifecycle:verified)", cand.State)
	}
	if cand.Source != types.SourceGitHubLabel {
		t.Errorf("Source = %q, want github_label", cand.Source)
	}
}

func TestCandidateStateNoOpinion(t *testing.T) {
	spec := defaultSpec(t)

	snap := &github.Snapshot{
		State:  "open",
		Labels: []github.Label{{Name: "bug"}, {Name: "backend"}},
	}
	if cand, ok := CandidateState(spec, snap, Extract(snap)); ok {
		t.Errorf("CandidateState() = %+v, want no opinion", cand)
	}
}

func TestEvidenceSnapshot(t *testing.T) {
	ev := Evidence{lifecycle.PredPRMerged: true, lifecycle.PredTestsPass: false}
	snap := ev.Snapshot()
	if len(snap) != 2 || !snap["pr_merged"] || snap["tests_pass"] {
		t.Errorf("Snapshot() = %v", snap)
	}
}
