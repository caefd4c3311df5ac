package lifecycle

import (
	"testing"

	"github.com/trailhead-labs/issuesync/internal/types"
)

func TestDefaultLoads(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if spec.Initial() != types.StateCreated {
		t.Errorf("Initial() = %q, want CREATED", spec.Initial())
	}
	if got := len(spec.States()); got != 8 {
		t.Errorf("len(States()) = %d, want 8", got)
	}
}

func TestDefaultTerminalStatesHaveNoExits(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	for _, terminal := range []types.LifecycleState{types.StateDone, types.StateKilled} {
		def, ok := spec.State(terminal)
		if !ok {
			t.Fatalf("State(%q) not found", terminal)
		}
		if !def.Terminal {
			t.Errorf("State(%q).Terminal = false, want true", terminal)
		}
		for _, target := range spec.States() {
			if target == terminal {
				continue
			}
			if spec.TransitionAllowed(terminal, target) {
				t.Errorf("TransitionAllowed(%s, %s) = true, want false", terminal, target)
			}
		}
	}
}

func TestDefaultForwardPath(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	path := []types.LifecycleState{
		types.StateCreated, types.StateSpecReady, types.StateImplementing,
		types.StateVerified, types.StateMergeReady, types.StateDone,
	}
	for i := 0; i < len(path)-1; i++ {
		if !spec.TransitionAllowed(path[i], path[i+1]) {
			t.Errorf("TransitionAllowed(%s, %s) = false, want true", path[i], path[i+1])
		}
	}

	// Skipping a forward step is not allowed.
	if spec.TransitionAllowed(types.StateCreated, types.StateMergeReady) {
		t.Error("TransitionAllowed(CREATED, MERGE_READY) = true, want false")
	}
}

func TestDefaultMergeReadyPreconditions(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	tr, ok := spec.Transition(types.StateVerified, types.StateMergeReady)
	if !ok {
		t.Fatal("Transition(VERIFIED, MERGE_READY) not found")
	}
	want := map[Predicate]bool{
		PredCIChecksPass:       true,
		PredCodeReviewApproved: true,
		PredNoMergeConflicts:   true,
	}
	if len(tr.Preconditions) != len(want) {
		t.Fatalf("Preconditions = %v, want 3 predicates", tr.Preconditions)
	}
	for _, p := range tr.Preconditions {
		if !want[p] {
			t.Errorf("unexpected precondition %q", p)
		}
	}
}

func TestLabelsForState(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	ls, ok := spec.LabelsForState(types.StateHold)
	if !ok {
		t.Fatal("LabelsForState(HOLD) not found")
	}
	if ls.Primary != "lifecycle:hold" {
		t.Errorf("Primary = %q, want lifecycle:hold", ls.Primary)
	}
	if len(ls.Additional) != 1 || ls.Additional[0] != "do-not-merge" {
		t.Errorf("Additional = %v, want [do-not-merge]", ls.Additional)
	}
	if all := ls.All(); len(all) != 2 || all[0] != "lifecycle:hold" {
		t.Errorf("All() = %v, want primary first", all)
	}

	if _, ok := spec.LabelsForState("NOPE"); ok {
		t.Error("LabelsForState(NOPE) found a mapping, want none")
	}
}

func TestStateForExternalStatus(t *testing.T) {
	spec, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}

	tests := []struct {
		raw       string
		source    types.StatusSource
		wantState types.LifecycleState
		wantOK    bool
	}{
		{"lifecycle:implementing", types.SourceGitHubLabel, types.StateImplementing, true},
		{"in-work", types.SourceGitHubLabel, types.StateImplementing, true},
		{"wontfix", types.SourceGitHubLabel, types.StateKilled, true},
		{"merged", types.SourceGitHubState, types.StateDone, true},
		{"closed", types.SourceGitHubState, types.StateKilled, true},
		// Exact case-sensitive match only.
		{"Lifecycle:Implementing", types.SourceGitHubLabel, "", false},
		{"merged", types.SourceGitHubLabel, "", false},
		{"random-label", types.SourceGitHubLabel, "", false},
	}

	for _, tt := range tests {
		got, ok := spec.StateForExternalStatus(tt.raw, tt.source)
		if ok != tt.wantOK || got != tt.wantState {
			t.Errorf("StateForExternalStatus(%q, %s) = (%q, %v), want (%q, %v)",
				tt.raw, tt.source, got, ok, tt.wantState, tt.wantOK)
		}
	}
}
