package engine

import (
	"reflect"
	"testing"

	"github.com/trailhead-labs/issuesync/internal/evidence"
	"github.com/trailhead-labs/issuesync/internal/lifecycle"
	"github.com/trailhead-labs/issuesync/internal/types"
)

func TestValidateSelfTransition(t *testing.T) {
	spec, err := lifecycle.Default()
	if err != nil {
		t.Fatalf("loading default lifecycle: %v", err)
	}

	d := Validate(spec, types.StateImplementing, types.StateImplementing, nil)
	if !d.Allowed {
		t.Error("self-transition should always be allowed")
	}
	if !d.Structural {
		t.Error("self-transition should be structural")
	}
	if len(d.Missing) != 0 {
		t.Errorf("self-transition should report no missing predicates, got %v", d.Missing)
	}
}

func TestValidateNoSuchTransition(t *testing.T) {
	spec, err := lifecycle.Default()
	if err != nil {
		t.Fatalf("loading default lifecycle: %v", err)
	}

	// CREATED -> DONE is not an edge in the default lifecycle.
	d := Validate(spec, types.StateCreated, types.StateDone, evidence.Evidence{
		lifecycle.PredPRMerged: true,
	})
	if d.Allowed {
		t.Error("skip transition should not be allowed")
	}
	if d.Structural {
		t.Error("missing edge should be reported as non-structural")
	}
}

func TestValidatePreconditions(t *testing.T) {
	spec, err := lifecycle.Default()
	if err != nil {
		t.Fatalf("loading default lifecycle: %v", err)
	}

	tests := []struct {
		name        string
		ev          evidence.Evidence
		wantAllowed bool
		wantMissing []string
	}{
		{
			name: "all evidence present",
			ev: evidence.Evidence{
				lifecycle.PredCIChecksPass:       true,
				lifecycle.PredCodeReviewApproved: true,
				lifecycle.PredNoMergeConflicts:   true,
			},
			wantAllowed: true,
		},
		{
			name: "one predicate false",
			ev: evidence.Evidence{
				lifecycle.PredCIChecksPass:       true,
				lifecycle.PredCodeReviewApproved: true,
				lifecycle.PredNoMergeConflicts:   false,
			},
			wantAllowed: false,
			wantMissing: []string{"no_merge_conflicts"},
		},
		{
			name: "absent predicate counts as false",
			ev: evidence.Evidence{
				lifecycle.PredCIChecksPass: true,
			},
			wantAllowed: false,
			wantMissing: []string{"code_review_approved", "no_merge_conflicts"},
		},
		{
			name:        "nil evidence",
			ev:          nil,
			wantAllowed: false,
			wantMissing: []string{"ci_checks_pass", "code_review_approved", "no_merge_conflicts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Validate(spec, types.StateVerified, types.StateMergeReady, tt.ev)
			if d.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", d.Allowed, tt.wantAllowed)
			}
			if !d.Structural {
				t.Error("VERIFIED -> MERGE_READY should be structural")
			}
			got := d.MissingNames()
			if len(got) == 0 {
				got = nil
			}
			if !reflect.DeepEqual(got, tt.wantMissing) {
				t.Errorf("MissingNames() = %v, want %v", got, tt.wantMissing)
			}
		})
	}
}
