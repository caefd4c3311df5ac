package types

import (
	"testing"
	"time"
)

func TestStatusSourceIsValid(t *testing.T) {
	valid := []StatusSource{SourceManual, SourceGitHubLabel, SourceGitHubPRStatus, SourceGitHubState}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", s)
		}
	}
	for _, s := range []StatusSource{"", "github", "MANUAL"} {
		if s.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", s)
		}
	}
}

func TestConflictKindIsValid(t *testing.T) {
	if !ConflictTransitionNotAllowed.IsValid() || !ConflictPreconditionFailed.IsValid() {
		t.Error("built-in conflict kinds must be valid")
	}
	if ConflictKind("MERGE_FAILED").IsValid() {
		t.Error("unknown conflict kind must be invalid")
	}
}

func TestTransitionTypeIsValid(t *testing.T) {
	for _, tt := range []TransitionType{TransitionForward, TransitionManualOverride, TransitionRecovery} {
		if !tt.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", tt)
		}
	}
	if TransitionType("FORWARD").IsValid() {
		t.Error("transition types are lowercase; uppercase must be invalid")
	}
}

func TestLifecycleStateIsBuiltin(t *testing.T) {
	builtin := []LifecycleState{
		StateCreated, StateSpecReady, StateImplementing, StateVerified,
		StateMergeReady, StateHold, StateDone, StateKilled,
	}
	for _, s := range builtin {
		if !s.IsBuiltin() {
			t.Errorf("IsBuiltin(%q) = false, want true", s)
		}
	}
	if LifecycleState("TRIAGED").IsBuiltin() {
		t.Error("custom state must not be builtin")
	}
}

func TestCanonicalRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		record  CanonicalRecord
		wantErr bool
	}{
		{
			name: "valid record",
			record: CanonicalRecord{
				IssueID:      "is-1",
				Status:       StateImplementing,
				StatusSource: SourceGitHubLabel,
				CreatedAt:    time.Now(),
			},
			wantErr: false,
		},
		{
			name:    "missing issue id",
			record:  CanonicalRecord{Status: StateCreated, StatusSource: SourceManual},
			wantErr: true,
		},
		{
			name:    "missing status",
			record:  CanonicalRecord{IssueID: "is-1", StatusSource: SourceManual},
			wantErr: true,
		},
		{
			name:    "bad status source",
			record:  CanonicalRecord{IssueID: "is-1", Status: StateCreated, StatusSource: "webhook"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.record.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
