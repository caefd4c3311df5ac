package github

import "testing"

func TestParseRef(t *testing.T) {
	tests := []struct {
		input   string
		want    Ref
		wantErr bool
	}{
		{"acme/widgets#42", Ref{Owner: "acme", Repo: "widgets", Number: 42}, false},
		{"a/b#1", Ref{Owner: "a", Repo: "b", Number: 1}, false},
		{"acme/widgets", Ref{}, true},
		{"acme#42", Ref{}, true},
		{"acme/widgets#0", Ref{}, true},
		{"acme/widgets#-3", Ref{}, true},
		{"acme/widgets#abc", Ref{}, true},
		{"acme/wid/gets#42", Ref{}, true},
		{"", Ref{}, true},
	}

	for _, tt := range tests {
		got, err := ParseRef(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseRef(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}
}

func TestRefString(t *testing.T) {
	ref := Ref{Owner: "acme", Repo: "widgets", Number: 42}
	if got := ref.String(); got != "acme/widgets#42" {
		t.Errorf("String() = %q, want acme/widgets#42", got)
	}
}

func TestSnapshotRawStatus(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"merged wins over closed state", Snapshot{State: "closed", Merged: true}, "merged"},
		{"closed without merge", Snapshot{State: "closed"}, "closed"},
		{"open", Snapshot{State: "open"}, "open"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.RawStatus(); got != tt.want {
				t.Errorf("RawStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLabelNames(t *testing.T) {
	labels := []Label{{Name: "bug"}, {Name: "lifecycle:implementing"}}
	names := LabelNames(labels)
	if len(names) != 2 || names[0] != "bug" || names[1] != "lifecycle:implementing" {
		t.Errorf("LabelNames() = %v", names)
	}
}
