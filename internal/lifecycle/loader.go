package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/trailhead-labs/issuesync/internal/types"
)

// ErrInvalidSpec is returned (wrapped) for any malformed or
// self-inconsistent lifecycle document. Loading fails fast: the first
// violation aborts the load, nothing is silently worked around.
var ErrInvalidSpec = errors.New("invalid lifecycle spec")

// supportedVersion is the only lifecycle document version this build reads.
const supportedVersion = 1

// document is the on-disk YAML shape of a lifecycle definition.
type document struct {
	Version     int                 `yaml:"version"`
	Initial     string              `yaml:"initial"`
	States      []stateDoc          `yaml:"states"`
	Transitions []transitionDoc     `yaml:"transitions"`
	Labels      map[string]labelDoc `yaml:"labels"`
	External    []externalStatusDoc `yaml:"external_status"`
}

type stateDoc struct {
	Name       string   `yaml:"name"`
	Terminal   bool     `yaml:"terminal"`
	Successors []string `yaml:"successors"`
}

type transitionDoc struct {
	From          string   `yaml:"from"`
	To            string   `yaml:"to"`
	Type          string   `yaml:"type"`
	Preconditions []string `yaml:"preconditions"`
	Description   string   `yaml:"description"`
}

type labelDoc struct {
	Primary    string   `yaml:"primary"`
	Additional []string `yaml:"additional"`
}

type externalStatusDoc struct {
	Raw    string `yaml:"raw"`
	Source string `yaml:"source"`
	State  string `yaml:"state"`
}

// Load parses and validates a lifecycle definition document.
func Load(r io.Reader) (*Spec, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read lifecycle spec: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpec, err)
	}

	return build(&doc)
}

// LoadFile loads a lifecycle definition from a YAML file.
func LoadFile(path string) (*Spec, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("failed to open lifecycle spec: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// build converts a parsed document into a validated Spec.
func build(doc *document) (*Spec, error) {
	if doc.Version != supportedVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (want %d)", ErrInvalidSpec, doc.Version, supportedVersion)
	}
	if len(doc.States) == 0 {
		return nil, fmt.Errorf("%w: no states declared", ErrInvalidSpec)
	}

	spec := &Spec{
		initial:     types.LifecycleState(doc.Initial),
		states:      make(map[types.LifecycleState]StateDef, len(doc.States)),
		transitions: make(map[transitionKey]Transition, len(doc.Transitions)),
		labels:      make(map[types.LifecycleState]LabelSet, len(doc.Labels)),
		inverse:     make(map[inverseKey]types.LifecycleState),
	}

	for _, sd := range doc.States {
		name := types.LifecycleState(sd.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: state with empty name", ErrInvalidSpec)
		}
		if _, dup := spec.states[name]; dup {
			return nil, fmt.Errorf("%w: duplicate state %q", ErrInvalidSpec, name)
		}
		def := StateDef{Name: name, Terminal: sd.Terminal}
		for _, succ := range sd.Successors {
			def.Successors = append(def.Successors, types.LifecycleState(succ))
		}
		spec.states[name] = def
	}

	if _, ok := spec.states[spec.initial]; !ok {
		return nil, fmt.Errorf("%w: initial state %q is not declared", ErrInvalidSpec, doc.Initial)
	}

	// Successor targets must be declared, and terminal states have none.
	for _, def := range spec.states {
		if def.Terminal && len(def.Successors) > 0 {
			return nil, fmt.Errorf("%w: terminal state %q declares successors", ErrInvalidSpec, def.Name)
		}
		for _, succ := range def.Successors {
			if _, ok := spec.states[succ]; !ok {
				return nil, fmt.Errorf("%w: state %q lists undeclared successor %q", ErrInvalidSpec, def.Name, succ)
			}
		}
	}

	for _, td := range doc.Transitions {
		t := Transition{
			From:        types.LifecycleState(td.From),
			To:          types.LifecycleState(td.To),
			Type:        types.TransitionType(td.Type),
			Description: td.Description,
		}
		fromDef, ok := spec.states[t.From]
		if !ok {
			return nil, fmt.Errorf("%w: transition from undeclared state %q", ErrInvalidSpec, td.From)
		}
		if _, ok := spec.states[t.To]; !ok {
			return nil, fmt.Errorf("%w: transition to undeclared state %q", ErrInvalidSpec, td.To)
		}
		if t.From == t.To {
			return nil, fmt.Errorf("%w: self-transition declared for %q", ErrInvalidSpec, td.From)
		}
		if !t.Type.IsValid() {
			return nil, fmt.Errorf("%w: transition %s->%s has unknown type %q", ErrInvalidSpec, td.From, td.To, td.Type)
		}
		if !containsState(fromDef.Successors, t.To) {
			return nil, fmt.Errorf("%w: transition %s->%s not in declared successors of %s", ErrInvalidSpec, td.From, td.To, td.From)
		}
		key := transitionKey{t.From, t.To}
		if _, dup := spec.transitions[key]; dup {
			return nil, fmt.Errorf("%w: duplicate transition %s->%s", ErrInvalidSpec, td.From, td.To)
		}
		seen := make(map[Predicate]bool, len(td.Preconditions))
		for _, p := range td.Preconditions {
			pred := Predicate(p)
			if !pred.IsKnown() {
				return nil, fmt.Errorf("%w: transition %s->%s references unknown predicate %q", ErrInvalidSpec, td.From, td.To, p)
			}
			if seen[pred] {
				return nil, fmt.Errorf("%w: transition %s->%s repeats predicate %q", ErrInvalidSpec, td.From, td.To, p)
			}
			seen[pred] = true
			t.Preconditions = append(t.Preconditions, pred)
		}
		spec.transitions[key] = t
	}

	// Every declared successor edge needs a transition carrying its rules;
	// an edge without one would be allowed structurally but ungoverned.
	for _, def := range spec.states {
		for _, succ := range def.Successors {
			if _, ok := spec.transitions[transitionKey{def.Name, succ}]; !ok {
				return nil, fmt.Errorf("%w: successor edge %s->%s has no transition", ErrInvalidSpec, def.Name, succ)
			}
		}
	}

	if err := checkReachability(spec); err != nil {
		return nil, err
	}

	for name, ld := range doc.Labels {
		state := types.LifecycleState(name)
		if _, ok := spec.states[state]; !ok {
			return nil, fmt.Errorf("%w: label mapping for undeclared state %q", ErrInvalidSpec, name)
		}
		if ld.Primary == "" {
			return nil, fmt.Errorf("%w: state %q has no primary label", ErrInvalidSpec, name)
		}
		spec.labels[state] = LabelSet{Primary: ld.Primary, Additional: ld.Additional}
	}

	// A reachable state without a label projection would make the
	// canonical->external direction fail at runtime; reject it at load.
	for name := range spec.states {
		if _, ok := spec.labels[name]; !ok {
			return nil, fmt.Errorf("%w: state %q has no label mapping", ErrInvalidSpec, name)
		}
	}

	// Inverse mapping: every label resolves back to its state.
	for state, ls := range spec.labels {
		for _, label := range ls.All() {
			key := inverseKey{label, types.SourceGitHubLabel}
			if prev, dup := spec.inverse[key]; dup && prev != state {
				return nil, fmt.Errorf("%w: label %q maps to both %s and %s", ErrInvalidSpec, label, prev, state)
			}
			spec.inverse[key] = state
		}
	}

	for _, ed := range doc.External {
		source := types.StatusSource(ed.Source)
		if !source.IsValid() || source == types.SourceManual {
			return nil, fmt.Errorf("%w: external status %q has invalid source %q", ErrInvalidSpec, ed.Raw, ed.Source)
		}
		state := types.LifecycleState(ed.State)
		if _, ok := spec.states[state]; !ok {
			return nil, fmt.Errorf("%w: external status %q maps to undeclared state %q", ErrInvalidSpec, ed.Raw, ed.State)
		}
		key := inverseKey{ed.Raw, source}
		if prev, dup := spec.inverse[key]; dup && prev != state {
			return nil, fmt.Errorf("%w: external status %q/%s maps to both %s and %s", ErrInvalidSpec, ed.Raw, ed.Source, prev, state)
		}
		spec.inverse[key] = state
	}

	return spec, nil
}

// checkReachability verifies every declared state is reachable from the
// initial state by following successor edges.
func checkReachability(spec *Spec) error {
	visited := map[types.LifecycleState]bool{spec.initial: true}
	queue := []types.LifecycleState{spec.initial}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, succ := range spec.states[cur].Successors {
			if !visited[succ] {
				visited[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	for name := range spec.states {
		if !visited[name] {
			return fmt.Errorf("%w: state %q is unreachable from %q", ErrInvalidSpec, name, spec.initial)
		}
	}
	return nil
}

func containsState(states []types.LifecycleState, target types.LifecycleState) bool {
	for _, s := range states {
		if s == target {
			return true
		}
	}
	return false
}
