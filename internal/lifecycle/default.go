package lifecycle

import (
	_ "embed"
	"strings"
)

// defaultDoc is the built-in lifecycle definition, used when no custom
// document is configured.
//
//go:embed lifecycle.yaml
var defaultDoc string

// Default returns the built-in lifecycle spec.
func Default() (*Spec, error) {
	return Load(strings.NewReader(defaultDoc))
}

// DefaultDocument returns the raw YAML of the built-in lifecycle
// definition, for `issuesync spec show` and for seeding a custom file.
func DefaultDocument() string {
	return defaultDoc
}
