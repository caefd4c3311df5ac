package ui

import (
	"os"

	"golang.org/x/term"
)

// interactive is detected once at startup; piped output gets plain text.
var interactive = term.IsTerminal(int(os.Stdout.Fd()))

// Interactive reports whether stdout is a terminal.
func Interactive() bool {
	return interactive
}

// SetInteractive overrides TTY detection, for tests and --no-color style
// callers.
func SetInteractive(on bool) {
	interactive = on
}
