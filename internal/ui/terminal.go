package ui

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// forceNoColor is set by the --no-color flag.
var forceNoColor bool

// SetNoColor disables all color output for the rest of the run.
func SetNoColor(v bool) { forceNoColor = v }

// ShouldUseColor reports whether output should be colorized. NO_COLOR and
// --no-color always win; CLICOLOR_FORCE=1 forces color even without a TTY.
func ShouldUseColor() bool {
	if forceNoColor {
		return false
	}
	if _, set := os.LookupEnv("NO_COLOR"); set {
		return false
	}
	if termenv.EnvColorProfile() == termenv.Ascii {
		return false
	}
	if os.Getenv("CLICOLOR_FORCE") != "" && os.Getenv("CLICOLOR_FORCE") != "0" {
		return true
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
