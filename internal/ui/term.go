package ui

import (
	"os"

	"golang.org/x/term"
)

// ColorEnabled reports whether colored output should be written to f:
// f is a terminal and NO_COLOR is not set.
func ColorEnabled(f *os.File) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
