package report

import (
	"os"

	"github.com/mattn/go-isatty"
)

// ColorEnabled reports whether colored text may be written to f. NO_COLOR
// in the environment turns color off.
func ColorEnabled(f *os.File, disabled bool) bool {
	if disabled || os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
