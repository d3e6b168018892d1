// Package collector selects the candidate files for a compliance run.
package collector

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which files are candidates.
type Mode string

// Supported modes.
const (
	// ModeFull walks the whole project tree.
	ModeFull Mode = "full"
	// ModeDiff takes files changed on HEAD since it left a base branch.
	ModeDiff Mode = "diff"
	// ModeWorking takes unstaged and untracked changes.
	ModeWorking Mode = "working"
	// ModeStaged takes changes staged in the index.
	ModeStaged Mode = "staged"
)

// Sentinel errors for mode handling.
var (
	ErrUnknownMode        = errors.New("unknown mode")
	ErrBaseBranchRequired = errors.New("diff mode requires a base branch")
	ErrNotGitRepository   = errors.New("not a git repository")
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModeFull, ModeDiff, ModeWorking, ModeStaged}
}

// ParseMode converts a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))

	switch m {
	case ModeFull, ModeDiff, ModeWorking, ModeStaged:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want full, diff, working or staged)", ErrUnknownMode, s)
	}
}

// NeedsGit reports whether the mode reads repository state.
func (m Mode) NeedsGit() bool {
	return m != ModeFull
}

// Validate checks the mode and its base branch.
func (m Mode) Validate(baseBranch string) error {
	_, err := ParseMode(string(m))
	if err != nil {
		return err
	}

	if m == ModeDiff && strings.TrimSpace(baseBranch) == "" {
		return ErrBaseBranchRequired
	}

	return nil
}
