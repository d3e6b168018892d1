package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Tests here mutate package state and do not run in parallel.

func TestApply_FillsUnsetFields(t *testing.T) {
	saveAndRestore(t, "dev", unknown, unknown)

	apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "v1.4.0", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
	assert.Equal(t, "guidelint v1.4.0 (commit: abc123, built: 2026-01-02T03:04:05Z)", String())
}

func TestApply_KeepsLinkerValues(t *testing.T) {
	saveAndRestore(t, "v2.0.0", "fromldflags", unknown)

	apply(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})

	assert.Equal(t, "v2.0.0", Version)
	assert.Equal(t, "fromldflags", Commit)
	assert.Equal(t, unknown, Date)
}

func saveAndRestore(t *testing.T, v, c, d string) {
	t.Helper()

	oldV, oldC, oldD := Version, Commit, Date
	Version, Commit, Date = v, c, d

	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })
}
