package gitlib

import (
	"fmt"
	"slices"

	git2go "github.com/libgit2/git2go/v34"
)

// Status flag groups.
const (
	worktreeChanged = git2go.StatusWtNew | git2go.StatusWtModified |
		git2go.StatusWtTypeChange | git2go.StatusWtRenamed
	indexChanged = git2go.StatusIndexNew | git2go.StatusIndexModified |
		git2go.StatusIndexTypeChange | git2go.StatusIndexRenamed
)

// WorkingChanges lists files modified in the working tree relative to the
// index, including untracked files. Paths are absolute and sorted.
func (r *Repository) WorkingChanges() ([]string, error) {
	return r.statusPaths(worktreeChanged, func(e git2go.StatusEntry) string {
		return e.IndexToWorkdir.NewFile.Path
	})
}

// StagedChanges lists files staged in the index relative to HEAD.
// Paths are absolute and sorted.
func (r *Repository) StagedChanges() ([]string, error) {
	return r.statusPaths(indexChanged, func(e git2go.StatusEntry) string {
		return e.HeadToIndex.NewFile.Path
	})
}

func (r *Repository) statusPaths(mask git2go.Status, pick func(git2go.StatusEntry) string) ([]string, error) {
	opts := &git2go.StatusOptions{
		Show: git2go.StatusShowIndexAndWorkdir,
		Flags: git2go.StatusOptIncludeUntracked |
			git2go.StatusOptRecurseUntrackedDirs |
			git2go.StatusOptRenamesHeadToIndex,
	}

	list, err := r.repo.StatusList(opts)
	if err != nil {
		return nil, fmt.Errorf("status list: %w", err)
	}
	defer list.Free()

	count, err := list.EntryCount()
	if err != nil {
		return nil, fmt.Errorf("status entry count: %w", err)
	}

	paths := make([]string, 0, count)

	for i := range count {
		entry, entryErr := list.ByIndex(i)
		if entryErr != nil {
			return nil, fmt.Errorf("status entry %d: %w", i, entryErr)
		}

		if entry.Status&mask == 0 {
			continue
		}

		if p := pick(entry); p != "" {
			paths = append(paths, p)
		}
	}

	slices.Sort(paths)

	return r.absolute(slices.Compact(paths)), nil
}
