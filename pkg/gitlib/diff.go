package gitlib

import (
	"errors"
	"fmt"
	"slices"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrUnknownRevision is returned when a base branch cannot be resolved.
var ErrUnknownRevision = errors.New("unknown revision")

// ChangedSince lists files added, modified, renamed or retyped on HEAD since
// it diverged from base (git diff base...HEAD). Deleted files are omitted.
// Paths are absolute and sorted.
func (r *Repository) ChangedSince(base string) ([]string, error) {
	baseCommit, err := r.resolveCommit(base)
	if err != nil {
		return nil, err
	}
	defer baseCommit.Free()

	headRef, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("get HEAD: %w", err)
	}
	defer headRef.Free()

	headCommit, err := r.repo.LookupCommit(headRef.Target())
	if err != nil {
		return nil, fmt.Errorf("lookup HEAD commit: %w", err)
	}
	defer headCommit.Free()

	mergeBase, err := r.repo.MergeBase(baseCommit.Id(), headCommit.Id())
	if err != nil {
		return nil, fmt.Errorf("merge base of %s and HEAD: %w", base, err)
	}

	mbCommit, err := r.repo.LookupCommit(mergeBase)
	if err != nil {
		return nil, fmt.Errorf("lookup merge base: %w", err)
	}
	defer mbCommit.Free()

	oldTree, err := mbCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("merge base tree: %w", err)
	}
	defer oldTree.Free()

	newTree, err := headCommit.Tree()
	if err != nil {
		return nil, fmt.Errorf("HEAD tree: %w", err)
	}
	defer newTree.Free()

	opts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return nil, fmt.Errorf("get diff options: %w", err)
	}

	diff, err := r.repo.DiffTreeToTree(oldTree, newTree, &opts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}

	defer func() {
		// Free errors are non-actionable in cleanup.
		_ = diff.Free()
	}()

	numDeltas, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	paths := make([]string, 0, numDeltas)

	for i := range numDeltas {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta: %w", deltaErr)
		}

		if delta.Status == git2go.DeltaDeleted {
			continue
		}

		paths = append(paths, delta.NewFile.Path)
	}

	slices.Sort(paths)

	return r.absolute(slices.Compact(paths)), nil
}

func (r *Repository) resolveCommit(rev string) (*git2go.Commit, error) {
	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownRevision, rev, err)
	}
	defer obj.Free()

	peeled, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a commit: %w", ErrUnknownRevision, rev, err)
	}
	defer peeled.Free()

	commit, err := r.repo.LookupCommit(peeled.Id())
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownRevision, rev, err)
	}

	return commit, nil
}
