// Package gitlib wraps the libgit2 operations guidelint needs to pick
// candidate files from a repository.
package gitlib

import (
	"errors"
	"fmt"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrBareRepository is returned when a repository has no working directory.
var ErrBareRepository = errors.New("repository has no working directory")

// Repository wraps a libgit2 repository.
type Repository struct {
	repo *git2go.Repository
	path string
}

// OpenRepository opens the repository containing path, searching parent
// directories like git does.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepositoryExtended(path, 0, "")
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	if repo.IsBare() {
		repo.Free()

		return nil, fmt.Errorf("open repository %s: %w", path, ErrBareRepository)
	}

	return &Repository{repo: repo, path: path}, nil
}

// IsRepository reports whether path lies inside a non-bare git repository.
func IsRepository(path string) bool {
	repo, err := OpenRepository(path)
	if err != nil {
		return false
	}

	repo.Free()

	return true
}

// Path returns the path the repository was opened from.
func (r *Repository) Path() string {
	return r.path
}

// Workdir returns the absolute working directory without a trailing separator.
func (r *Repository) Workdir() string {
	return filepath.Clean(r.repo.Workdir())
}

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the hex id of the commit HEAD points to.
func (r *Repository) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return ref.Target().String(), nil
}

// absolute joins repository-relative slash paths onto the working directory.
func (r *Repository) absolute(rel []string) []string {
	root := r.Workdir()
	out := make([]string, 0, len(rel))

	for _, p := range rel {
		out = append(out, filepath.Join(root, filepath.FromSlash(p)))
	}

	return out
}
