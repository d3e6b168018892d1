package collector

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/guidelint/pkg/gitlib"
)

// gitDir is never walked.
const gitDir = ".git"

// Request describes one collection.
type Request struct {
	// Root is the project root. Returned paths are relative to it.
	Root       string
	Mode       Mode
	BaseBranch string
}

// Collector filters project files through include and exclude globs.
type Collector struct {
	include      []string
	exclude      []string
	skipVendored bool
}

// Option configures a Collector.
type Option func(*Collector)

// WithSkipVendored drops files enry classifies as vendored or generated
// dependencies (node_modules, vendor, third_party, ...).
func WithSkipVendored(skip bool) Option {
	return func(c *Collector) { c.skipVendored = skip }
}

// New validates the glob patterns and builds a collector. An empty include
// list matches every file.
func New(include, exclude []string, opts ...Option) (*Collector, error) {
	for _, p := range slices.Concat(include, exclude) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", p, doublestar.ErrBadPattern)
		}
	}

	c := &Collector{
		include: slices.Clone(include),
		exclude: slices.Clone(exclude),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Collect returns candidate files as slash-separated paths relative to
// req.Root, sorted and de-duplicated.
func (c *Collector) Collect(ctx context.Context, req Request) ([]string, error) {
	err := req.Mode.Validate(req.BaseBranch)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if req.Mode == ModeFull {
		return c.walk(ctx, root)
	}

	return c.fromGit(ctx, root, req)
}

func (c *Collector) walk(ctx context.Context, root string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}

			// Unreadable subtrees are skipped like unreadable files.
			return nil
		}

		ctxErr := ctx.Err()
		if ctxErr != nil {
			return ctxErr
		}

		if path == root {
			return nil
		}

		rel := filepath.ToSlash(mustRel(root, path))

		if d.IsDir() {
			if c.prunable(rel) {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		if c.Match(rel) {
			files = append(files, rel)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	slices.Sort(files)

	return files, nil
}

func (c *Collector) fromGit(ctx context.Context, root string, req Request) ([]string, error) {
	repo, err := gitlib.OpenRepository(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotGitRepository, root, err)
	}
	defer repo.Free()

	var changed []string

	switch req.Mode {
	case ModeDiff:
		changed, err = repo.ChangedSince(req.BaseBranch)
	case ModeWorking:
		changed, err = repo.WorkingChanges()
	case ModeStaged:
		changed, err = repo.StagedChanges()
	case ModeFull:
		return nil, fmt.Errorf("%w: full mode does not read git", ErrUnknownMode)
	}

	if err != nil {
		return nil, fmt.Errorf("collect %s changes: %w", req.Mode, err)
	}

	ctxErr := ctx.Err()
	if ctxErr != nil {
		return nil, ctxErr
	}

	root = resolveSymlinks(root)
	files := make([]string, 0, len(changed))

	for _, abs := range changed {
		rel, relErr := filepath.Rel(root, resolveSymlinks(abs))
		if relErr != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}

		info, statErr := os.Stat(abs)
		if statErr != nil || !info.Mode().IsRegular() {
			continue
		}

		rel = filepath.ToSlash(rel)

		if c.excludedDir(rel) {
			continue
		}

		if c.Match(rel) {
			files = append(files, rel)
		}
	}

	slices.Sort(files)

	return slices.Compact(files), nil
}

// Match reports whether a project-relative slash path passes the filters.
func (c *Collector) Match(rel string) bool {
	if c.skipVendored && enry.IsVendor(rel) {
		return false
	}

	if matchAny(c.exclude, rel) {
		return false
	}

	return len(c.include) == 0 || matchAny(c.include, rel)
}

// prunable reports whether a whole directory can be skipped during a walk.
func (c *Collector) prunable(rel string) bool {
	if filepath.Base(rel) == gitDir {
		return true
	}

	if c.skipVendored && enry.IsVendor(rel+"/") {
		return true
	}

	return matchAny(c.exclude, rel)
}

// excludedDir reports whether any parent directory of rel would be pruned.
func (c *Collector) excludedDir(rel string) bool {
	for dir := filepath.ToSlash(filepath.Dir(rel)); dir != "." && dir != "/"; dir = filepath.ToSlash(filepath.Dir(dir)) {
		if c.prunable(dir) {
			return true
		}
	}

	return false
}

func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, rel) {
			return true
		}
	}

	return false
}

func mustRel(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}

	return rel
}

func resolveSymlinks(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}

	return resolved
}
