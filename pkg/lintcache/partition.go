package lintcache

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/guidelint/pkg/fingerprint"
)

// Change says why a file needs analysis.
type Change int

// Change kinds.
const (
	ChangeNone Change = iota
	ChangeNew
	ChangeModified
	ChangeGuidelines
	ChangeUnreadable
)

// String returns the change name.
func (c Change) String() string {
	switch c {
	case ChangeNone:
		return "unchanged"
	case ChangeNew:
		return "new"
	case ChangeModified:
		return "modified"
	case ChangeGuidelines:
		return "guidelines"
	case ChangeUnreadable:
		return "unreadable"
	default:
		return "unknown"
	}
}

// Partition splits candidates into files with a valid cached verdict and
// files needing analysis. Both lists keep candidate order.
type Partition struct {
	Valid []string
	Stale []string
	// Hashes holds the current fingerprint of every readable candidate.
	Hashes map[string]string
	// Changes holds the reason for every stale candidate.
	Changes map[string]Change
}

// Count returns how many stale files have the given change kind.
func (p Partition) Count(kind Change) int {
	n := 0

	for _, c := range p.Changes {
		if c == kind {
			n++
		}
	}

	return n
}

// PartitionFiles fingerprints each candidate (relative to root) and checks it
// against the cache. Files that cannot be hashed are stale; the reader skips
// them later. Hashing runs on a bounded worker group.
func PartitionFiles(ctx context.Context, root string, files []string, c Cache, guidelinesHash string) (Partition, error) {
	hashes := make([]string, len(files))
	ok := make([]bool, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, f := range files {
		g.Go(func() error {
			err := gctx.Err()
			if err != nil {
				return err
			}

			h, hashErr := fingerprint.File(filepath.Join(root, filepath.FromSlash(f)))
			if hashErr != nil {
				return nil //nolint:nilerr // unreadable files are reported as stale.
			}

			hashes[i] = h
			ok[i] = true

			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return Partition{}, fmt.Errorf("fingerprint candidates: %w", err)
	}

	p := Partition{
		Valid:   make([]string, 0, len(files)),
		Stale:   make([]string, 0, len(files)),
		Hashes:  make(map[string]string, len(files)),
		Changes: make(map[string]Change),
	}

	for i, f := range files {
		if !ok[i] {
			p.Stale = append(p.Stale, f)
			p.Changes[f] = ChangeUnreadable

			continue
		}

		p.Hashes[f] = hashes[i]

		change := classify(c, f, hashes[i], guidelinesHash)
		if change == ChangeNone {
			p.Valid = append(p.Valid, f)

			continue
		}

		p.Stale = append(p.Stale, f)
		p.Changes[f] = change
	}

	return p, nil
}

func classify(c Cache, path, fileHash, guidelinesHash string) Change {
	e, exists := c.Entries[path]

	switch {
	case !exists:
		return ChangeNew
	case e.FileHash != fileHash:
		return ChangeModified
	case e.GuidelinesHash != guidelinesHash:
		return ChangeGuidelines
	default:
		return ChangeNone
	}
}
