// Package lintcache stores per-file verdicts keyed by content fingerprint so
// unchanged files are not re-analyzed.
//
// An entry is valid for a file only while both the file's fingerprint and the
// guidelines fingerprint match what was recorded.
package lintcache

import (
	"maps"
	"slices"
	"time"

	"github.com/Sumatoshi-tech/guidelint/pkg/model"
)

// Entry is the recorded verdict for one file.
type Entry struct {
	FileHash       string            `json:"file_hash"       yaml:"file_hash"`
	GuidelinesHash string            `json:"guidelines_hash" yaml:"guidelines_hash"`
	Violations     []model.Violation `json:"violations"      yaml:"violations"`
	Timestamp      int64             `json:"timestamp"       yaml:"timestamp"`
}

// NewEntry creates an entry owning a copy of violations.
func NewEntry(fileHash, guidelinesHash string, violations []model.Violation, at time.Time) Entry {
	owned := make([]model.Violation, len(violations))
	copy(owned, violations)

	return Entry{
		FileHash:       fileHash,
		GuidelinesHash: guidelinesHash,
		Violations:     owned,
		Timestamp:      at.Unix(),
	}
}

// ValidFor reports whether the entry still describes a file with fileHash
// checked against guidelines with guidelinesHash.
func (e Entry) ValidFor(fileHash, guidelinesHash string) bool {
	return e.FileHash == fileHash && e.GuidelinesHash == guidelinesHash
}

// Cache maps project-relative paths to entries.
type Cache struct {
	GuidelinesHash string           `json:"guidelines_hash" yaml:"guidelines_hash"`
	Entries        map[string]Entry `json:"entries"         yaml:"entries"`
}

// NewCache returns an empty cache with its own entry map.
func NewCache() Cache {
	return Cache{Entries: make(map[string]Entry)}
}

// Get returns the entry for path.
func (c *Cache) Get(path string) (Entry, bool) {
	e, ok := c.Entries[path]

	return e, ok
}

// Put replaces the entry for path.
func (c *Cache) Put(path string, e Entry) {
	if c.Entries == nil {
		c.Entries = make(map[string]Entry)
	}

	c.Entries[path] = e
}

// Prune drops every entry whose path keep rejects and returns how many were dropped.
func (c *Cache) Prune(keep func(path string) bool) int {
	dropped := 0

	for path := range c.Entries {
		if !keep(path) {
			delete(c.Entries, path)

			dropped++
		}
	}

	return dropped
}

// Paths returns cached paths in lexical order.
func (c *Cache) Paths() []string {
	return slices.Sorted(maps.Keys(c.Entries))
}

// Stats summarizes a cache.
type Stats struct {
	Entries    int
	Current    int
	Stale      int
	Violations int
	Oldest     time.Time
	Newest     time.Time
}

// Stats counts entries, splitting them by whether they were recorded against
// guidelinesHash.
func (c *Cache) Stats(guidelinesHash string) Stats {
	var s Stats

	for _, e := range c.Entries {
		s.Entries++
		s.Violations += len(e.Violations)

		if e.GuidelinesHash == guidelinesHash {
			s.Current++
		} else {
			s.Stale++
		}

		at := time.Unix(e.Timestamp, 0)

		if s.Oldest.IsZero() || at.Before(s.Oldest) {
			s.Oldest = at
		}

		if at.After(s.Newest) {
			s.Newest = at
		}
	}

	return s
}

// MaterializeCached returns cached results for files, in input order,
// omitting files without an entry.
func MaterializeCached(files []string, c Cache) []model.FileResult {
	results := make([]model.FileResult, 0, len(files))

	for _, f := range files {
		e, ok := c.Entries[f]
		if !ok {
			continue
		}

		results = append(results, model.NewFileResult(f, e.Violations))
	}

	return results
}
