package lintcache

import (
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/guidelint/pkg/persist"
)

// DefaultBasename is the cache file name without extension.
const DefaultBasename = ".guidelint-cache"

// ErrCorrupt is returned when the cache file exists but cannot be decoded.
// Recover by clearing the cache.
var ErrCorrupt = errors.New("cache file is corrupt")

// Store reads and writes the cache file.
type Store struct {
	file *persist.Store[Cache]
}

// NewStore creates a store for basename in dir.
func NewStore(dir, basename string, codec persist.Codec) *Store {
	return &Store{file: persist.NewStore[Cache](dir, basename, codec)}
}

// Path returns the cache file path.
func (s *Store) Path() string {
	return s.file.Path()
}

// Load returns the persisted cache, or an empty one if no file exists.
func (s *Store) Load() (Cache, error) {
	c, found, err := s.file.Load()
	if errors.Is(err, persist.ErrCorrupt) {
		return Cache{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	if err != nil {
		return Cache{}, fmt.Errorf("load cache: %w", err)
	}

	if !found {
		return NewCache(), nil
	}

	if c.Entries == nil {
		c.Entries = make(map[string]Entry)
	}

	return c, nil
}

// Save atomically persists the cache.
func (s *Store) Save(c Cache) error {
	err := s.file.Save(c)
	if err != nil {
		return fmt.Errorf("save cache: %w", err)
	}

	return nil
}

// Clear deletes the cache file.
func (s *Store) Clear() error {
	return s.file.Remove()
}

// Exists reports whether a cache file is present.
func (s *Store) Exists() bool {
	return persist.Exists(s.file.Path())
}
