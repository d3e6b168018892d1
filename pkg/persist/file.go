package persist

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File permissions for persisted state.
const (
	filePerm = 0o600
	dirPerm  = 0o750
)

// ErrCorrupt is returned by Load when the file exists but cannot be decoded.
var ErrCorrupt = errors.New("corrupt state file")

// Path builds the state file path from a directory, basename and the codec's extension.
func Path(dir, basename string, codec Codec) string {
	return filepath.Join(dir, basename+codec.Extension())
}

// Save writes state to path atomically: the encoded bytes go to a temporary
// file in the same directory which is synced and renamed over path.
func Save(path string, codec Codec, state any) error {
	dir := filepath.Dir(path)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}

	tmpName := tmp.Name()

	defer func() {
		// Removing after a successful rename fails harmlessly.
		_ = os.Remove(tmpName)
	}()

	err = codec.Encode(tmp, state)
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("encode state: %w", err)
	}

	err = tmp.Sync()
	if err != nil {
		_ = tmp.Close()

		return fmt.Errorf("sync state file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		return fmt.Errorf("close state file: %w", err)
	}

	err = os.Chmod(tmpName, filePerm)
	if err != nil {
		return fmt.Errorf("chmod state file: %w", err)
	}

	err = os.Rename(tmpName, path)
	if err != nil {
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// Load decodes the file at path into state, which must be a pointer.
// A missing file yields an error matching os.ErrNotExist; a file that
// cannot be decoded yields an error matching ErrCorrupt.
func Load(path string, codec Codec, state any) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, path, err)
	}

	return nil
}

// Exists reports whether a state file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}

// Remove deletes the state file at path. A missing file is not an error.
func Remove(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove state file: %w", err)
	}

	return nil
}

// Store binds a state type to a file path and codec.
type Store[T any] struct {
	path  string
	codec Codec
}

// NewStore creates a store for the file named basename in dir.
func NewStore[T any](dir, basename string, codec Codec) *Store[T] {
	return &Store[T]{
		path:  Path(dir, basename, codec),
		codec: codec,
	}
}

// Path returns the file the store reads and writes.
func (s *Store[T]) Path() string {
	return s.path
}

// Codec returns the store's codec.
func (s *Store[T]) Codec() Codec {
	return s.codec
}

// Save atomically writes state.
func (s *Store[T]) Save(state T) error {
	return Save(s.path, s.codec, state)
}

// Load reads the state. The boolean is false when no file exists.
func (s *Store[T]) Load() (T, bool, error) {
	var state T

	err := Load(s.path, s.codec, &state)
	if errors.Is(err, os.ErrNotExist) {
		return state, false, nil
	}

	if err != nil {
		return state, false, err
	}

	return state, true, nil
}

// Remove deletes the state file if present.
func (s *Store[T]) Remove() error {
	return Remove(s.path)
}
