// Package batch splits ordered work lists into fixed-size contiguous groups.
package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned when the batch size is not positive.
var ErrInvalidSize = errors.New("batch size must be positive")

// Split groups items into contiguous batches of at most size elements,
// preserving order. Only the last batch may be smaller. Empty input yields
// no batches. The returned batches share backing storage with items.
func Split[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	batches := make([][]T, 0, Count(len(items), size))

	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end:end])
	}

	return batches, nil
}

// Count returns the number of batches Split produces for n items.
func Count(n, size int) int {
	if n <= 0 || size <= 0 {
		return 0
	}

	return (n + size - 1) / size
}
