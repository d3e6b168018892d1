// Package model defines the verdict records shared by the cache, the progress
// ledger, the analyzer and the reporters.
package model

import "slices"

// Violation types the analysis service is asked to emit.
const (
	TypeMissingPattern     = "missing-pattern"
	TypePrincipleViolation = "principle-violation"
	TypeAntiPattern        = "anti-pattern"
)

// Violation is a single guideline finding in a file.
type Violation struct {
	Type    string `json:"type"    yaml:"type"`
	Message string `json:"message" yaml:"message"`
	Line    *int   `json:"line"    yaml:"line"`
}

// NewViolation creates a violation. A line <= 0 means the finding has no line.
func NewViolation(kind, message string, line int) Violation {
	v := Violation{Type: kind, Message: message}
	if line > 0 {
		v.Line = &line
	}

	return v
}

// KnownType reports whether t is one of the documented violation types.
func KnownType(t string) bool {
	switch t {
	case TypeMissingPattern, TypePrincipleViolation, TypeAntiPattern:
		return true
	default:
		return false
	}
}

// FileResult is the verdict for one file.
type FileResult struct {
	File       string      `json:"file"       yaml:"file"`
	Violations []Violation `json:"violations" yaml:"violations"`
}

// NewFileResult creates a result owning a copy of violations. The violation
// slice is never nil.
func NewFileResult(file string, violations []Violation) FileResult {
	owned := make([]Violation, len(violations))
	copy(owned, violations)

	return FileResult{File: file, Violations: owned}
}

// Clean reports whether the file has no violations.
func (r FileResult) Clean() bool {
	return len(r.Violations) == 0
}

// CloneResults returns a deep-enough copy of results for value semantics.
func CloneResults(results []FileResult) []FileResult {
	out := make([]FileResult, len(results))
	for i, r := range results {
		out[i] = NewFileResult(r.File, r.Violations)
	}

	return out
}

// CountViolations sums violations across results.
func CountViolations(results []FileResult) int {
	total := 0
	for _, r := range results {
		total += len(r.Violations)
	}

	return total
}

// SortByOrder orders results by the position of their file in order. Files not
// present in order keep their relative arrival order after all ordered ones.
func SortByOrder(results []FileResult, order []string) []FileResult {
	pos := make(map[string]int, len(order))
	for i, f := range order {
		if _, seen := pos[f]; !seen {
			pos[f] = i
		}
	}

	out := slices.Clone(results)

	slices.SortStableFunc(out, func(a, b FileResult) int {
		pa, okA := pos[a.File]
		pb, okB := pos[b.File]

		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return 0
		}
	})

	return out
}
