// Package filereader loads candidate files for analysis, skipping anything
// that is too large, binary, unreadable or outside the project root.
package filereader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/src-d/enry/v2"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxBytes is the default per-file size limit.
const DefaultMaxBytes = 1 << 20

// Encodings reported on documents.
const (
	EncodingUTF8   = "utf-8"
	EncodingLatin1 = "latin-1"
)

// Skip reasons.
var (
	ErrTooLarge     = errors.New("file exceeds size limit")
	ErrBinary       = errors.New("binary file")
	ErrOutsideRoot  = errors.New("file resolves outside project root")
	ErrNotRegular   = errors.New("not a regular file")
	ErrUndecodeable = errors.New("content cannot be decoded")
)

// Document is a file ready to send for analysis.
type Document struct {
	// Path is slash-separated and relative to the project root.
	Path     string
	Content  string
	Size     int64
	Language string
	Encoding string
}

// Skipped records a file that was not read and why.
type Skipped struct {
	Path string
	Err  error
}

// Reader reads project files under a size limit.
type Reader struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

// New creates a reader rooted at root. maxBytes <= 0 selects DefaultMaxBytes.
func New(root string, maxBytes int64, logger *slog.Logger) (*Reader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Reader{root: resolved, maxBytes: maxBytes, logger: logger}, nil
}

// MaxBytes returns the size limit.
func (r *Reader) MaxBytes() int64 {
	return r.maxBytes
}

// Read loads one file. The error explains why the file was skipped.
func (r *Reader) Read(rel string) (Document, error) {
	full, err := r.resolve(rel)
	if err != nil {
		return Document{}, err
	}

	info, err := os.Stat(full)
	if err != nil {
		return Document{}, fmt.Errorf("stat: %w", err)
	}

	if !info.Mode().IsRegular() {
		return Document{}, ErrNotRegular
	}

	if info.Size() > r.maxBytes {
		return Document{}, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, info.Size(), r.maxBytes)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return Document{}, fmt.Errorf("read: %w", err)
	}

	if enry.IsBinary(data) {
		return Document{}, ErrBinary
	}

	content, encoding, err := decode(data)
	if err != nil {
		return Document{}, err
	}

	return Document{
		Path:     rel,
		Content:  content,
		Size:     info.Size(),
		Language: enry.GetLanguage(path.Base(rel), data),
		Encoding: encoding,
	}, nil
}

// ReadAll reads files in order, logging and collecting the ones skipped.
func (r *Reader) ReadAll(rels []string) ([]Document, []Skipped) {
	docs := make([]Document, 0, len(rels))

	var skipped []Skipped

	for _, rel := range rels {
		doc, err := r.Read(rel)
		if err != nil {
			r.logger.Warn("skipping file", "path", rel, "reason", err)

			skipped = append(skipped, Skipped{Path: rel, Err: err})

			continue
		}

		docs = append(docs, doc)
	}

	return docs, skipped
}

func (r *Reader) resolve(rel string) (string, error) {
	full := filepath.Join(r.root, filepath.FromSlash(rel))

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		return "", fmt.Errorf("resolve: %w", err)
	}

	inside, err := filepath.Rel(r.root, resolved)
	if err != nil || inside == ".." || strings.HasPrefix(inside, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}

	return resolved, nil
}

// decode returns UTF-8 text, falling back to latin-1 for invalid UTF-8.
func decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		return string(data), EncodingUTF8, nil
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrUndecodeable, err)
	}

	return string(out), EncodingLatin1, nil
}
