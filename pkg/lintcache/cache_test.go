package lintcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/guidelint/pkg/fingerprint"
	"github.com/Sumatoshi-tech/guidelint/pkg/model"
	"github.com/Sumatoshi-tech/guidelint/pkg/persist"
)

const guidelinesV1 = "guidelines-v1"

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()

	path := filepath.Join(root, filepath.FromSlash(rel))

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return fingerprint.String(content)
}

func TestNewEntry_OwnsViolations(t *testing.T) {
	t.Parallel()

	violations := []model.Violation{model.NewViolation(model.TypeAntiPattern, "x", 3)}
	at := time.Unix(1700000000, 0)

	e := NewEntry("fh", "gh", violations, at)
	violations[0].Message = "changed"

	assert.Equal(t, "x", e.Violations[0].Message)
	assert.Equal(t, int64(1700000000), e.Timestamp)
	assert.True(t, e.ValidFor("fh", "gh"))
	assert.False(t, e.ValidFor("fh", "other"))
	assert.False(t, e.ValidFor("other", "gh"))
}

func TestNewCache_IndependentMaps(t *testing.T) {
	t.Parallel()

	a := NewCache()
	b := NewCache()

	a.Put("x.go", NewEntry("1", "2", nil, time.Now()))

	assert.Len(t, a.Entries, 1)
	assert.Empty(t, b.Entries)
}

func TestPartitionFiles_ValidityRule(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	hashA := writeFile(t, root, "a.go", "package a\n")
	hashB := writeFile(t, root, "src/b.go", "package b\n")
	writeFile(t, root, "c.go", "package c\n")
	writeFile(t, root, "d.go", "package d\n")

	c := NewCache()
	c.Put("a.go", NewEntry(hashA, guidelinesV1, nil, time.Now()))
	c.Put("src/b.go", NewEntry(hashB, "guidelines-v0", nil, time.Now()))
	c.Put("d.go", NewEntry("stale-hash", guidelinesV1, nil, time.Now()))

	files := []string{"a.go", "src/b.go", "c.go", "d.go", "gone.go"}

	p, err := PartitionFiles(context.Background(), root, files, c, guidelinesV1)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.go"}, p.Valid)
	assert.Equal(t, []string{"src/b.go", "c.go", "d.go", "gone.go"}, p.Stale)

	assert.Equal(t, ChangeGuidelines, p.Changes["src/b.go"])
	assert.Equal(t, ChangeNew, p.Changes["c.go"])
	assert.Equal(t, ChangeModified, p.Changes["d.go"])
	assert.Equal(t, ChangeUnreadable, p.Changes["gone.go"])
	assert.Equal(t, 1, p.Count(ChangeNew))

	assert.Equal(t, hashA, p.Hashes["a.go"])
	assert.NotContains(t, p.Hashes, "gone.go")
}

func TestPartitionFiles_GuidelinesChangeInvalidatesAll(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	c := NewCache()

	var files []string

	for _, name := range []string{"a.go", "b.go", "c.go"} {
		h := writeFile(t, root, name, "content of "+name)
		c.Put(name, NewEntry(h, guidelinesV1, nil, time.Now()))
		files = append(files, name)
	}

	same, err := PartitionFiles(context.Background(), root, files, c, guidelinesV1)
	require.NoError(t, err)
	assert.Len(t, same.Valid, 3)
	assert.Empty(t, same.Stale)

	changed, err := PartitionFiles(context.Background(), root, files, c, "guidelines-v2")
	require.NoError(t, err)
	assert.Empty(t, changed.Valid)
	assert.Equal(t, files, changed.Stale)
}

func TestPartitionFiles_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "a.go", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PartitionFiles(ctx, root, []string{"a.go"}, NewCache(), guidelinesV1)

	require.ErrorIs(t, err, context.Canceled)
}

func TestMaterializeCached_InputOrderOmitsMissing(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Put("b.go", NewEntry("1", "g", []model.Violation{model.NewViolation(model.TypeAntiPattern, "b", 0)}, time.Now()))
	c.Put("a.go", NewEntry("2", "g", nil, time.Now()))

	results := MaterializeCached([]string{"b.go", "missing.go", "a.go"}, c)

	require.Len(t, results, 2)
	assert.Equal(t, "b.go", results[0].File)
	assert.Len(t, results[0].Violations, 1)
	assert.Equal(t, "a.go", results[1].File)
	assert.NotNil(t, results[1].Violations)
}

func TestCache_PruneAndStats(t *testing.T) {
	t.Parallel()

	c := NewCache()
	c.Put("keep.go", NewEntry("1", "g1", []model.Violation{{Type: model.TypeAntiPattern}}, time.Unix(100, 0)))
	c.Put("old.go", NewEntry("2", "g0", nil, time.Unix(50, 0)))
	c.Put("drop.go", NewEntry("3", "g1", nil, time.Unix(200, 0)))

	stats := c.Stats("g1")
	assert.Equal(t, 3, stats.Entries)
	assert.Equal(t, 2, stats.Current)
	assert.Equal(t, 1, stats.Stale)
	assert.Equal(t, 1, stats.Violations)
	assert.Equal(t, int64(50), stats.Oldest.Unix())
	assert.Equal(t, int64(200), stats.Newest.Unix())

	dropped := c.Prune(func(path string) bool { return path != "drop.go" })

	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"keep.go", "old.go"}, c.Paths())
}

func TestStore_LoadAbsentIsEmpty(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), DefaultBasename, persist.NewJSONCodec())

	c, err := store.Load()

	require.NoError(t, err)
	assert.NotNil(t, c.Entries)
	assert.Empty(t, c.Entries)
	assert.False(t, store.Exists())
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), DefaultBasename, persist.NewJSONCodec())

	c := NewCache()
	c.GuidelinesHash = guidelinesV1
	c.Put("a.go", NewEntry("fh", guidelinesV1, []model.Violation{model.NewViolation(model.TypeMissingPattern, "m", 7)}, time.Unix(10, 0)))

	require.NoError(t, store.Save(c))

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, c, loaded)
	assert.Equal(t, ".guidelint-cache.json", filepath.Base(store.Path()))
}

func TestStore_FileFormat(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), DefaultBasename, persist.NewJSONCodec())

	c := NewCache()
	c.GuidelinesHash = "g"
	c.Put("a.go", NewEntry("f", "g", nil, time.Unix(5, 0)))

	require.NoError(t, store.Save(c))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"guidelines_hash": "g",
		"entries": {
			"a.go": {"file_hash": "f", "guidelines_hash": "g", "violations": [], "timestamp": 5}
		}
	}`, string(data))
}

func TestStore_CorruptFails(t *testing.T) {
	t.Parallel()

	store := NewStore(t.TempDir(), DefaultBasename, persist.NewJSONCodec())

	require.NoError(t, os.WriteFile(store.Path(), []byte("{{{"), 0o600))

	_, err := store.Load()

	require.ErrorIs(t, err, ErrCorrupt)

	require.NoError(t, store.Clear())

	c, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, c.Entries)
}
