package collector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files ...string) {
	t.Helper()

	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))

		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte("// "+f+"\n"), 0o600))
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, m := range Modes() {
		parsed, err := ParseMode(string(m))
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	parsed, err := ParseMode(" Staged ")
	require.NoError(t, err)
	assert.Equal(t, ModeStaged, parsed)

	_, err = ParseMode("partial")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestMode_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, ModeFull.Validate(""))
	require.NoError(t, ModeDiff.Validate("main"))
	require.ErrorIs(t, ModeDiff.Validate("  "), ErrBaseBranchRequired)
	require.ErrorIs(t, Mode("bogus").Validate(""), ErrUnknownMode)

	assert.False(t, ModeFull.NeedsGit())
	assert.True(t, ModeStaged.NeedsGit())
}

func TestNew_RejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := New([]string{"src/[a-"}, nil)

	require.Error(t, err)
}

func TestCollect_FullWalk(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeTree(t, root,
		"main.go",
		"pkg/util/util.go",
		"pkg/util/util_test.go",
		"README.md",
		"dist/bundle.js",
		"web/app.ts",
		".git/config.go",
	)

	c, err := New([]string{"**/*.go", "**/*.ts"}, []string{"dist/**", "**/*_test.go"})
	require.NoError(t, err)

	files, err := c.Collect(context.Background(), Request{Root: root, Mode: ModeFull})
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "pkg/util/util.go", "web/app.ts"}, files)
}

func TestCollect_EmptyIncludeMatchesAll(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeTree(t, root, "b.txt", "a/c.txt")

	c, err := New(nil, nil)
	require.NoError(t, err)

	files, err := c.Collect(context.Background(), Request{Root: root, Mode: ModeFull})
	require.NoError(t, err)

	assert.Equal(t, []string{"a/c.txt", "b.txt"}, files)
}

func TestCollect_SkipVendored(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeTree(t, root, "src/index.js", "node_modules/left-pad/index.js")

	c, err := New([]string{"**/*.js"}, nil, WithSkipVendored(true))
	require.NoError(t, err)

	files, err := c.Collect(context.Background(), Request{Root: root, Mode: ModeFull})
	require.NoError(t, err)

	assert.Equal(t, []string{"src/index.js"}, files)
}

func TestCollect_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeTree(t, root, "a.go")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c, err := New(nil, nil)
	require.NoError(t, err)

	_, err = c.Collect(ctx, Request{Root: root, Mode: ModeFull})

	require.ErrorIs(t, err, context.Canceled)
}

func TestCollect_DiffWithoutBranch(t *testing.T) {
	t.Parallel()

	c, err := New(nil, nil)
	require.NoError(t, err)

	_, err = c.Collect(context.Background(), Request{Root: t.TempDir(), Mode: ModeDiff})

	require.ErrorIs(t, err, ErrBaseBranchRequired)
}

func TestCollect_GitModeOutsideRepository(t *testing.T) {
	t.Parallel()

	c, err := New(nil, nil)
	require.NoError(t, err)

	_, err = c.Collect(context.Background(), Request{Root: t.TempDir(), Mode: ModeWorking})

	require.ErrorIs(t, err, ErrNotGitRepository)
}

func TestCollect_WorkingChangesFiltered(t *testing.T) {
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	repo, err := git2go.InitRepository(root, false)
	require.NoError(t, err)

	defer repo.Free()

	writeTree(t, root, "app/main.go", "app/notes.md", "dist/gen.go")
	commitAll(t, repo, "initial")

	require.NoError(t, os.WriteFile(filepath.Join(root, "app", "main.go"), []byte("package app\n"), 0o600))
	writeTree(t, root, "app/new.go", "app/new.md", "dist/out.go")

	c, err := New([]string{"**/*.go"}, []string{"dist/**"})
	require.NoError(t, err)

	files, err := c.Collect(context.Background(), Request{Root: root, Mode: ModeWorking})
	require.NoError(t, err)

	assert.Equal(t, []string{"app/main.go", "app/new.go"}, files)

	sub, err := c.Collect(context.Background(), Request{Root: filepath.Join(root, "app"), Mode: ModeWorking})
	require.NoError(t, err)

	assert.Equal(t, []string{"main.go", "new.go"}, sub, "paths are relative to the project root")
}

func commitAll(t *testing.T, repo *git2go.Repository, message string) {
	t.Helper()

	index, err := repo.Index()
	require.NoError(t, err)

	defer index.Free()

	require.NoError(t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(t, err)

	tree, err := repo.LookupTree(treeID)
	require.NoError(t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	_, err = repo.CreateCommit("HEAD", sig, sig, message, tree)
	require.NoError(t, err)
}
