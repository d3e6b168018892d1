package gitlib_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/guidelint/pkg/gitlib"
)

// testRepo wraps a scratch repository for integration testing.
type testRepo struct {
	t      *testing.T
	path   string
	native *git2go.Repository
}

func newTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &testRepo{t: t, path: dir, native: repo}
}

func (tr *testRepo) abs(rel string) string {
	return filepath.Join(tr.path, filepath.FromSlash(rel))
}

func (tr *testRepo) createFile(name, content string) {
	tr.t.Helper()

	path := tr.abs(name)

	require.NoError(tr.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(tr.t, os.WriteFile(path, []byte(content), 0o644))
}

func (tr *testRepo) stage(names ...string) {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	for _, name := range names {
		require.NoError(tr.t, index.AddByPath(name))
	}

	require.NoError(tr.t, index.Write())
}

func (tr *testRepo) stageRemoval(name string) {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.RemoveByPath(name))
	require.NoError(tr.t, index.Write())
}

// commit stages all files and creates a commit on HEAD.
func (tr *testRepo) commit(message string) *git2go.Oid {
	tr.t.Helper()

	index, err := tr.native.Index()
	require.NoError(tr.t, err)

	defer index.Free()

	require.NoError(tr.t, index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil))
	require.NoError(tr.t, index.UpdateAll([]string{"*"}, nil))
	require.NoError(tr.t, index.Write())

	treeID, err := index.WriteTree()
	require.NoError(tr.t, err)

	tree, err := tr.native.LookupTree(treeID)
	require.NoError(tr.t, err)

	defer tree.Free()

	sig := &git2go.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()}

	var parents []*git2go.Commit

	head, err := tr.native.Head()
	if err == nil {
		headCommit, lookupErr := tr.native.LookupCommit(head.Target())
		require.NoError(tr.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := tr.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(tr.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return oid
}

func (tr *testRepo) branch(name string, at *git2go.Oid) {
	tr.t.Helper()

	commit, err := tr.native.LookupCommit(at)
	require.NoError(tr.t, err)

	defer commit.Free()

	b, err := tr.native.CreateBranch(name, commit, false)
	require.NoError(tr.t, err)

	b.Free()
}

func TestOpenRepository_FromSubdirectory(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("pkg/a.go", "package pkg")
	tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.abs("pkg"))
	require.NoError(t, err)

	defer repo.Free()

	assert.Equal(t, tr.path, repo.Workdir())
	assert.True(t, gitlib.IsRepository(tr.path))
}

func TestOpenRepository_NotFound(t *testing.T) {
	dir := t.TempDir()

	repo, err := gitlib.OpenRepository(filepath.Join(dir, "nope"))

	assert.Nil(t, repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}

func TestRepository_Head(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.txt", "a")
	oid := tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	head, err := repo.Head()

	require.NoError(t, err)
	assert.Equal(t, oid.String(), head)
	assert.Len(t, head, 40)
}

func TestRepository_FreeTwice(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("x.txt", "x")
	tr.commit("init")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	repo.Free()
	repo.Free()
}

func TestChangedSince_BranchPoint(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("keep.go", "package keep")
	tr.createFile("edit.go", "package edit")
	tr.createFile("remove.go", "package remove")
	base := tr.commit("base")
	tr.branch("main-base", base)

	tr.createFile("edit.go", "package edit // changed")
	tr.createFile("src/new.go", "package src")
	require.NoError(t, os.Remove(tr.abs("remove.go")))
	tr.commit("feature work")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	changed, err := repo.ChangedSince("main-base")
	require.NoError(t, err)

	assert.Equal(t, []string{tr.abs("edit.go"), tr.abs("src/new.go")}, changed)

	byHash, err := repo.ChangedSince(base.String())
	require.NoError(t, err)
	assert.Equal(t, changed, byHash)
}

func TestChangedSince_UnknownBranch(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("a.go", "package a")
	tr.commit("initial")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	_, err = repo.ChangedSince("does-not-exist")

	require.ErrorIs(t, err, gitlib.ErrUnknownRevision)
}

func TestWorkingAndStagedChanges(t *testing.T) {
	tr := newTestRepo(t)

	tr.createFile("tracked.go", "package tracked")
	tr.createFile("staged.go", "package staged")
	tr.createFile("gone.go", "package gone")
	tr.commit("initial")

	tr.createFile("tracked.go", "package tracked // edited")
	tr.createFile("untracked/new.go", "package untracked")
	tr.createFile("staged.go", "package staged // staged edit")
	tr.stage("staged.go")
	require.NoError(t, os.Remove(tr.abs("gone.go")))
	tr.stageRemoval("gone.go")

	repo, err := gitlib.OpenRepository(tr.path)
	require.NoError(t, err)

	defer repo.Free()

	working, err := repo.WorkingChanges()
	require.NoError(t, err)
	assert.Equal(t, []string{tr.abs("tracked.go"), tr.abs("untracked/new.go")}, working)

	staged, err := repo.StagedChanges()
	require.NoError(t, err)
	assert.Equal(t, []string{tr.abs("staged.go")}, staged)
}
