package vcs_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/vcs"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one"), 0o644))
	_, err = wt.Add("a.txt")
	require.NoError(t, err)
	sig := &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Unix(0, 0)}
	_, err = wt.Commit("first", &git.CommitOptions{Author: sig})
	require.NoError(t, err)

	return dir
}

func TestRepoRootAndRelativePath(t *testing.T) {
	dir := initRepo(t)
	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	root, err := filepath.EvalSymlinks(repo.RepoRoot())
	require.NoError(t, err)
	wantRoot, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	require.Equal(t, wantRoot, root)

	rel, err := repo.RelativePath(filepath.Join(dir, "sub", "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "sub/a.txt", rel)
}

func TestFileAtCommitReadsHeadContent(t *testing.T) {
	dir := initRepo(t)
	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	data, ok, err := repo.FileAtCommit("a.txt", "HEAD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "one", string(data))
}

func TestFileAtCommitMissingPathReturnsFalse(t *testing.T) {
	dir := initRepo(t)
	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	_, ok, err := repo.FileAtCommit("does-not-exist.txt", "HEAD")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMakeBlobStageCommitRoundTrip(t *testing.T) {
	dir := initRepo(t)
	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	entry, err := repo.MakeBlob([]byte("new content"), "metadata.json")
	require.NoError(t, err)
	require.NoError(t, repo.Stage(entry))

	commitHash, err := repo.Commit("add metadata")
	require.NoError(t, err)
	require.True(t, strings.TrimSpace(commitHash) != "")

	data, ok, err := repo.FileAtCommit("metadata.json", "HEAD")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "new content", string(data))
}

func TestCommitsBetweenFromRoot(t *testing.T) {
	dir := initRepo(t)
	repo, err := vcs.Open(dir)
	require.NoError(t, err)

	entry, err := repo.MakeBlob([]byte("v2"), "a.txt")
	require.NoError(t, err)
	require.NoError(t, repo.Stage(entry))
	_, err = repo.Commit("second")
	require.NoError(t, err)

	hashes, err := repo.CommitsBetween("0000000000000000000000000000000000000000", "HEAD")
	require.NoError(t, err)
	require.Len(t, hashes, 2)
}
