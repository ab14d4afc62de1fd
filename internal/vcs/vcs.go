// Package vcs is the VCS Integration component (spec §4.7): repository
// root/path resolution, reading a path as of an arbitrary ref, and
// staging/committing blobs without touching the working tree. Grounded
// on cmd/entire/cli/git_operations.go's openRepository/GetGitAuthor
// style and original_source/git_theta/git_utils.py's
// get_file_version/get_head, both reimplemented on go-git/v5 rather
// than shelling out to git.
package vcs

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/git-theta/theta/internal/thetaerr"
)

// Repository wraps an open git repository rooted at a working tree,
// exposing the narrow surface the rest of the system needs.
type Repository struct {
	repo *git.Repository
	root string
}

// Open discovers and opens the repository containing dir, walking
// parent directories to find .git the same way git itself does.
func Open(dir string) (*Repository, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("opening git repository: %w", err))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("resolving worktree: %w", err))
	}
	return &Repository{repo: repo, root: wt.Filesystem.Root()}, nil
}

// RepoRoot returns the absolute path to the repository's working tree
// root.
func (r *Repository) RepoRoot() string { return r.root }

// RelativePath returns abs expressed relative to the repository root.
func (r *Repository) RelativePath(abs string) (string, error) {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil {
		return "", thetaerr.New(thetaerr.Configuration, fmt.Errorf("%s is not inside %s: %w", abs, r.root, err))
	}
	return filepath.ToSlash(rel), nil
}

// AbsolutePath returns rel (repo-root-relative) as an absolute path.
func (r *Repository) AbsolutePath(rel string) string {
	return filepath.Join(r.root, filepath.FromSlash(rel))
}

// HeadSHA returns the commit hash HEAD points to, and false if the
// repository has no commits yet (unborn HEAD — the first-commit case).
func (r *Repository) HeadSHA() (string, bool, error) {
	ref, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", false, nil
		}
		return "", false, thetaerr.New(thetaerr.Transient, fmt.Errorf("resolving HEAD: %w", err))
	}
	return ref.Hash().String(), true, nil
}

// FileAtCommit reads path's content as of ref. ref may be "HEAD", a
// branch name, tag, or full commit SHA. Returns (nil, false, nil) when
// the path does not exist at ref, or when ref itself does not resolve
// (an unborn HEAD on the first commit).
func (r *Repository) FileAtCommit(path, ref string) ([]byte, bool, error) {
	hash, err := r.resolve(ref)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, false, nil
		}
		return nil, false, thetaerr.New(thetaerr.Transient, fmt.Errorf("resolving ref %s: %w", ref, err))
	}

	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, false, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading commit %s: %w", hash, err))
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, false, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading tree for %s: %w", hash, err))
	}
	f, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, thetaerr.New(thetaerr.Transient, fmt.Errorf("reading %s at %s: %w", path, hash, err))
	}
	rc, err := f.Reader()
	if err != nil {
		return nil, false, thetaerr.New(thetaerr.Transient, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, thetaerr.New(thetaerr.Transient, err)
	}
	return data, true, nil
}

func (r *Repository) resolve(ref string) (plumbing.Hash, error) {
	if ref == "" || strings.EqualFold(ref, "HEAD") {
		head, err := r.repo.Head()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return head.Hash(), nil
	}
	if plumbing.IsHash(ref) {
		return plumbing.NewHash(ref), nil
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return *hash, nil
}

// ParentSHA returns the hash of commit's first parent, and false if
// commit is a root commit with no parent.
func (r *Repository) ParentSHA(commit string) (string, bool, error) {
	hash, err := r.resolve(commit)
	if err != nil {
		return "", false, thetaerr.New(thetaerr.Transient, fmt.Errorf("resolving %s: %w", commit, err))
	}
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return "", false, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading commit %s: %w", hash, err))
	}
	if c.NumParents() == 0 {
		return "", false, nil
	}
	parent, err := c.Parent(0)
	if err != nil {
		return "", false, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading parent of %s: %w", hash, err))
	}
	return parent.Hash.String(), true, nil
}

// ChangedPaths returns the repo-root-relative paths that differ between
// commit and its first parent (every path in the tree, for a root
// commit with no parent), used by the post-commit hook to find which
// tracked paths a commit touched.
func (r *Repository) ChangedPaths(commit string) ([]string, error) {
	hash, err := r.resolve(commit)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("resolving %s: %w", commit, err))
	}
	c, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading commit %s: %w", hash, err))
	}
	tree, err := c.Tree()
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading tree for %s: %w", hash, err))
	}

	if c.NumParents() == 0 {
		var paths []string
		err := tree.Files().ForEach(func(f *object.File) error {
			paths = append(paths, f.Name)
			return nil
		})
		if err != nil {
			return nil, thetaerr.New(thetaerr.Transient, err)
		}
		return paths, nil
	}

	parent, err := c.Parent(0)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading parent of %s: %w", hash, err))
	}
	parentTree, err := parent.Tree()
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("loading parent tree for %s: %w", hash, err))
	}

	changes, err := parentTree.Diff(tree)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("diffing %s against its parent: %w", hash, err))
	}
	seen := map[string]bool{}
	var paths []string
	for _, ch := range changes {
		for _, name := range []string{ch.From.Name, ch.To.Name} {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			paths = append(paths, name)
		}
	}
	return paths, nil
}

// StagedEntry names a blob already written to the object database but
// not yet added to the index.
type StagedEntry struct {
	Path string
	Hash plumbing.Hash
	Size int64
}

// MakeBlob writes contents as a loose blob object and returns a staging
// entry for it, without touching the working tree or the index.
func (r *Repository) MakeBlob(contents []byte, path string) (StagedEntry, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return StagedEntry{}, thetaerr.New(thetaerr.Transient, err)
	}
	if _, err := io.Copy(w, bytes.NewReader(contents)); err != nil {
		w.Close()
		return StagedEntry{}, thetaerr.New(thetaerr.Transient, err)
	}
	if err := w.Close(); err != nil {
		return StagedEntry{}, thetaerr.New(thetaerr.Transient, err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return StagedEntry{}, thetaerr.New(thetaerr.Transient, fmt.Errorf("writing blob: %w", err))
	}
	return StagedEntry{Path: filepath.ToSlash(path), Hash: hash, Size: int64(len(contents))}, nil
}

// Stage adds entry to the repository's index, replacing any prior entry
// for the same path.
func (r *Repository) Stage(entry StagedEntry) error {
	storer := r.repo.Storer
	idx, err := storer.Index()
	if err != nil {
		return thetaerr.New(thetaerr.Transient, fmt.Errorf("reading index: %w", err))
	}

	now := time.Now()
	replaced := false
	for _, e := range idx.Entries {
		if e.Name == entry.Path {
			e.Hash = entry.Hash
			e.Size = uint32(entry.Size)
			e.ModifiedAt = now
			e.Mode = filemode.Regular
			replaced = true
			break
		}
	}
	if !replaced {
		idx.Entries = append(idx.Entries, &index.Entry{
			Name:       entry.Path,
			Mode:       filemode.Regular,
			Hash:       entry.Hash,
			Size:       uint32(entry.Size),
			ModifiedAt: now,
			CreatedAt:  now,
		})
	}
	if err := storer.SetIndex(idx); err != nil {
		return thetaerr.New(thetaerr.Transient, fmt.Errorf("writing index: %w", err))
	}
	return nil
}

// Commit creates a commit from the repository's current index (not the
// working tree) and returns its hash.
func (r *Repository) Commit(message string) (string, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", thetaerr.New(thetaerr.Configuration, err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{})
	if err != nil {
		return "", thetaerr.New(thetaerr.Transient, fmt.Errorf("committing: %w", err))
	}
	return hash.String(), nil
}

// CommitsBetween returns the hashes of commits reachable from newRef
// but not from oldRef, oldest first. An all-zero oldRef (or the empty
// string) means "from the root" — every ancestor of newRef.
func (r *Repository) CommitsBetween(oldRef, newRef string) ([]string, error) {
	newHash, err := r.resolve(newRef)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("resolving %s: %w", newRef, err))
	}

	excluded := map[plumbing.Hash]bool{}
	if oldRef != "" && !isZeroRef(oldRef) {
		oldHash, err := r.resolve(oldRef)
		if err != nil {
			return nil, thetaerr.New(thetaerr.Transient, fmt.Errorf("resolving %s: %w", oldRef, err))
		}
		if err := r.collectAncestors(oldHash, excluded); err != nil {
			return nil, err
		}
	}

	var ordered []plumbing.Hash
	seen := map[plumbing.Hash]bool{}
	var walk func(h plumbing.Hash) error
	walk = func(h plumbing.Hash) error {
		if seen[h] || excluded[h] {
			return nil
		}
		seen[h] = true
		commit, err := r.repo.CommitObject(h)
		if err != nil {
			return thetaerr.New(thetaerr.Transient, err)
		}
		for _, p := range commit.ParentHashes {
			if err := walk(p); err != nil {
				return err
			}
		}
		ordered = append(ordered, h)
		return nil
	}
	if err := walk(newHash); err != nil {
		return nil, err
	}

	out := make([]string, len(ordered))
	for i, h := range ordered {
		out[i] = h.String()
	}
	return out, nil
}

func (r *Repository) collectAncestors(start plumbing.Hash, into map[plumbing.Hash]bool) error {
	var walk func(h plumbing.Hash) error
	walk = func(h plumbing.Hash) error {
		if into[h] {
			return nil
		}
		into[h] = true
		commit, err := r.repo.CommitObject(h)
		if err != nil {
			return thetaerr.New(thetaerr.Transient, err)
		}
		for _, p := range commit.ParentHashes {
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(start)
}

func isZeroRef(ref string) bool {
	for _, c := range ref {
		if c != '0' {
			return false
		}
	}
	return true
}
