// Package paths resolves repository-relative locations used by git-theta:
// the working-tree root, the Git private directory, and the fixed paths
// within it where the commit ledger and logs live.
package paths

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// ConfigFileName is the name of the repo-level configuration file, stored
// at the repository root.
const ConfigFileName = ".thetaconfig"

// LedgerDir is the directory (relative to the Git private directory) that
// holds one JSON file per commit recording the OIDs it introduced.
const LedgerDir = "theta/ledger"

// ErrNoRepository is returned when no enclosing Git repository can be
// found from the current directory.
var ErrNoRepository = errors.New("not inside a git repository")

// RepoRoot returns the absolute path to the root of the enclosing Git
// working tree.
func RepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	repo, err := git.PlainOpenWithOptions(wd, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", ErrNoRepository
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}
	return wt.Filesystem.Root(), nil
}

// GitDir returns the absolute path to the repository's private directory
// as "<working-tree root>/.git". It does not follow a ".git" file (as in
// a linked worktree) and does not consult the GIT_DIR environment
// variable.
func GitDir() (string, error) {
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, ".git"), nil
}

// AbsPath converts a path relative to the repository root into an
// absolute path. Absolute inputs are returned unchanged.
func AbsPath(rel string) (string, error) {
	if filepath.IsAbs(rel) {
		return rel, nil
	}
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, rel), nil
}

// RelativePath converts an absolute path into one relative to the
// repository root.
func RelativePath(abs string) (string, error) {
	root, err := RepoRoot()
	if err != nil {
		return "", err
	}
	return filepath.Rel(root, abs)
}

// ConfigPath returns the absolute path to .thetaconfig at the repo root.
func ConfigPath() (string, error) {
	return AbsPath(ConfigFileName)
}

// LedgerPath returns the absolute path to the ledger directory under the
// Git private directory.
func LedgerPath() (string, error) {
	gitDir, err := GitDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, LedgerDir), nil
}
