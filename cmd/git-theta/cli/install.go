package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/paths"
	"github.com/git-theta/theta/internal/telemetry"
)

// hookMarker identifies the post-commit/pre-push hook scripts this tool
// installs, mirroring strategy/hooks.go's entireHookMarker idempotency
// check.
const hookMarker = "git-theta hooks"

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Wire filter.theta, merge.theta, and diff.theta into this repository's git config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := initLogging("install")
			defer logging.Close()
			if err := runInstall(ctx, cmd); err != nil {
				return fail(err)
			}
			return nil
		},
	}
}

func runInstall(ctx context.Context, cmd *cobra.Command) error {
	root, err := paths.RepoRoot()
	if err != nil {
		return err
	}

	entries := [][2]string{
		{"filter.theta.clean", "git-theta clean %f"},
		{"filter.theta.smudge", "git-theta smudge %f"},
		{"filter.theta.required", "true"},
		{"merge.theta.driver", "git-theta filter-driver %O %A %B %P"},
		{"diff.theta.command", "git-theta explain"},
	}
	for _, e := range entries {
		if err := setGitConfig(ctx, root, e[0], e[1]); err != nil {
			return err
		}
	}

	gitDir, err := paths.GitDir()
	if err != nil {
		return err
	}
	installed, err := installHooks(gitDir)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "git-theta: configured filter.theta, merge.theta, and diff.theta")
	if installed > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "git-theta: installed %d git hook(s)\n", installed)
	}

	store, err := telemetry.DefaultStore()
	if err == nil {
		store.NotifyOnce("install", func() {
			fmt.Fprintln(cmd.OutOrStdout(), "git-theta: run 'git-theta track <pattern>' to start tracking checkpoints")
		})
	}
	return nil
}

func setGitConfig(ctx context.Context, repoRoot, key, value string) error {
	cmd := exec.CommandContext(ctx, "git", "config", key, value) //nolint:gosec // key/value are fixed constants
	cmd.Dir = repoRoot
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git config %s %q: %w: %s", key, value, err, out)
	}
	return nil
}

func installHooks(gitDir string) (int, error) {
	hooksDir := filepath.Join(gitDir, "hooks")
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating hooks directory: %w", err)
	}

	scripts := map[string]string{
		"post-commit": fmt.Sprintf("#!/bin/sh\n# %s\ngit-theta post-commit 2>/dev/null || true\n", hookMarker),
		"pre-push":    fmt.Sprintf("#!/bin/sh\n# %s\ngit-theta pre-push \"$1\" \"$2\" < /dev/stdin\n", hookMarker),
	}

	installed := 0
	for name, content := range scripts {
		written, err := writeHookFile(filepath.Join(hooksDir, name), content)
		if err != nil {
			return installed, fmt.Errorf("installing %s hook: %w", name, err)
		}
		if written {
			installed++
		}
	}
	return installed, nil
}

// writeHookFile writes a hook file only if it doesn't already have this
// exact content, same idempotency check as
// cmd/entire/cli/strategy/hooks.go's writeHookFile.
func writeHookFile(path, content string) (bool, error) {
	existing, err := os.ReadFile(path) //nolint:gosec // path is constructed from the git directory
	if err == nil && string(existing) == content {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil { //nolint:gosec // git hooks must be executable
		return false, err
	}
	return true, nil
}
