package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/vcs"
)

func newPrePushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "pre-push <remote> [url]",
		Short:  "Pre-push hook: transfer the object-store blobs a push needs",
		Args:   cobra.RangeArgs(1, 2),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := initLogging("pre-push")
			defer logging.Close()
			if err := runPrePush(ctx, args[0], cmd.InOrStdin()); err != nil {
				return fail(err)
			}
			return nil
		},
	}
	return cmd
}

func runPrePush(ctx context.Context, remote string, in io.Reader) error {
	lines, err := vcs.ParsePrePushStdin(in)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	l, err := newLedger()
	if err != nil {
		return err
	}

	seen := map[string]bool{}
	var oids []string
	for _, line := range lines {
		inRange, err := l.OIDsInRange(e.repo, line.RemoteSHA, line.LocalSHA)
		if err != nil {
			return err
		}
		for _, oid := range inRange {
			if !seen[oid] {
				seen[oid] = true
				oids = append(oids, oid)
			}
		}
	}

	logging.Info(ctx, "pre-push transferring object-store blobs", "remote", remote, "oids", len(oids))
	if len(oids) == 0 {
		return nil
	}
	return pushObjects(ctx, remote, oids)
}

// pushObjects hands the computed OID set to the object store's push
// operation. Grounded on git-lfs's own `git lfs push --object-id`
// invocation, the same subprocess boundary internal/lfsadapter uses for
// the per-blob clean/smudge exchange.
func pushObjects(ctx context.Context, remote string, oids []string) error {
	args := append([]string{"lfs", "push", "--object-id", remote}, oids...)
	cmd := exec.CommandContext(ctx, "git", args...) //nolint:gosec // remote/oids are validated identifiers, not arbitrary input
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git lfs push: %w: %s", err, out)
	}
	return nil
}
