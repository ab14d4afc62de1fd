package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/paramdiff"
)

// newExplainCmd builds the `explain` sub-command, the diff.theta.command
// target wired by install. Git invokes an external diff driver as
// `<command> path old-file old-hex old-mode new-file new-hex new-mode
// [old-path new-path]`; old-file/new-file are temp files already holding
// the Metadata document bytes (the git blob content, i.e. post-clean),
// so no filter or object-store round trip is needed here. Run with fewer
// than seven arguments (normally just <path>), it instead compares the
// Metadata document at <path> between --old-ref and --new-ref (default
// HEAD~1..HEAD); any arguments after <path> are then ignored.
func newExplainCmd() *cobra.Command {
	var oldRef, newRef string
	cmd := &cobra.Command{
		Use:   "explain <path> [old-file new-file ...]",
		Short: "Print a per-parameter change summary for a tracked checkpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("explain")
			defer logging.Close()
			text, err := runExplain(args, oldRef, newRef)
			if err != nil {
				return fail(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&oldRef, "old-ref", "HEAD~1", "older revision, used outside the diff-driver protocol")
	cmd.Flags().StringVar(&newRef, "new-ref", "HEAD", "newer revision, used outside the diff-driver protocol")
	return cmd
}

func runExplain(args []string, oldRef, newRef string) (string, error) {
	path := args[0]

	// git's diff driver protocol: path old-file old-hex old-mode new-file
	// new-hex new-mode [old-path new-path].
	if len(args) >= 7 {
		oldDoc, err := parseDocumentFile(args[1])
		if err != nil {
			return "", err
		}
		newDoc, err := parseDocumentFile(args[4])
		if err != nil {
			return "", err
		}
		return paramdiff.Render(paramdiff.Explain(newDoc, oldDoc)), nil
	}

	e, err := newEnv()
	if err != nil {
		return "", err
	}
	oldDoc, err := metadata.FromCommit(e.repo, path, oldRef)
	if err != nil {
		return "", err
	}
	newDoc, err := metadata.FromCommit(e.repo, path, newRef)
	if err != nil {
		return "", err
	}
	return paramdiff.Render(paramdiff.Explain(newDoc, oldDoc)), nil
}

func parseDocumentFile(path string) (metadata.Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a temp file named by git itself
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return metadata.Parse(data)
}
