package cli

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
)

func newAddCmd() *cobra.Command {
	var updateType, updateData string
	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Wrap 'git add', passing an update type and side-loaded update data to the clean filter",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging("add")
			defer logging.Close()
			if err := runAdd(args, updateType, updateData); err != nil {
				return fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&updateType, "update-type", "", "update plug-in the clean filter should use for these paths")
	cmd.Flags().StringVar(&updateData, "update-data", "", "path to a side-loaded update data JSON file")
	return cmd
}

func runAdd(paths []string, updateType, updateData string) error {
	// Touch every path first: when only the side-loaded update data file
	// changed, the checkpoint's own bytes may be byte-identical, and git
	// add skips files it doesn't think were modified (spec.md §6: "touches
	// the file so the VCS detects a modification").
	now := time.Now()
	for _, p := range paths {
		if err := os.Chtimes(p, now, now); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("touching %s: %w", p, err)
		}
	}

	cmd := exec.Command("git", append([]string{"add"}, paths...)...) //nolint:gosec // paths are user-supplied CLI arguments, same trust boundary as git add itself
	cmd.Env = addEnv(os.Environ(), updateType, updateData)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// addEnv appends the clean filter's environment overrides to base,
// leaving base untouched when an override is empty.
func addEnv(base []string, updateType, updateData string) []string {
	env := append([]string{}, base...)
	if updateType != "" {
		env = append(env, "GIT_THETA_UPDATE_TYPE="+updateType)
	}
	if updateData != "" {
		env = append(env, "GIT_THETA_UPDATE_DATA_PATH="+updateData)
	}
	return env
}
