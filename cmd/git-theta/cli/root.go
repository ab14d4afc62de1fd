package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version information, set at build time via -ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const gettingStarted = `

Getting Started:
  Run 'git-theta install' inside a Git repository to register the
  clean/smudge filter, merge driver, diff driver, and commit hooks.
  Then 'git-theta track <pattern>' any checkpoint paths you want
  version-controlled a parameter at a time.

`

// NewRootCmd builds the git-theta command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "git-theta",
		Short:         "Git extension for versioning ML model checkpoints parameter by parameter",
		Long:          "git-theta tracks large ML checkpoints as a tree of individually content-addressed parameters." + gettingStarted,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newInstallCmd())
	cmd.AddCommand(newTrackCmd())
	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newCleanCmd())
	cmd.AddCommand(newSmudgeCmd())
	cmd.AddCommand(newFilterDriverCmd())
	cmd.AddCommand(newPostCommitCmd())
	cmd.AddCommand(newPrePushCmd())
	cmd.AddCommand(newExplainCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("git-theta %s (%s)\n", Version, Commit)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
