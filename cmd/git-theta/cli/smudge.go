package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/metadata"
)

func newSmudgeCmd() *cobra.Command {
	var checkpointFormat string
	cmd := &cobra.Command{
		Use:   "smudge <path>",
		Short: "Filter-smudge entry point: Metadata document in, checkpoint bytes out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := initLogging("smudge")
			defer logging.Close()
			if err := runSmudge(ctx, args[0], checkpointFormat, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointFormat, "checkpoint-format", "", "override the checkpoint format plug-in for this invocation")
	return cmd
}

func runSmudge(ctx context.Context, path, checkpointFormat string, in io.Reader, out io.Writer) error {
	ctx = logging.WithPath(ctx, path)
	e, err := newEnv()
	if err != nil {
		return err
	}
	plugin, err := e.checkpointPlugin(path, checkpointFormat)
	if err != nil {
		return err
	}
	d, err := e.driverFor(path)
	if err != nil {
		return err
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	doc, err := metadata.Parse(raw)
	if err != nil {
		return err
	}

	logging.Info(ctx, "smudging checkpoint")
	flat, err := d.Smudge(ctx, doc)
	if err != nil {
		return err
	}

	return plugin.Save(out, flat)
}
