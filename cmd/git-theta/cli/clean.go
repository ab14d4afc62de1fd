package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/metadata"
)

func newCleanCmd() *cobra.Command {
	var checkpointFormat string
	cmd := &cobra.Command{
		Use:   "clean <path>",
		Short: "Filter-clean entry point: checkpoint bytes in, Metadata document out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := initLogging("clean")
			defer logging.Close()
			if err := runClean(ctx, args[0], checkpointFormat, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpointFormat, "checkpoint-format", "", "override the checkpoint format plug-in for this invocation")
	return cmd
}

func runClean(ctx context.Context, path, checkpointFormat string, in io.Reader, out io.Writer) error {
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

	prev := metadata.Document{}
	if d.HeadRef != "" {
		prev, err = metadata.FromCommit(e.repo, path, d.HeadRef)
		if err != nil {
			return err
		}
	}

	native, err := plugin.Load(in)
	if err != nil {
		return fmt.Errorf("loading %s checkpoint: %w", plugin.Name(), err)
	}
	flat, err := plugin.FromFramework(native)
	if err != nil {
		return err
	}

	logging.Info(ctx, "cleaning checkpoint", "parameters", len(flat))
	doc, err := d.Clean(ctx, flat, prev, e.config.Repo.UpdateType)
	if err != nil {
		return err
	}

	data, err := metadata.Serialize(doc)
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
