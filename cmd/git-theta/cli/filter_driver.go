package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/merge"
	"github.com/git-theta/theta/internal/metadata"
)

// newFilterDriverCmd builds the `filter-driver` sub-command, wired via
// `merge.theta.driver = git-theta filter-driver %O %A %B %P`: git passes
// temp files for the common ancestor, the current branch, and the
// incoming branch, plus the path, and expects the current-branch file
// (%A) overwritten with the resolved content on success.
func newFilterDriverCmd() *cobra.Command {
	var mergeArgPairs []string
	cmd := &cobra.Command{
		Use:    "filter-driver <ancestor> <current> <other> <path>",
		Short:  "Three-way merge driver for theta-tracked checkpoints",
		Args:   cobra.ExactArgs(4),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := initLogging("filter-driver")
			defer logging.Close()
			mergeArgs, err := ensureMergeArgs(mergeArgPairs)
			if err != nil {
				return fail(err)
			}
			if err := runFilterDriver(ctx, args[0], args[1], args[2], args[3], mergeArgs); err != nil {
				return fail(err)
			}
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&mergeArgPairs, "merge-arg", nil, "key=value argument passed to the configured merge strategy (repeatable), e.g. alpha=0.5")
	return cmd
}

func runFilterDriver(ctx context.Context, ancestorFile, currentFile, otherFile, path string, mergeArgs merge.Args) error {
	ctx = logging.WithPath(ctx, path)
	baseDoc, err := parseDocumentFile(ancestorFile)
	if err != nil {
		return err
	}
	oursDoc, err := parseDocumentFile(currentFile)
	if err != nil {
		return err
	}
	theirsDoc, err := parseDocumentFile(otherFile)
	if err != nil {
		return err
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	headSHA, _, err := e.repo.HeadSHA()
	if err != nil {
		return err
	}
	mctx := e.mergeContext(headSHA)

	resolved, conflicts, err := resolveMerge(ctx, mctx, e.config.Repo.ManualMerge, e.config.Repo.MergeStrategy, mergeArgs, baseDoc, oursDoc, theirsDoc)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return fmt.Errorf("unresolved conflicts in %s: %s", path, strings.Join(conflicts, ", "))
	}

	data, err := metadata.Serialize(resolved)
	if err != nil {
		return err
	}
	return os.WriteFile(currentFile, data, 0o644) //nolint:gosec // currentFile is the temp path git itself created for %A
}

// resolveMerge classifies every parameter touching base/ours/theirs and
// resolves it: unanimous or one-sided changes are taken directly,
// both-sided changes matching the same OID collapse to that value, and
// genuine both-sided divergence is reported as a conflict when
// manualMerge is set or when one side deleted the parameter, and
// otherwise auto-resolves through the strategy named by mergeStrategy.
func resolveMerge(ctx context.Context, mctx *merge.Context, manualMerge bool, mergeStrategy string, mergeArgs merge.Args, base, ours, theirs metadata.Document) (metadata.Document, []string, error) {
	baseFlat := metadata.Flatten(base)
	oursFlat := metadata.Flatten(ours)
	theirsFlat := metadata.Flatten(theirs)

	names := map[string]bool{}
	for name := range baseFlat {
		names[name] = true
	}
	for name := range oursFlat {
		names[name] = true
	}
	for name := range theirsFlat {
		names[name] = true
	}

	var strategy merge.Plugin
	if !manualMerge {
		var err error
		strategy, err = merge.Get(mergeStrategy)
		if err != nil {
			return nil, nil, err
		}
	}

	result := map[string]*metadata.ParamRecord{}
	var conflicts []string
	for name := range names {
		baseRec, theirsRec, oursRec := baseFlat[name], theirsFlat[name], oursFlat[name]

		switch {
		case recordsEqual(oursRec, theirsRec):
			if oursRec != nil {
				result[name] = oursRec
			}
		case !changed(baseRec, oursRec) && changed(baseRec, theirsRec):
			if theirsRec != nil {
				result[name] = theirsRec
			}
		case changed(baseRec, oursRec) && !changed(baseRec, theirsRec):
			if oursRec != nil {
				result[name] = oursRec
			}
		case !changed(baseRec, oursRec) && !changed(baseRec, theirsRec):
			// Neither side touched it (covers the "both absent in base,
			// neither added" case too).
		case manualMerge || oursRec == nil || theirsRec == nil:
			conflicts = append(conflicts, name)
		default:
			merged, err := strategy.Merge(ctx, mctx, name, oursRec, theirsRec, baseRec, mergeArgs)
			if err != nil {
				return nil, nil, err
			}
			result[name] = merged
		}
	}
	if len(conflicts) > 0 {
		return nil, conflicts, nil
	}
	return metadata.Unflatten(result), nil, nil
}

func changed(base, rec *metadata.ParamRecord) bool {
	if base == nil && rec == nil {
		return false
	}
	if base == nil || rec == nil {
		return true
	}
	return base.LFS.OID != rec.LFS.OID
}

func recordsEqual(a, b *metadata.ParamRecord) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.LFS.OID == b.LFS.OID
}
