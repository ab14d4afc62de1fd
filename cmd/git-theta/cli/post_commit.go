package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/metadata"
)

func newPostCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "post-commit",
		Short:  "Post-commit hook: record the commit's object-store OIDs in the ledger",
		Args:   cobra.NoArgs,
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := initLogging("post-commit")
			defer logging.Close()
			if err := runPostCommit(ctx); err != nil {
				return fail(err)
			}
			return nil
		},
	}
}

func runPostCommit(ctx context.Context) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	headSHA, ok, err := e.repo.HeadSHA()
	if err != nil {
		return err
	}
	if !ok {
		logging.Debug(ctx, "no commits yet, nothing to record")
		return nil
	}

	changed, err := e.repo.ChangedPaths(headSHA)
	if err != nil {
		return err
	}

	var tracked []string
	for _, path := range changed {
		if isTrackedPath(e, path) {
			tracked = append(tracked, path)
		}
	}
	logging.Info(ctx, "post-commit scanning tracked paths", "commit", headSHA, "tracked", len(tracked))

	var oids []string
	seen := map[string]bool{}
	for _, path := range tracked {
		doc, err := metadata.FromCommit(e.repo, path, headSHA)
		if err != nil {
			return err
		}
		prev := metadata.Document{}
		if parentSHA, hasParent, err := e.repo.ParentSHA(headSHA); err != nil {
			return err
		} else if hasParent {
			prev, err = metadata.FromCommit(e.repo, path, parentSHA)
			if err != nil {
				return err
			}
		}

		added, _, modified := metadata.Diff(doc, prev)
		for _, rec := range added {
			if !seen[rec.LFS.OID] {
				seen[rec.LFS.OID] = true
				oids = append(oids, rec.LFS.OID)
			}
		}
		for _, rec := range modified {
			if !seen[rec.LFS.OID] {
				seen[rec.LFS.OID] = true
				oids = append(oids, rec.LFS.OID)
			}
		}
	}

	l, err := newLedger()
	if err != nil {
		return err
	}
	if err := l.Write(headSHA, oids); err != nil {
		return err
	}
	logging.Info(ctx, "wrote ledger entry", "commit", headSHA, "oids", len(oids))
	return nil
}

// isTrackedPath reports whether path matches a pattern git-theta's
// `track` sub-command has registered in .thetaconfig.
func isTrackedPath(e *env, path string) bool {
	for _, p := range e.config.Patterns {
		if ok, _ := filepath.Match(p.Pattern, path); ok {
			return true
		}
	}
	return false
}
