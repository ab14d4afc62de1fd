// Package cli wires the Cobra sub-command tree for the git-theta
// binary, assembling the collaborators defined across internal/ into
// the filter, hook, and maintenance entry points spec.md §6 names.
// Grounded on cmd/entire/cli/root.go's NewRootCmd shape and
// cmd/entire/cli/git_operations.go's openRepository helper.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/config"
	"github.com/git-theta/theta/internal/driver"
	"github.com/git-theta/theta/internal/ledger"
	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/logging"
	"github.com/git-theta/theta/internal/lsh"
	"github.com/git-theta/theta/internal/merge"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/paths"
	"github.com/git-theta/theta/internal/sideload"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
	"github.com/git-theta/theta/internal/update"
	"github.com/git-theta/theta/internal/update/dense"
	"github.com/git-theta/theta/internal/vcs"
)

// env bundles the collaborators every filter/hook sub-command needs,
// built once per invocation from the repository the process is running
// in (spec §4.11: config is read lazily, per-command, not cached
// across a long-lived process, since these are one-shot subprocesses).
type env struct {
	repo   *vcs.Repository
	config *config.Config
	store  *lfsadapter.Adapter
	hasher *lsh.Hasher
}

func newEnv() (*env, error) {
	root, err := paths.RepoRoot()
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, err)
	}
	repo, err := vcs.Open(root)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	store, err := lfsadapter.New(lfsadapter.Options{})
	if err != nil {
		return nil, err
	}
	pool := lsh.NewPool(cfg.Repo.LSHSeed, cfg.Repo.LSHPoolSize, cfg.Repo.LSHSignatureSize)
	hasher := lsh.NewHasher(pool, cfg.Repo.LSHSignatureSize, cfg.Repo.LSHBucketWidth)
	return &env{repo: repo, config: cfg, store: store, hasher: hasher}, nil
}

// checkpointPlugin resolves path's checkpoint format, honoring an
// explicit override first (spec §4.6's selection order).
func (e *env) checkpointPlugin(path, explicit string) (checkpointfmt.Plugin, error) {
	name := e.config.CheckpointFormatFor(path, explicit)
	plugin, err := checkpointfmt.Get(name)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, err).WithPath(path)
	}
	return plugin, nil
}

// driverFor builds a Driver for path, loading the side-load file named
// by the resolved configuration.
func (e *env) driverFor(path string) (*driver.Driver, error) {
	sideLoader, err := sideload.Load(e.config.Repo.UpdateDataPath)
	if err != nil {
		return nil, err
	}
	headSHA, _, err := e.repo.HeadSHA()
	if err != nil {
		return nil, err
	}
	return &driver.Driver{
		Store:    e.store,
		VCS:      e.repo,
		Hasher:   e.hasher,
		Config:   &e.config.Repo,
		Path:     path,
		HeadRef:  headSHA,
		SideLoad: sideLoader,
	}, nil
}

// mergeContext builds the merge.Context the filter-driver sub-command
// needs: LoadParam dispatches to whichever update plug-in produced a
// record, WriteDense persists a resolved value as a fresh dense record
// (original_source/git_theta/merges/average.py's write_merged: every
// merge strategy's output starts a new, non-incremental history).
func (e *env) mergeContext(headRef string) *merge.Context {
	updateCtx := &update.Context{Store: e.store}
	return &merge.Context{
		Store: e.store,
		LoadParam: func(ctx context.Context, name string, rec *metadata.ParamRecord) (tensor.Tensor, error) {
			plugin, err := update.Get(rec.Theta.UpdateType)
			if err != nil {
				return tensor.Tensor{}, thetaerr.New(thetaerr.Configuration, err).WithParam(name)
			}
			return plugin.Apply(ctx, updateCtx, rec, name)
		},
		WriteDense: func(ctx context.Context, name string, value tensor.Tensor) (*metadata.ParamRecord, error) {
			plugin, err := update.Get(dense.Name)
			if err != nil {
				return nil, thetaerr.New(thetaerr.Configuration, err)
			}
			lfsMeta, _, err := plugin.Write(ctx, updateCtx, value, name, nil)
			if err != nil {
				return nil, err
			}
			return &metadata.ParamRecord{
				Tensor: metadata.TensorMetadata{Shape: value.Shape, DType: value.DType, Hash: e.hasher.Hash(value)},
				LFS:    lfsMeta,
				Theta:  metadata.ThetaMetadata{UpdateType: dense.Name, LastCommit: headRef},
			}, nil
		},
	}
}

func newLedger() (*ledger.Ledger, error) {
	dir, err := paths.LedgerPath()
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, err)
	}
	return ledger.Open(dir)
}

// initLogging wires internal/logging for the named sub-command, always
// returning a context carrying the component tag. Logging failures are
// never fatal (Init itself falls back to stderr).
func initLogging(name string) context.Context {
	_ = logging.Init(logging.Options{Name: name})
	return logging.WithComponent(context.Background(), name)
}

// fail prints a one-line diagnostic for a thetaerr.Error (or any other
// error) and returns a SilentError so main.go doesn't print it twice.
func fail(err error) error {
	fmt.Fprintln(os.Stderr, err)
	return NewSilentError(err)
}

// ensureMergeArgs parses "key=value" flag strings into merge.Args.
func ensureMergeArgs(pairs []string) (merge.Args, error) {
	args := merge.Args{}
	for _, p := range pairs {
		key, raw, ok := strings.Cut(p, "=")
		if !ok {
			return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("invalid merge argument %q, want key=value", p))
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("invalid merge argument %q: %w", p, err))
		}
		args[key] = value
	}
	return args, nil
}
