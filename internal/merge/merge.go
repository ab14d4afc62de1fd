// Package merge defines the pluggable parameter-merge interface and its
// name-keyed registry (spec.md's merge-driver surface, supplemented from
// original_source/git_theta/merges — not named as a [MODULE] in spec.md
// but present throughout original_source/ as the interactive conflict
// resolver invoked by Git's merge driver on a three-way checkpoint
// conflict), grounded on cmd/entire/cli/strategy's Register/Get/List
// pattern, same as internal/update and internal/checkpointfmt.
package merge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
)

// Context carries the collaborators a Plugin needs to resolve a
// three-way parameter conflict: the object store, and a way to recover
// a record's full tensor value regardless of which update plug-in
// produced it.
type Context struct {
	Store *lfsadapter.Adapter
	// LoadParam recovers the full tensor value described by rec,
	// dispatching to whichever plug-in rec.Theta.UpdateType names.
	LoadParam func(ctx context.Context, name string, rec *metadata.ParamRecord) (tensor.Tensor, error)
	// WriteDense persists a freshly computed tensor as a fresh dense
	// record (every merge strategy's output starts a new, non-incremental
	// history, per original_source/git_theta/merges/average.py's
	// write_merged: "Dense only needs these two...").
	WriteDense func(ctx context.Context, name string, value tensor.Tensor) (*metadata.ParamRecord, error)
}

// Args carries merge-strategy-specific arguments, e.g. the averaging
// weight "alpha" (original_source/git_theta/merges/average.py's
// MergeArgument-typed keyword arguments).
type Args map[string]float64

// Float returns args[key], or def if key is absent.
func (a Args) Float(key string, def float64) float64 {
	if v, ok := a[key]; ok {
		return v
	}
	return def
}

// Plugin is one conflict-resolution strategy for a single parameter,
// identified by Name. ours/theirs/base are nil exactly when that side
// of the three-way merge doesn't have a record for this parameter
// (added on one side, deleted on another, etc.).
type Plugin interface {
	Name() string
	Merge(ctx context.Context, mctx *Context, name string, ours, theirs, base *metadata.ParamRecord, args Args) (*metadata.ParamRecord, error)
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Plugin)
)

// Register adds a plugin to the registry under p.Name().
func Register(p Plugin) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Name()] = p
}

// Get retrieves a plugin by name.
func Get(name string) (Plugin, error) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown merge strategy: %s (available: %v)", name, listLocked())
	}
	return p, nil
}

// List returns all registered plugin names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
