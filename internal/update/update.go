// Package update defines the pluggable parameter-update interface and a
// name-keyed registry of plug-ins (spec §4.5), grounded on
// cmd/entire/cli/strategy's Register/Get/List pattern.
package update

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
)

// Context carries the per-invocation collaborators a Plugin needs to do
// its work: the object store, and a way to recursively apply whatever
// plugin produced a parameter's prior value.
type Context struct {
	Store *lfsadapter.Adapter
	// LoadPrevious recovers the full tensor value of name as recorded in
	// prev, delegating to whichever plugin prev.Theta.UpdateType names.
	// Incremental plugins (sparse, low-rank, scalar-multiplicative) call
	// this to get the base they apply their delta to.
	LoadPrevious func(ctx context.Context, name string, prev *metadata.ParamRecord) (tensor.Tensor, error)
}

// Plugin is one parameter update strategy, identified by Name.
type Plugin interface {
	Name() string
	// Write serializes newValue (optionally as a delta against prev) and
	// uploads it through ictx.Store, returning the resulting pointer
	// metadata and, for incremental plugins, the LSH signature of the
	// reconstructed full value (nil when the caller should keep the
	// signature computed from newValue directly).
	Write(ctx context.Context, ictx *Context, newValue tensor.Tensor, name string, prev *metadata.ParamRecord) (metadata.LFSMetadata, []int64, error)
	// Apply recovers the full tensor value described by record.
	Apply(ctx context.Context, ictx *Context, record *metadata.ParamRecord, name string) (tensor.Tensor, error)
	// WillUpdate reports whether a side-loaded update data file covers
	// name. Plugins that never consume one always return false.
	WillUpdate(name string) bool
}

var (
	mu       sync.RWMutex
	registry = make(map[string]Plugin)
)

// Register adds a plugin to the registry under p.Name(). Called from
// plugin packages' init() functions.
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
		return nil, fmt.Errorf("unknown update plugin: %s (available: %v)", name, listLocked())
	}
	return p, nil
}

// List returns all registered plugin names in sorted order.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	return listLocked()
}

// RequirePrevious loads the prior full tensor value for an incremental
// plugin, surfacing MissingPreviousValue when this is the parameter's
// first-ever commit (spec §4.5).
func RequirePrevious(ctx context.Context, ictx *Context, name string, prev *metadata.ParamRecord) (tensor.Tensor, error) {
	if prev == nil {
		return tensor.Tensor{}, thetaerr.New(thetaerr.MissingData, fmt.Errorf("%w: %s", thetaerr.ErrMissingPreviousValue, name))
	}
	return ictx.LoadPrevious(ctx, name, prev)
}

func listLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
