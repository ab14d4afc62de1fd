// Package checkpointfmt defines the pluggable checkpoint-format
// interface and its name-keyed registry (spec §4.6), grounded on
// cmd/entire/cli/strategy's Register/Get/List pattern.
package checkpointfmt

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/git-theta/theta/internal/tensor"
)

// FlatCheckpoint is the framework-agnostic form every plug-in converts
// to and from: a flat parameter-name -> tensor map, already in the
// shape the Metadata Model and Filter Driver operate on.
type FlatCheckpoint map[string]tensor.Tensor

// Native is whatever a plug-in's Load returns before FromFramework
// flattens it — an opaque value only that plug-in understands. Both
// built-in plug-ins (pickled_dict and sharded) use a FlatCheckpoint as
// their native value.
type Native any

// Plugin is one checkpoint-format backend, identified by Name.
type Plugin interface {
	Name() string
	Load(r io.Reader) (Native, error)
	Save(w io.Writer, flat FlatCheckpoint) error
	FromFramework(native Native) (FlatCheckpoint, error)
	ToFramework(flat FlatCheckpoint) (Native, error)
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
		return nil, fmt.Errorf("unknown checkpoint format: %s (available: %v)", name, listLocked())
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

// Default is the checkpoint format used when neither an explicit
// argument nor repository configuration names one (spec §4.6's
// selection-order fallback).
const Default = "pickled_dict"
