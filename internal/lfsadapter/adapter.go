// Package lfsadapter exchanges byte blobs with an external
// content-addressed large-object store, treating it as a subprocess
// that reads a blob on stdin and writes a pointer document on stdout
// (or the reverse), per spec §4.2.
package lfsadapter

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/thetaerr"
)

// Options configures an Adapter.
type Options struct {
	// CleanCmd is the subprocess invoked to turn a blob into a pointer
	// document, e.g. []string{"git", "lfs", "clean"}.
	CleanCmd []string
	// SmudgeCmd is the subprocess invoked to turn a pointer document back
	// into a blob, e.g. []string{"git", "lfs", "smudge"}.
	SmudgeCmd []string
	// CacheSize bounds the per-invocation oid -> blob cache. Zero selects
	// a small default.
	CacheSize int
	// Retries bounds how many attempts a subprocess call gets before
	// surfacing ObjectStoreUnavailable. Zero selects a single attempt,
	// so a failed call is not retried unless a caller asks for more.
	Retries uint
}

func (o Options) withDefaults() Options {
	if len(o.CleanCmd) == 0 {
		o.CleanCmd = []string{"git", "lfs", "clean"}
	}
	if len(o.SmudgeCmd) == 0 {
		o.SmudgeCmd = []string{"git", "lfs", "smudge"}
	}
	if o.CacheSize <= 0 {
		o.CacheSize = 128
	}
	if o.Retries == 0 {
		o.Retries = 1
	}
	return o
}

// Adapter exchanges blobs with the object store. One Adapter is meant to
// live for the lifetime of a single clean/smudge invocation: its cache
// is not persisted across processes.
type Adapter struct {
	opts  Options
	cache *lru.Cache[string, []byte]
}

// New constructs an Adapter from opts.
func New(opts Options) (*Adapter, error) {
	opts = opts.withDefaults()
	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("constructing blob cache: %w", err))
	}
	return &Adapter{opts: opts, cache: cache}, nil
}

// Write uploads blob to the object store and returns its pointer
// metadata.
func (a *Adapter) Write(ctx context.Context, blob []byte) (metadata.LFSMetadata, error) {
	out, err := a.run(ctx, a.opts.CleanCmd, blob)
	if err != nil {
		return metadata.LFSMetadata{}, thetaerr.New(thetaerr.Transient, fmt.Errorf("%w: %v", thetaerr.ErrObjectStoreUnavailable, err))
	}
	ptr, err := metadata.ParsePointer(string(out))
	if err != nil {
		return metadata.LFSMetadata{}, err
	}
	a.cache.Add(ptr.OID, blob)
	return ptr, nil
}

// Read recovers the original blob for pointer p, consulting the
// in-memory cache before invoking the subprocess.
func (a *Adapter) Read(ctx context.Context, p metadata.LFSMetadata) ([]byte, error) {
	if blob, ok := a.cache.Get(p.OID); ok {
		return blob, nil
	}
	out, err := a.run(ctx, a.opts.SmudgeCmd, []byte(p.Pointer()))
	if err != nil {
		return nil, thetaerr.New(thetaerr.MissingData, fmt.Errorf("%w: oid %s: %v", thetaerr.ErrObjectNotFound, p.OID, err))
	}
	a.cache.Add(p.OID, out)
	return out, nil
}

func (a *Adapter) run(ctx context.Context, argv []string, in []byte) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	err := retryDo(ctx, a.opts.Retries, func() error {
		stdout.Reset()
		stderr.Reset()
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv is adapter configuration, not user input
		cmd.Stdin = bytes.NewReader(in)
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		return cmd.Run()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %s", argv[0], err, stderr.String())
	}
	return stdout.Bytes(), nil
}
