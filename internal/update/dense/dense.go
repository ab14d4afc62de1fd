// Package dense implements the "dense" update plugin: the full tensor
// is stored on every change, grounded on
// original_source/git_theta/updates/dense.py.
package dense

import (
	"bytes"
	"context"
	"fmt"

	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
	"github.com/git-theta/theta/internal/update"
)

const Name = "dense"

type Plugin struct{}

func init() {
	update.Register(Plugin{})
}

func (Plugin) Name() string { return Name }

func (Plugin) WillUpdate(string) bool { return false }

func (Plugin) Write(ctx context.Context, ictx *update.Context, newValue tensor.Tensor, name string, _ *metadata.ParamRecord) (metadata.LFSMetadata, []int64, error) {
	var buf bytes.Buffer
	if err := tensor.Encode(&buf, newValue, 0); err != nil {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding dense update for %s: %w", name, err))
	}
	ptr, err := ictx.Store.Write(ctx, buf.Bytes())
	if err != nil {
		return metadata.LFSMetadata{}, nil, err
	}
	return ptr, nil, nil
}

func (Plugin) Apply(ctx context.Context, ictx *update.Context, record *metadata.ParamRecord, name string) (tensor.Tensor, error) {
	blob, err := ictx.Store.Read(ctx, record.LFS)
	if err != nil {
		return tensor.Tensor{}, err
	}
	t, err := tensor.Decode(bytes.NewReader(blob))
	if err != nil {
		return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding dense value for %s: %w", name, err))
	}
	return t, nil
}
