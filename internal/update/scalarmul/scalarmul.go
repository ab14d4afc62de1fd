// Package scalarmul implements the "scalar-multiplicative" (activation
// scaling / ia3-style) update plugin: the delta is a broadcastable
// vector such that new ~= prev * vector along the trailing axis (spec
// §4.5), grounded on original_source/git_theta/updates/ia3.py's
// masked-ratio-averaging rule.
package scalarmul

import (
	"bytes"
	"context"
	"fmt"

	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
	"github.com/git-theta/theta/internal/update"
)

const Name = "scalar-multiplicative"

type Plugin struct{}

func init() {
	update.Register(Plugin{})
}

func (Plugin) Name() string { return Name }

func (Plugin) WillUpdate(string) bool { return false }

// Write infers a broadcast vector over the trailing axis such that
// prev * vector approximates newValue, averaging the element-wise ratio
// over every leading-axis position and masking out positions where
// prev is zero (division undefined) from both the ratio and the count
// used to average it.
func (Plugin) Write(ctx context.Context, ictx *update.Context, newValue tensor.Tensor, name string, prev *metadata.ParamRecord) (metadata.LFSMetadata, []int64, error) {
	prevTensor, err := update.RequirePrevious(ctx, ictx, name, prev)
	if err != nil {
		return metadata.LFSMetadata{}, nil, err
	}
	if len(prevTensor.Data) != len(newValue.Data) {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s has %d elements, previous has %d", thetaerr.ErrDimensionMismatch, name, len(newValue.Data), len(prevTensor.Data)))
	}
	lastDim := trailingDim(newValue.Shape)
	leading := len(newValue.Data) / lastDim

	vector := make([]float64, lastDim)
	counts := make([]int, lastDim)
	for i := 0; i < leading; i++ {
		for j := 0; j < lastDim; j++ {
			flat := i*lastDim + j
			if prevTensor.Data[flat] == 0 {
				continue
			}
			vector[j] += newValue.Data[flat] / prevTensor.Data[flat]
			counts[j]++
		}
	}
	for j := range vector {
		if counts[j] == 0 {
			vector[j] = 0
			continue
		}
		vector[j] /= float64(counts[j])
	}

	vt := tensor.Tensor{Shape: []int64{int64(lastDim)}, DType: newValue.DType, Data: vector}
	var buf bytes.Buffer
	if err := tensor.Encode(&buf, vt, 0); err != nil {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding scalar-multiplicative update for %s: %w", name, err))
	}
	ptr, err := ictx.Store.Write(ctx, buf.Bytes())
	if err != nil {
		return metadata.LFSMetadata{}, nil, err
	}
	return ptr, nil, nil
}

func (Plugin) Apply(ctx context.Context, ictx *update.Context, record *metadata.ParamRecord, name string) (tensor.Tensor, error) {
	prevTensor, err := update.RequirePrevious(ctx, ictx, name, record)
	if err != nil {
		return tensor.Tensor{}, err
	}

	raw, err := ictx.Store.Read(ctx, record.LFS)
	if err != nil {
		return tensor.Tensor{}, err
	}
	vt, err := tensor.Decode(bytes.NewReader(raw))
	if err != nil {
		return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding scalar-multiplicative update for %s: %w", name, err))
	}

	lastDim := trailingDim(prevTensor.Shape)
	if lastDim != len(vt.Data) {
		return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s broadcast vector has %d elements, previous trailing axis has %d", thetaerr.ErrDimensionMismatch, name, len(vt.Data), lastDim))
	}

	out := tensor.Clone(prevTensor)
	for i := range out.Data {
		out.Data[i] = prevTensor.Data[i] * vt.Data[i%lastDim]
	}
	return out, nil
}

func trailingDim(shape []int64) int {
	if len(shape) == 0 {
		return 1
	}
	return int(shape[len(shape)-1])
}
