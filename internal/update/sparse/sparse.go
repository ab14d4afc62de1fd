// Package sparse implements the "sparse" update plugin: a
// compressed-sparse-row delta against the previous value, with
// below-threshold entries zeroed (spec §4.5), grounded on
// original_source/git_theta/updates/sparse.py's delta-against-apply
// shape.
package sparse

import (
	"context"
	"fmt"
	"math"

	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
	"github.com/git-theta/theta/internal/update"
)

const Name = "sparse"

// Threshold zeroes delta entries with magnitude below it, matching the
// sparsifying behavior spec §4.5 describes generically ("values below a
// small threshold zeroed").
const Threshold = 1e-6

type Plugin struct{}

func init() {
	update.Register(Plugin{})
}

func (Plugin) Name() string { return Name }

func (Plugin) WillUpdate(string) bool { return false }

func (Plugin) Write(ctx context.Context, ictx *update.Context, newValue tensor.Tensor, name string, prev *metadata.ParamRecord) (metadata.LFSMetadata, []int64, error) {
	prevTensor, err := update.RequirePrevious(ctx, ictx, name, prev)
	if err != nil {
		return metadata.LFSMetadata{}, nil, err
	}
	if len(prevTensor.Data) != len(newValue.Data) {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s has %d elements, previous has %d", thetaerr.ErrDimensionMismatch, name, len(newValue.Data), len(prevTensor.Data)))
	}

	rows, cols := rowsAndCols(newValue.Shape)
	d := document{shape: cloneShape(newValue.Shape), rows: rows, cols: cols}
	d.indptr = make([]uint32, rows+1)
	for r := int64(0); r < rows; r++ {
		d.indptr[r] = uint32(len(d.indices))
		for c := int64(0); c < cols; c++ {
			flat := r*cols + c
			delta := newValue.Data[flat] - prevTensor.Data[flat]
			if math.Abs(delta) < Threshold {
				continue
			}
			d.indices = append(d.indices, uint32(c))
			d.data = append(d.data, delta)
		}
	}
	d.indptr[rows] = uint32(len(d.indices))

	raw, err := encodeDocument(d)
	if err != nil {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding sparse update for %s: %w", name, err))
	}
	ptr, err := ictx.Store.Write(ctx, raw)
	if err != nil {
		return metadata.LFSMetadata{}, nil, err
	}
	return ptr, nil, nil
}

func (Plugin) Apply(ctx context.Context, ictx *update.Context, record *metadata.ParamRecord, name string) (tensor.Tensor, error) {
	// record.Theta.LastCommit names the commit this delta was computed
	// against; LoadPrevious resolves that commit's own record for name
	// and recursively applies whatever plugin it names.
	prevTensor, err := update.RequirePrevious(ctx, ictx, name, record)
	if err != nil {
		return tensor.Tensor{}, err
	}

	raw, err := ictx.Store.Read(ctx, record.LFS)
	if err != nil {
		return tensor.Tensor{}, err
	}
	d, err := decodeDocument(raw)
	if err != nil {
		return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding sparse update for %s: %w", name, err))
	}
	if int64(len(prevTensor.Data)) != d.rows*d.cols {
		return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s previous value has %d elements, update expects %d", thetaerr.ErrDimensionMismatch, name, len(prevTensor.Data), d.rows*d.cols))
	}

	out := tensor.Clone(prevTensor)
	out.Shape = cloneShape(d.shape)
	for r := int64(0); r < d.rows; r++ {
		for i := d.indptr[r]; i < d.indptr[r+1]; i++ {
			flat := r*d.cols + int64(d.indices[i])
			out.Data[flat] += d.data[i]
		}
	}
	return out, nil
}

func rowsAndCols(shape []int64) (rows, cols int64) {
	if len(shape) == 0 {
		return 1, 1
	}
	rows = shape[0]
	if rows == 0 {
		rows = 1
	}
	cols = 1
	for _, s := range shape[1:] {
		cols *= s
	}
	total := int64(1)
	for _, s := range shape {
		total *= s
	}
	if rows*cols != total {
		cols = total / rows
	}
	return rows, cols
}

func cloneShape(shape []int64) []int64 {
	out := make([]int64, len(shape))
	copy(out, shape)
	return out
}
