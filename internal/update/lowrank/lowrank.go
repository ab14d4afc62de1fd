// Package lowrank implements the "low-rank" update plugin: the delta
// against the previous value is stored as a rank-k factorization R*C,
// with the rank inferred from an SVD when not configured (spec §4.5),
// grounded on original_source/git_theta/updates/low_rank.py.
package lowrank

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
	"github.com/git-theta/theta/internal/update"
)

const Name = "low-rank"

// SingularValueThreshold is the cutoff below which a singular value is
// treated as numerical noise when inferring rank, matching the
// original's default threshold.
const SingularValueThreshold = 1e-11

// Plugin is the low-rank update plugin. Rank is 0 to infer it from the
// SVD of each delta.
type Plugin struct {
	Rank int
}

func init() {
	update.Register(Plugin{})
}

func (Plugin) Name() string { return Name }

func (Plugin) WillUpdate(string) bool { return false }

func (p Plugin) Write(ctx context.Context, ictx *update.Context, newValue tensor.Tensor, name string, prev *metadata.ParamRecord) (metadata.LFSMetadata, []int64, error) {
	prevTensor, err := update.RequirePrevious(ctx, ictx, name, prev)
	if err != nil {
		return metadata.LFSMetadata{}, nil, err
	}
	if len(prevTensor.Data) != len(newValue.Data) {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s has %d elements, previous has %d", thetaerr.ErrDimensionMismatch, name, len(newValue.Data), len(prevTensor.Data)))
	}

	delta := make([]float64, len(newValue.Data))
	for i := range delta {
		delta[i] = newValue.Data[i] - prevTensor.Data[i]
	}

	var d document
	d.shape = cloneShape(newValue.Shape)
	if len(newValue.Shape) < 2 {
		d.kind = kindDense
		d.dense = delta
	} else {
		rows, cols := rowsAndCols(newValue.Shape)
		d.kind = kindFactored
		d.rows, d.cols = rows, cols
		d.rank, d.r, d.c = factorize(delta, int(rows), int(cols), p.Rank)
	}

	raw, err := encodeDocument(d)
	if err != nil {
		return metadata.LFSMetadata{}, nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding low-rank update for %s: %w", name, err))
	}
	ptr, err := ictx.Store.Write(ctx, raw)
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
	d, err := decodeDocument(raw)
	if err != nil {
		return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding low-rank update for %s: %w", name, err))
	}

	out := tensor.Clone(prevTensor)
	out.Shape = cloneShape(d.shape)
	switch d.kind {
	case kindDense:
		if len(d.dense) != len(out.Data) {
			return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s dense delta has %d elements, previous has %d", thetaerr.ErrDimensionMismatch, name, len(d.dense), len(out.Data)))
		}
		for i := range out.Data {
			out.Data[i] += d.dense[i]
		}
	case kindFactored:
		if d.rows*d.cols != int64(len(out.Data)) {
			return tensor.Tensor{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %s previous value has %d elements, update expects %d", thetaerr.ErrDimensionMismatch, name, len(out.Data), d.rows*d.cols))
		}
		product := reconstitute(d.r, d.c, int(d.rows), int(d.cols), int(d.rank))
		for i := range out.Data {
			out.Data[i] += product[i]
		}
	}
	return out, nil
}

// factorize computes a rank-k factorization delta ~= R*C via SVD, k
// either fixed (configuredRank > 0) or inferred as the count of
// singular values above SingularValueThreshold.
func factorize(delta []float64, rows, cols, configuredRank int) (rank int64, r, c []float64) {
	m := mat.NewDense(rows, cols, delta)

	var svd mat.SVD
	ok := svd.Factorize(m, mat.SVDThin)
	if !ok {
		// Degenerate input (all zero, or pathological shape): fall back
		// to a rank-0 factorization that reconstitutes to all zeros.
		return 0, nil, nil
	}

	values := svd.Values(nil)
	k := configuredRank
	if k <= 0 {
		for _, s := range values {
			if s > SingularValueThreshold {
				k++
			}
		}
	}
	if k > len(values) {
		k = len(values)
	}
	if k == 0 {
		return 0, nil, nil
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	rMat := u.Slice(0, rows, 0, k)
	rData := make([]float64, rows*k)
	for i := 0; i < rows; i++ {
		for j := 0; j < k; j++ {
			rData[i*k+j] = rMat.At(i, j)
		}
	}

	cData := make([]float64, k*cols)
	for i := 0; i < k; i++ {
		for j := 0; j < cols; j++ {
			cData[i*cols+j] = v.At(j, i) * values[i]
		}
	}

	return int64(k), rData, cData
}

func reconstitute(r, c []float64, rows, cols, rank int) []float64 {
	out := make([]float64, rows*cols)
	if rank == 0 {
		return out
	}
	rMat := mat.NewDense(rows, rank, r)
	cMat := mat.NewDense(rank, cols, c)
	var product mat.Dense
	product.Mul(rMat, cMat)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = product.At(i, j)
		}
	}
	return out
}

func rowsAndCols(shape []int64) (rows, cols int64) {
	rows = shape[0]
	cols = 1
	for _, s := range shape[1:] {
		cols *= s
	}
	return rows, cols
}

func cloneShape(shape []int64) []int64 {
	out := make([]int64, len(shape))
	copy(out, shape)
	return out
}
