package sparse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/update"
	"github.com/git-theta/theta/internal/update/sparse"
)

func newTestContext(t *testing.T, previous tensor.Tensor) *update.Context {
	t.Helper()
	store, err := lfsadapter.New(lfsadapter.Options{
		CleanCmd:  []string{"sh", "-c", "cat | sha256sum | awk '{printf \"version https://git-lfs.github.com/spec/v1\\noid sha256:%s\\nsize 0\\n\", $1}'"},
		SmudgeCmd: []string{"cat"},
	})
	require.NoError(t, err)
	return &update.Context{
		Store: store,
		LoadPrevious: func(context.Context, string, *metadata.ParamRecord) (tensor.Tensor, error) {
			return previous, nil
		},
	}
}

func TestSparseWriteApplyRoundTrip(t *testing.T) {
	prev := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{1, 2, 3, 4}}
	newValue := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{1, 2, 3.5, 4}}

	p := sparse.Plugin{}
	prevRecord := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "dense"}}
	ictx := newTestContext(t, prev)

	ptr, overrideHash, err := p.Write(context.Background(), ictx, newValue, "w", prevRecord)
	require.NoError(t, err)
	require.Nil(t, overrideHash)

	record := &metadata.ParamRecord{LFS: ptr, Theta: metadata.ThetaMetadata{UpdateType: sparse.Name}}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	require.True(t, tensor.Equal(newValue, got))
}

func TestSparseWriteRequiresPreviousValue(t *testing.T) {
	p := sparse.Plugin{}
	ictx := newTestContext(t, tensor.Tensor{})
	newValue := tensor.Tensor{Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}}

	_, _, err := p.Write(context.Background(), ictx, newValue, "w", nil)
	require.Error(t, err)
}

func TestSparseBelowThresholdDeltaIsDropped(t *testing.T) {
	prev := tensor.Tensor{Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}}
	newValue := tensor.Tensor{Shape: []int64{2}, DType: "float32", Data: []float64{1 + 1e-9, 2}}

	p := sparse.Plugin{}
	prevRecord := &metadata.ParamRecord{}
	ictx := newTestContext(t, prev)

	ptr, _, err := p.Write(context.Background(), ictx, newValue, "w", prevRecord)
	require.NoError(t, err)

	record := &metadata.ParamRecord{LFS: ptr}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	require.True(t, tensor.Equal(prev, got))
}
