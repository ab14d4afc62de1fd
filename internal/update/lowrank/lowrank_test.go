package lowrank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/update"
	"github.com/git-theta/theta/internal/update/lowrank"
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

func TestLowRank2DWriteApplyRoundTrip(t *testing.T) {
	prev := tensor.Tensor{Shape: []int64{3, 2}, DType: "float32", Data: []float64{1, 2, 3, 4, 5, 6}}
	newValue := tensor.Tensor{Shape: []int64{3, 2}, DType: "float32", Data: []float64{2, 3, 4, 5, 6, 7}}

	p := lowrank.Plugin{}
	prevRecord := &metadata.ParamRecord{}
	ictx := newTestContext(t, prev)

	ptr, overrideHash, err := p.Write(context.Background(), ictx, newValue, "w", prevRecord)
	require.NoError(t, err)
	require.Nil(t, overrideHash)

	record := &metadata.ParamRecord{LFS: ptr}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	for i := range newValue.Data {
		require.InDelta(t, newValue.Data[i], got.Data[i], 1e-6)
	}
}

func Test1DFallsBackToDenseDelta(t *testing.T) {
	prev := tensor.Tensor{Shape: []int64{3}, DType: "float32", Data: []float64{1, 2, 3}}
	newValue := tensor.Tensor{Shape: []int64{3}, DType: "float32", Data: []float64{1.5, 2.5, 3.5}}

	p := lowrank.Plugin{}
	ictx := newTestContext(t, prev)

	ptr, _, err := p.Write(context.Background(), ictx, newValue, "w", &metadata.ParamRecord{})
	require.NoError(t, err)

	record := &metadata.ParamRecord{LFS: ptr}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	for i := range newValue.Data {
		require.InDelta(t, newValue.Data[i], got.Data[i], 1e-9)
	}
}

func TestWriteRequiresPreviousValue(t *testing.T) {
	p := lowrank.Plugin{}
	ictx := newTestContext(t, tensor.Tensor{})
	newValue := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{1, 2, 3, 4}}

	_, _, err := p.Write(context.Background(), ictx, newValue, "w", nil)
	require.Error(t, err)
}
