package scalarmul_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/update"
	"github.com/git-theta/theta/internal/update/scalarmul"
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

func TestScalarMultiplicativeRoundTrip(t *testing.T) {
	prev := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{1, 2, 4, 8}}
	newValue := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{2, 6, 8, 24}}

	p := scalarmul.Plugin{}
	ictx := newTestContext(t, prev)

	ptr, overrideHash, err := p.Write(context.Background(), ictx, newValue, "w", &metadata.ParamRecord{})
	require.NoError(t, err)
	require.Nil(t, overrideHash)

	record := &metadata.ParamRecord{LFS: ptr}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	for i := range newValue.Data {
		require.InDelta(t, newValue.Data[i], got.Data[i], 1e-9)
	}
}

func TestZeroPreviousProducesZeroVectorEntry(t *testing.T) {
	prev := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{0, 2, 0, 8}}
	newValue := tensor.Tensor{Shape: []int64{2, 2}, DType: "float32", Data: []float64{0, 6, 0, 24}}

	p := scalarmul.Plugin{}
	ictx := newTestContext(t, prev)

	ptr, _, err := p.Write(context.Background(), ictx, newValue, "w", &metadata.ParamRecord{})
	require.NoError(t, err)

	record := &metadata.ParamRecord{LFS: ptr}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	require.InDelta(t, 0, got.Data[0], 1e-9)
	require.InDelta(t, 0, got.Data[2], 1e-9)
	require.InDelta(t, 6, got.Data[1], 1e-9)
	require.InDelta(t, 24, got.Data[3], 1e-9)
}
