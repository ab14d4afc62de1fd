package dense_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/update"
	"github.com/git-theta/theta/internal/update/dense"
)

func newTestContext(t *testing.T) *update.Context {
	t.Helper()
	store, err := lfsadapter.New(lfsadapter.Options{
		CleanCmd:  []string{"sh", "-c", "cat | sha256sum | awk '{printf \"version https://git-lfs.github.com/spec/v1\\noid sha256:%s\\nsize 0\\n\", $1}'"},
		SmudgeCmd: []string{"cat"},
	})
	require.NoError(t, err)
	return &update.Context{Store: store}
}

func TestDenseWriteApplyRoundTrip(t *testing.T) {
	ictx := newTestContext(t)
	p := dense.Plugin{}

	tn := tensor.Tensor{Shape: []int64{3}, DType: "float32", Data: []float64{1, 2, 3}}
	ptr, overrideHash, err := p.Write(context.Background(), ictx, tn, "w", nil)
	require.NoError(t, err)
	require.Nil(t, overrideHash)
	require.NotEmpty(t, ptr.OID)

	record := &metadata.ParamRecord{LFS: ptr}
	got, err := p.Apply(context.Background(), ictx, record, "w")
	require.NoError(t, err)
	require.True(t, tensor.Equal(tn, got))
}

func TestDenseWillUpdateAlwaysFalse(t *testing.T) {
	require.False(t, dense.Plugin{}.WillUpdate("anything"))
}
