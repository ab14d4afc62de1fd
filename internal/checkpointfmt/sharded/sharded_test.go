package sharded_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/checkpointfmt/sharded"
	"github.com/git-theta/theta/internal/tensor"
)

func TestSaveLoadRoundTripSingleShard(t *testing.T) {
	p := sharded.Plugin{}
	flat := checkpointfmt.FlatCheckpoint{
		"a": {Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}},
		"b": {Shape: []int64{3}, DType: "float32", Data: []float64{3, 4, 5}},
	}

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf, flat))

	native, err := p.Load(&buf)
	require.NoError(t, err)
	got, err := p.FromFramework(native)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, tensor.Equal(flat["a"], got["a"]))
	require.True(t, tensor.Equal(flat["b"], got["b"]))
}

func TestSmallMaxShardBytesSplitsAcrossShards(t *testing.T) {
	p := sharded.Plugin{MaxShardBytes: 1}
	flat := checkpointfmt.FlatCheckpoint{
		"a": {Shape: []int64{4}, DType: "float32", Data: []float64{1, 2, 3, 4}},
		"b": {Shape: []int64{4}, DType: "float32", Data: []float64{5, 6, 7, 8}},
		"c": {Shape: []int64{4}, DType: "float32", Data: []float64{9, 10, 11, 12}},
	}

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf, flat))

	native, err := p.Load(&buf)
	require.NoError(t, err)
	got, err := p.FromFramework(native)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for name, want := range flat {
		require.True(t, tensor.Equal(want, got[name]), name)
	}
}
