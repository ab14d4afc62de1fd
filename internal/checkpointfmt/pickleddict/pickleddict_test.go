package pickleddict_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/checkpointfmt/pickleddict"
	"github.com/git-theta/theta/internal/tensor"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	p := pickleddict.Plugin{}
	flat := checkpointfmt.FlatCheckpoint{
		"layer.weight": {Shape: []int64{2, 2}, DType: "float32", Data: []float64{1, 2, 3, 4}},
		"layer.bias":   {Shape: []int64{2}, DType: "float32", Data: []float64{0.5, -0.5}},
	}

	var buf bytes.Buffer
	require.NoError(t, p.Save(&buf, flat))

	native, err := p.Load(&buf)
	require.NoError(t, err)

	got, err := p.FromFramework(native)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, tensor.Equal(flat["layer.weight"], got["layer.weight"]))
	require.True(t, tensor.Equal(flat["layer.bias"], got["layer.bias"]))
}

func TestFromFrameworkRejectsWrongType(t *testing.T) {
	p := pickleddict.Plugin{}
	_, err := p.FromFramework("not a checkpoint")
	require.Error(t, err)
}
