package tensor_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/tensor"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []tensor.Tensor{
		{Shape: []int64{4}, DType: "float32", Data: []float64{1.0, 2.0, 3.0, 4.0}},
		{Shape: []int64{2, 2}, DType: "float32", Data: []float64{0, 0, 0, 0}},
		{Shape: []int64{1}, DType: "float64", Data: []float64{7.5}},
	}

	for _, tc := range cases {
		var buf bytes.Buffer
		require.NoError(t, tensor.Encode(&buf, tc, 2))

		got, err := tensor.Decode(&buf)
		require.NoError(t, err)
		require.True(t, tensor.Equal(tc, got))
	}
}

func TestEncodeDefaultChunking(t *testing.T) {
	data := make([]float64, 10000)
	for i := range data {
		data[i] = float64(i) * 0.5
	}
	in := tensor.Tensor{Shape: []int64{10000}, DType: "float32", Data: data}

	var buf bytes.Buffer
	require.NoError(t, tensor.Encode(&buf, in, 0))
	out, err := tensor.Decode(&buf)
	require.NoError(t, err)
	require.True(t, tensor.Equal(in, out))
}

func TestDecodeMalformedInput(t *testing.T) {
	_, err := tensor.Decode(bytes.NewReader([]byte("not a tensor stream")))
	require.Error(t, err)
}

func TestDecodeShapeMismatch(t *testing.T) {
	in := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1, 2, 3, 4}}
	var buf bytes.Buffer
	require.NoError(t, tensor.Encode(&buf, in, 2))

	// Corrupt the stream by dropping its second chunk (8-byte coordinate,
	// 4-byte length, two 8-byte elements) so the chunks present hold
	// fewer elements than the header declares.
	truncated := buf.Bytes()[:buf.Len()-28]
	_, err := tensor.Decode(bytes.NewReader(truncated))
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestBundleUnbundleRoundTrip(t *testing.T) {
	a := tensor.Tensor{Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}}
	b := tensor.Tensor{Shape: []int64{1}, DType: "float32", Data: []float64{3}}

	var bufA, bufB bytes.Buffer
	require.NoError(t, tensor.Encode(&bufA, a, 0))
	require.NoError(t, tensor.Encode(&bufB, b, 0))

	bundle, err := tensor.Bundle(map[string][]byte{
		"a":   bufA.Bytes(),
		"b/c": bufB.Bytes(),
	})
	require.NoError(t, err)

	entries, err := tensor.Unbundle(bundle)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	gotA, err := tensor.Decode(bytes.NewReader(entries["a"]))
	require.NoError(t, err)
	require.True(t, tensor.Equal(a, gotA))

	gotB, err := tensor.Decode(bytes.NewReader(entries["b/c"]))
	require.NoError(t, err)
	require.True(t, tensor.Equal(b, gotB))
}
