package lsh_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/lsh"
	"github.com/git-theta/theta/internal/tensor"
)

func newTestHasher() *lsh.Hasher {
	pool := lsh.NewPool(42, 10000, 16)
	return lsh.NewHasher(pool, 16, 1e-4)
}

func TestDistanceNonNegativeAndZeroForEqual(t *testing.T) {
	h := newTestHasher()
	a := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1, 2, 3, 4}}
	sigA := h.Hash(a)
	sigB := h.Hash(a)

	require.Equal(t, sigA, sigB)
	require.Equal(t, 0.0, h.Distance(sigA, sigB))
}

func TestDistanceIsSymmetricAndNonNegative(t *testing.T) {
	h := newTestHasher()
	a := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1, 2, 3, 4}}
	b := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1, 2, 3, 5}}

	sigA, sigB := h.Hash(a), h.Hash(b)
	dAB := h.Distance(sigA, sigB)
	dBA := h.Distance(sigB, sigA)

	require.GreaterOrEqual(t, dAB, 0.0)
	require.InDelta(t, dAB, dBA, 1e-12)
}

func TestSameSeedIsDeterministic(t *testing.T) {
	p1 := lsh.NewPool(7, 1000, 8)
	p2 := lsh.NewPool(7, 1000, 8)
	h1 := lsh.NewHasher(p1, 8, 1e-3)
	h2 := lsh.NewHasher(p2, 8, 1e-3)

	tn := tensor.Tensor{Shape: []int64{3}, DType: "float32", Data: []float64{0.1, 0.2, 0.3}}
	require.Equal(t, h1.Hash(tn), h2.Hash(tn))
}

func TestDifferentSeedsDivergeWithHighProbability(t *testing.T) {
	p1 := lsh.NewPool(1, 1000, 8)
	p2 := lsh.NewPool(2, 1000, 8)
	h1 := lsh.NewHasher(p1, 8, 1e-3)
	h2 := lsh.NewHasher(p2, 8, 1e-3)

	tn := tensor.Tensor{Shape: []int64{5}, DType: "float32", Data: []float64{0.1, -0.2, 0.3, 4, -5}}
	require.NotEqual(t, h1.Hash(tn), h2.Hash(tn))
}

func TestSmallPerturbationBelowToleranceHashesEqual(t *testing.T) {
	pool := lsh.NewPool(99, 10000, 16)
	h := lsh.NewHasher(pool, 16, 1e-2)

	a := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1.0, 2.0, 3.0, 4.0}}
	b := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1.0, 2.0, 3.0, 4.0000001}}

	sigA, sigB := h.Hash(a), h.Hash(b)
	require.Equal(t, sigA, sigB)
}
