// Package lsh implements Euclidean locality-sensitive hashing (E2LSH)
// signatures for tensors, grounded on the upstream project's
// lsh/pool.py and lsh/euclidean_lsh.py: a deterministic randomness pool
// gives O(1) access to an unbounded virtual hyperplane matrix without
// materializing it.
package lsh

import "math/rand"

// Pool is a deterministic source of Gaussian samples and per-signature
// offsets, used to compute virtual hyperplane elements on demand.
type Pool struct {
	samples []float64 // P zero-mean, unit-variance Gaussian samples
	offsets []int64    // S per-signature 64-bit offsets
}

// NewPool builds a Pool with poolSize Gaussian samples and
// signatureSize per-signature offsets, both drawn deterministically from
// a source seeded with seed. Unlike the upstream Python package, which
// ships pre-baked .npy files, determinism here comes entirely from the
// fixed seed: the same (seed, poolSize, signatureSize) always yields the
// same pool.
func NewPool(seed int64, poolSize, signatureSize int) *Pool {
	r := rand.New(rand.NewSource(seed))

	samples := make([]float64, poolSize)
	for i := range samples {
		samples[i] = r.NormFloat64()
	}

	offsets := make([]int64, signatureSize)
	for i := range offsets {
		offsets[i] = r.Int63()
	}

	return &Pool{samples: samples, offsets: offsets}
}

// HyperplaneElement returns the (featureIdx, sigIdx) entry of the
// virtual hyperplane matrix: pool[(featureIdx XOR offsets[sigIdx]) mod P].
func (p *Pool) HyperplaneElement(featureIdx int, sigIdx int) float64 {
	idxHash := p.offsets[sigIdx]
	poolIdx := xorMod(int64(featureIdx), idxHash, int64(len(p.samples)))
	return p.samples[poolIdx]
}

// SignatureSize returns the number of signature positions this pool
// supports (the length of offsets).
func (p *Pool) SignatureSize() int { return len(p.offsets) }

func xorMod(a, b, m int64) int64 {
	x := a ^ b
	mod := x % m
	if mod < 0 {
		mod += m
	}
	return mod
}
