package lsh

import (
	"math"

	"github.com/git-theta/theta/internal/tensor"
)

// Hasher produces fixed-length integer signatures approximating
// Euclidean distance between tensors (E2LSH, per spec §4.3), grounded on
// euclidean_lsh.py's floor-based variant (the spec's "floor to i64"
// resolves the ambiguity between that file and the sibling
// rint-based e2lsh.py in favor of floor).
type Hasher struct {
	pool          *Pool
	signatureSize int
	bucketWidth   float64
}

// NewHasher constructs a Hasher over pool, producing signatures of
// length signatureSize with the given bucketWidth. signatureSize must
// not exceed pool.SignatureSize().
func NewHasher(pool *Pool, signatureSize int, bucketWidth float64) *Hasher {
	if signatureSize > pool.SignatureSize() {
		signatureSize = pool.SignatureSize()
	}
	return &Hasher{pool: pool, signatureSize: signatureSize, bucketWidth: bucketWidth}
}

// Hash computes t's LSH signature: for each signature index, the inner
// product of t's flattened values against the virtual hyperplane,
// divided by bucketWidth and floored.
func (h *Hasher) Hash(t tensor.Tensor) []int64 {
	sig := make([]int64, h.signatureSize)
	for s := 0; s < h.signatureSize; s++ {
		var dot float64
		for f, v := range t.Data {
			dot += v * h.pool.HyperplaneElement(f, s)
		}
		sig[s] = int64(math.Floor(dot / h.bucketWidth))
	}
	return sig
}

// Distance computes the approximate Euclidean distance between two
// signatures: (1/sqrt(S)) * ||a-b||_2 * bucketWidth.
func (h *Hasher) Distance(a, b []int64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sumSq float64
	for i := 0; i < n; i++ {
		d := float64(a[i] - b[i])
		sumSq += d * d
	}
	return (1.0 / math.Sqrt(float64(h.signatureSize))) * math.Sqrt(sumSq) * h.bucketWidth
}

// SignatureSize returns the configured signature length S.
func (h *Hasher) SignatureSize() int { return h.signatureSize }
