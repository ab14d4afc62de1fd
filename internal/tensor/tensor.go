// Package tensor implements the per-parameter byte codec: serializing a
// single multi-dimensional floating-point array to a chunked,
// self-describing byte stream, and bundling many such streams into one
// blob for the large-object store.
package tensor

import (
	"fmt"

	"github.com/git-theta/theta/internal/thetaerr"
)

// Tensor is a multi-dimensional array of float64 values, upcast on ingest
// regardless of the original framework dtype (per spec §9: "The LSH hasher
// operates on f64 internally regardless of input dtype").
type Tensor struct {
	// Shape is the ordered tuple of positive dimension extents.
	Shape []int64
	// DType names the original element width/signedness/byte-order,
	// e.g. "float32", "float16", "bfloat16".
	DType string
	// Data holds the flattened (row-major) element values.
	Data []float64
}

// NumElements returns the product of Shape, i.e. len(Data) for a
// well-formed Tensor.
func (t Tensor) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that Data's length agrees with Shape.
func (t Tensor) Validate() error {
	want := t.NumElements()
	if int64(len(t.Data)) != want {
		return &thetaerr.Error{
			Kind: thetaerr.Decode,
			Err: fmt.Errorf("%w: shape %v implies %d elements, got %d", ErrShapeMismatch, t.Shape, want, len(t.Data)),
		}
	}
	return nil
}

// Equal reports whether a and b have identical shape, dtype, and element
// values (exact equality, no tolerance).
func Equal(a, b Tensor) bool {
	if a.DType != b.DType || len(a.Shape) != len(b.Shape) || len(a.Data) != len(b.Data) {
		return false
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return false
		}
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of t.
func Clone(t Tensor) Tensor {
	shape := make([]int64, len(t.Shape))
	copy(shape, t.Shape)
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return Tensor{Shape: shape, DType: t.DType, Data: data}
}
