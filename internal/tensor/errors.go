package tensor

import "errors"

// ErrDecode is returned when a chunked tensor stream is malformed.
var ErrDecode = errors.New("malformed tensor encoding")

// ErrShapeMismatch is returned when a decoded header's shape disagrees
// with the number of elements actually present in the data chunks.
var ErrShapeMismatch = errors.New("tensor shape mismatch")
