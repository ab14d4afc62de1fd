// Package metadata implements the per-parameter metadata model: parsing,
// serializing, flattening, and diffing the metadata document that
// replaces a checkpoint file in the working tree (spec §3, §4.4).
package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/git-theta/theta/internal/thetaerr"
)

// ParamName is an ordered tuple of string components identifying a
// tensor inside a nested checkpoint, e.g. []string{"layers", "3", "weight"}.
type ParamName []string

// String renders the name in its canonical slash-joined display form,
// e.g. "layers/3/weight".
func (p ParamName) String() string {
	return strings.Join(p, "/")
}

// Clone returns a copy of p.
func (p ParamName) Clone() ParamName {
	cp := make(ParamName, len(p))
	copy(cp, p)
	return cp
}

// TensorMetadata records shape, dtype, and LSH signature for a
// parameter's tensor value.
type TensorMetadata struct {
	Shape []int64 `json:"shape"`
	DType string  `json:"dtype"`
	Hash  []int64 `json:"hash"`
}

// Equal reports whether two TensorMetadata values are identical by
// shape, dtype, and exact signature-vector equality (spec §3).
func (t TensorMetadata) Equal(o TensorMetadata) bool {
	if t.DType != o.DType || len(t.Shape) != len(o.Shape) || len(t.Hash) != len(o.Hash) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range t.Hash {
		if t.Hash[i] != o.Hash[i] {
			return false
		}
	}
	return true
}

// LFSMetadata records the content-addressed object-store pointer for a
// parameter's stored blob.
type LFSMetadata struct {
	Version string `json:"version"`
	OID     string `json:"oid"`
	Size    string `json:"size"`
}

var pointerRegex = regexp.MustCompile(`^version (\S+)\noid sha256:([0-9a-f]{64})\nsize ([0-9]+)\n$`)

// Pointer renders the canonical three-line pointer document for this
// metadata, per spec §3 and §4.2's strict grammar.
func (l LFSMetadata) Pointer() string {
	return fmt.Sprintf("version %s\noid sha256:%s\nsize %s\n", l.Version, l.OID, l.Size)
}

// ParsePointer parses a pointer document produced by Pointer, enforcing
// the grammar ^version <v>\noid sha256:<64-hex>\nsize <digits>\n$ strictly.
func ParsePointer(text string) (LFSMetadata, error) {
	m := pointerRegex.FindStringSubmatch(text)
	if m == nil {
		return LFSMetadata{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: %q", thetaerr.ErrPointerParse, text))
	}
	if _, err := strconv.ParseUint(m[3], 10, 64); err != nil {
		return LFSMetadata{}, thetaerr.New(thetaerr.Decode, fmt.Errorf("%w: invalid size %q", thetaerr.ErrPointerParse, m[3]))
	}
	return LFSMetadata{Version: m[1], OID: m[2], Size: m[3]}, nil
}

// ThetaMetadata records which update plug-in produced a parameter's
// current value and, for incremental plug-ins, the commit at which it
// was last touched.
type ThetaMetadata struct {
	UpdateType string `json:"update_type"`
	LastCommit string `json:"last_commit"`
}

// ParamRecord is the full per-parameter record: tensor metadata,
// object-store metadata, and update metadata (spec §3).
type ParamRecord struct {
	Tensor TensorMetadata `json:"tensor_metadata"`
	LFS    LFSMetadata    `json:"lfs_metadata"`
	Theta  ThetaMetadata  `json:"theta_metadata"`
}

// Equal reports whether two records are identical across all three
// fields.
func (r *ParamRecord) Equal(o *ParamRecord) bool {
	if r == nil || o == nil {
		return r == o
	}
	return r.Tensor.Equal(o.Tensor) && r.LFS == o.LFS && r.Theta == o.Theta
}
