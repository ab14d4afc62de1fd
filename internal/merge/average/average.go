// Package average implements the merge strategies that resolve a
// conflict by loading the contending tensors and writing a fresh
// weighted-average dense parameter — grounded on
// original_source/git_theta/merges/average.py's Average family
// (Average/AverageAll/AverageOursOriginal/AverageTheirsOriginal),
// translated from its async read_parameter/write_merged pair.
package average

import (
	"context"
	"fmt"

	"github.com/git-theta/theta/internal/merge"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
)

func init() {
	merge.Register(OursTheirs{})
	merge.Register(All{})
	merge.Register(OursOriginal{})
	merge.Register(TheirsOriginal{})
}

// OursTheirs averages the current and incoming changes:
// alpha*ours + (1-alpha)*theirs. alpha defaults to 0.5.
type OursTheirs struct{}

// NameOursTheirs is the registered strategy name for OursTheirs.
const NameOursTheirs = "average-ours-theirs"

func (OursTheirs) Name() string { return NameOursTheirs }

func (OursTheirs) Merge(ctx context.Context, mctx *merge.Context, name string, ours, theirs, _ *metadata.ParamRecord, args merge.Args) (*metadata.ParamRecord, error) {
	alpha := args.Float("alpha", 0.5)
	return weightedAverage(ctx, mctx, name, NameOursTheirs,
		term{rec: ours, label: "ours", weight: alpha},
		term{rec: theirs, label: "theirs", weight: 1 - alpha},
	)
}

// All averages all three versions: alpha1*ours + alpha2*theirs +
// (1-alpha1-alpha2)*original.
type All struct{}

// NameAll is the registered strategy name for All.
const NameAll = "average-all"

func (All) Name() string { return NameAll }

func (All) Merge(ctx context.Context, mctx *merge.Context, name string, ours, theirs, base *metadata.ParamRecord, args merge.Args) (*metadata.ParamRecord, error) {
	alpha1 := args.Float("alpha1", 1.0/3)
	alpha2 := args.Float("alpha2", 1.0/3)
	return weightedAverage(ctx, mctx, name, NameAll,
		term{rec: ours, label: "ours", weight: alpha1},
		term{rec: theirs, label: "theirs", weight: alpha2},
		term{rec: base, label: "original", weight: 1 - alpha1 - alpha2},
	)
}

// OursOriginal averages the current change against the common
// ancestor: alpha*ours + (1-alpha)*original.
type OursOriginal struct{}

// NameOursOriginal is the registered strategy name for OursOriginal.
const NameOursOriginal = "average-ours-original"

func (OursOriginal) Name() string { return NameOursOriginal }

func (OursOriginal) Merge(ctx context.Context, mctx *merge.Context, name string, ours, _, base *metadata.ParamRecord, args merge.Args) (*metadata.ParamRecord, error) {
	alpha := args.Float("alpha", 0.5)
	return weightedAverage(ctx, mctx, name, NameOursOriginal,
		term{rec: ours, label: "ours", weight: alpha},
		term{rec: base, label: "original", weight: 1 - alpha},
	)
}

// TheirsOriginal averages the incoming change against the common
// ancestor: alpha*theirs + (1-alpha)*original.
type TheirsOriginal struct{}

// NameTheirsOriginal is the registered strategy name for TheirsOriginal.
const NameTheirsOriginal = "average-theirs-original"

func (TheirsOriginal) Name() string { return NameTheirsOriginal }

func (TheirsOriginal) Merge(ctx context.Context, mctx *merge.Context, name string, _, theirs, base *metadata.ParamRecord, args merge.Args) (*metadata.ParamRecord, error) {
	alpha := args.Float("alpha", 0.5)
	return weightedAverage(ctx, mctx, name, NameTheirsOriginal,
		term{rec: theirs, label: "theirs", weight: alpha},
		term{rec: base, label: "original", weight: 1 - alpha},
	)
}

type term struct {
	rec    *metadata.ParamRecord
	label  string
	weight float64
}

// weightedAverage loads every term's tensor, sums weight*value
// elementwise, and writes the result as a fresh dense record.
func weightedAverage(ctx context.Context, mctx *merge.Context, name, strategy string, terms ...term) (*metadata.ParamRecord, error) {
	var sum tensor.Tensor
	for i, tm := range terms {
		if tm.rec == nil {
			return nil, thetaerr.New(thetaerr.MissingData, fmt.Errorf("%s: missing %s record for %s", strategy, tm.label, name)).WithParam(name).WithPlugin(strategy)
		}
		value, err := mctx.LoadParam(ctx, name, tm.rec)
		if err != nil {
			return nil, thetaerr.New(thetaerr.Plugin, err).WithParam(name).WithPlugin(strategy)
		}
		if i == 0 {
			sum = tensor.Tensor{Shape: value.Shape, DType: value.DType, Data: make([]float64, len(value.Data))}
		} else if len(value.Data) != len(sum.Data) {
			return nil, thetaerr.New(thetaerr.Integrity, fmt.Errorf("%w: %s term %s has %d elements, want %d", thetaerr.ErrDimensionMismatch, strategy, tm.label, len(value.Data), len(sum.Data))).WithParam(name).WithPlugin(strategy)
		}
		for j, v := range value.Data {
			sum.Data[j] += tm.weight * v
		}
	}
	return mctx.WriteDense(ctx, name, sum)
}
