package average_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/merge"
	"github.com/git-theta/theta/internal/merge/average"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
)

func fakeContext(values map[string]tensor.Tensor) *merge.Context {
	return &merge.Context{
		LoadParam: func(_ context.Context, _ string, rec *metadata.ParamRecord) (tensor.Tensor, error) {
			return values[rec.Theta.UpdateType], nil
		},
		WriteDense: func(_ context.Context, name string, value tensor.Tensor) (*metadata.ParamRecord, error) {
			return &metadata.ParamRecord{
				Tensor: metadata.TensorMetadata{Shape: value.Shape, DType: value.DType},
				Theta:  metadata.ThetaMetadata{UpdateType: "dense"},
			}, nil
		},
	}
}

func TestOursTheirsDefaultsToEvenSplit(t *testing.T) {
	ours := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "ours"}}
	theirs := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "theirs"}}
	mctx := fakeContext(map[string]tensor.Tensor{
		"ours":   {Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}},
		"theirs": {Shape: []int64{2}, DType: "float32", Data: []float64{3, 4}},
	})
	var written tensor.Tensor
	writeDense := mctx.WriteDense
	mctx.WriteDense = func(ctx context.Context, name string, value tensor.Tensor) (*metadata.ParamRecord, error) {
		written = value
		return writeDense(ctx, name, value)
	}

	rec, err := average.OursTheirs{}.Merge(context.Background(), mctx, "w", ours, theirs, nil, nil)
	require.NoError(t, err)
	require.Equal(t, "dense", rec.Theta.UpdateType)
	// 0.5*[1, 2] + 0.5*[3, 4] = [2, 3]
	require.InDeltaSlice(t, []float64{2, 3}, written.Data, 1e-9)
}

func TestOursTheirsRequiresBothSides(t *testing.T) {
	ours := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "ours"}}
	mctx := fakeContext(map[string]tensor.Tensor{
		"ours": {Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}},
	})

	_, err := average.OursTheirs{}.Merge(context.Background(), mctx, "w", ours, nil, nil, nil)
	require.Error(t, err)
}

func TestAllWeightsByConfiguredAlphas(t *testing.T) {
	ours := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "ours"}}
	theirs := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "theirs"}}
	base := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "base"}}

	var written tensor.Tensor
	mctx := &merge.Context{
		LoadParam: func(_ context.Context, _ string, rec *metadata.ParamRecord) (tensor.Tensor, error) {
			switch rec.Theta.UpdateType {
			case "ours":
				return tensor.Tensor{Shape: []int64{1}, DType: "float32", Data: []float64{10}}, nil
			case "theirs":
				return tensor.Tensor{Shape: []int64{1}, DType: "float32", Data: []float64{20}}, nil
			default:
				return tensor.Tensor{Shape: []int64{1}, DType: "float32", Data: []float64{30}}, nil
			}
		},
		WriteDense: func(_ context.Context, _ string, value tensor.Tensor) (*metadata.ParamRecord, error) {
			written = value
			return &metadata.ParamRecord{}, nil
		},
	}

	_, err := average.All{}.Merge(context.Background(), mctx, "w", ours, theirs, base, merge.Args{"alpha1": 0.2, "alpha2": 0.3})
	require.NoError(t, err)
	// 0.2*10 + 0.3*20 + 0.5*30 = 23
	require.InDelta(t, 23.0, written.Data[0], 1e-9)
}

func TestDimensionMismatchIsRejected(t *testing.T) {
	ours := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "ours"}}
	theirs := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "theirs"}}
	mctx := fakeContext(map[string]tensor.Tensor{
		"ours":   {Shape: []int64{2}, DType: "float32", Data: []float64{1, 2}},
		"theirs": {Shape: []int64{3}, DType: "float32", Data: []float64{3, 4, 5}},
	})

	_, err := average.OursTheirs{}.Merge(context.Background(), mctx, "w", ours, theirs, nil, nil)
	require.Error(t, err)
}
