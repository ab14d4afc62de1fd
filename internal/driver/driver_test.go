package driver_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/config"
	"github.com/git-theta/theta/internal/driver"
	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/lsh"
	"github.com/git-theta/theta/internal/metadata"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/update"
	_ "github.com/git-theta/theta/internal/update/dense"
	_ "github.com/git-theta/theta/internal/update/sparse"
)

type fakeVCS struct {
	docs map[string][]byte
}

func (f fakeVCS) FileAtCommit(path, ref string) ([]byte, bool, error) {
	data, ok := f.docs[ref]
	return data, ok, nil
}

func newTestDriver(t *testing.T, vcs metadata.FileReader, cfg *config.RepoConfig, headRef string) *driver.Driver {
	t.Helper()
	store, err := lfsadapter.New(lfsadapter.Options{
		CleanCmd:  []string{"sh", "-c", "cat | sha256sum | awk '{printf \"version https://git-lfs.github.com/spec/v1\\noid sha256:%s\\nsize 0\\n\", $1}'"},
		SmudgeCmd: []string{"cat"},
	})
	require.NoError(t, err)
	pool := lsh.NewPool(42, 10000, 4)
	hasher := lsh.NewHasher(pool, 4, 1e-2)
	return &driver.Driver{
		Store:   store,
		VCS:     vcs,
		Hasher:  hasher,
		Config:  cfg,
		Path:    "model.pt",
		HeadRef: headRef,
	}
}

func testConfig() *config.RepoConfig {
	return &config.RepoConfig{
		ParameterATOL:  1e-9,
		ParameterRTOL:  1e-5,
		LSHThreshold:   1e-9,
		MaxConcurrency: -1,
	}
}

func denseWrite(t *testing.T, d *driver.Driver, name string, tn tensor.Tensor, lastCommit string) *metadata.ParamRecord {
	t.Helper()
	plugin, err := update.Get("dense")
	require.NoError(t, err)
	ictx := &update.Context{Store: d.Store}
	ptr, _, err := plugin.Write(context.Background(), ictx, tn, name, nil)
	require.NoError(t, err)
	return &metadata.ParamRecord{
		Tensor: metadata.TensorMetadata{Shape: tn.Shape, DType: tn.DType, Hash: d.Hasher.Hash(tn)},
		LFS:    ptr,
		Theta:  metadata.ThetaMetadata{UpdateType: "dense", LastCommit: lastCommit},
	}
}

func TestCleanFreshParameterHasNoPreviousLookup(t *testing.T) {
	d := newTestDriver(t, fakeVCS{docs: map[string][]byte{}}, testConfig(), "")

	newValue := tensor.Tensor{Shape: []int64{3}, DType: "float32", Data: []float64{1, 2, 3}}
	doc, err := d.Clean(context.Background(), checkpointfmt.FlatCheckpoint{"w": newValue}, metadata.Document{}, "dense")
	require.NoError(t, err)

	flat := metadata.Flatten(doc)
	require.Contains(t, flat, "w")
	require.Equal(t, "dense", flat["w"].Theta.UpdateType)
	require.Equal(t, "", flat["w"].Theta.LastCommit)
}

func TestCleanUnchangedParameterKeepsPriorRecordByLSHFastPath(t *testing.T) {
	d := newTestDriver(t, fakeVCS{docs: map[string][]byte{}}, testConfig(), "commitA")

	tn := tensor.Tensor{Shape: []int64{3}, DType: "float32", Data: []float64{1, 2, 3}}
	prevRecord := denseWrite(t, d, "w", tn, "commitA")
	prevDoc := metadata.Unflatten(map[string]*metadata.ParamRecord{"w": prevRecord})

	doc, err := d.Clean(context.Background(), checkpointfmt.FlatCheckpoint{"w": tn}, prevDoc, "dense")
	require.NoError(t, err)

	flat := metadata.Flatten(doc)
	require.True(t, flat["w"].Equal(prevRecord))
}

func TestCleanIncrementalSparseThenSmudgeRoundTrip(t *testing.T) {
	vcs := fakeVCS{docs: map[string][]byte{}}
	d := newTestDriver(t, vcs, testConfig(), "commitA")

	t0 := tensor.Tensor{Shape: []int64{4}, DType: "float32", Data: []float64{1.0, 2.0, 3.0, 4.0}}
	prevRecord := denseWrite(t, d, "w", t0, "commitA")
	prevDoc := metadata.Unflatten(map[string]*metadata.ParamRecord{"w": prevRecord})

	serializedPrev, err := metadata.Serialize(prevDoc)
	require.NoError(t, err)
	vcs.docs["commitA"] = serializedPrev

	// A dtype change forces the "otherwise changed" path unconditionally,
	// independent of the LSH distance computed from this run's hyperplanes.
	newValue := tensor.Tensor{Shape: []int64{4}, DType: "float16", Data: []float64{1.0, 2.0, 3.0, 4.001}}

	doc, err := d.Clean(context.Background(), checkpointfmt.FlatCheckpoint{"w": newValue}, prevDoc, "sparse")
	require.NoError(t, err)

	flat := metadata.Flatten(doc)
	require.Equal(t, "sparse", flat["w"].Theta.UpdateType)
	require.Equal(t, "commitA", flat["w"].Theta.LastCommit)

	checkpoint, err := d.Smudge(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, tensor.Equal(newValue, checkpoint["w"]))
}

func TestSmudgeUnknownUpdateTypeIsConfigurationError(t *testing.T) {
	d := newTestDriver(t, fakeVCS{docs: map[string][]byte{}}, testConfig(), "commitA")
	rec := &metadata.ParamRecord{Theta: metadata.ThetaMetadata{UpdateType: "no-such-plugin"}}
	doc := metadata.Unflatten(map[string]*metadata.ParamRecord{"w": rec})

	_, err := d.Smudge(context.Background(), doc)
	require.Error(t, err)
}
