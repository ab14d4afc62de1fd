package lfsadapter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/lfsadapter"
	"github.com/git-theta/theta/internal/metadata"
)

// fakeCleanCmd and fakeSmudgeCmd emulate `git lfs clean`/`git lfs smudge` with a tiny sh
// script: clean prints a fixed pointer for whatever it reads, smudge
// echoes back a fixed blob. This isolates the adapter's plumbing
// (argv wiring, retry, caching, pointer parsing) from any real LFS
// installation.
func fakeCleanCmd(oid, size string) []string {
	return []string{"sh", "-c", "cat >/dev/null; printf 'version https://git-lfs.github.com/spec/v1\\noid sha256:" + oid + "\\nsize " + size + "\\n'"}
}

func fakeSmudgeCmd(blob string) []string {
	return []string{"sh", "-c", "cat >/dev/null; printf '%s' '" + blob + "'"}
}

func failingCmd() []string {
	return []string{"sh", "-c", "cat >/dev/null; exit 7"}
}

const testOID = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func TestWriteParsesPointerFromSubprocess(t *testing.T) {
	a, err := lfsadapter.New(lfsadapter.Options{CleanCmd: fakeCleanCmd(testOID, "5")})
	require.NoError(t, err)

	ptr, err := a.Write(context.Background(), []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, testOID, ptr.OID)
	require.Equal(t, "5", ptr.Size)
}

func TestReadUsesCacheAfterWrite(t *testing.T) {
	a, err := lfsadapter.New(lfsadapter.Options{
		CleanCmd:  fakeCleanCmd(testOID, "5"),
		SmudgeCmd: failingCmd(),
	})
	require.NoError(t, err)

	ptr, err := a.Write(context.Background(), []byte("hello"))
	require.NoError(t, err)

	blob, err := a.Read(context.Background(), ptr)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), blob)
}

func TestReadInvokesSmudgeOnCacheMiss(t *testing.T) {
	a, err := lfsadapter.New(lfsadapter.Options{SmudgeCmd: fakeSmudgeCmd("world")})
	require.NoError(t, err)

	blob, err := a.Read(context.Background(), metadata.LFSMetadata{
		Version: "https://git-lfs.github.com/spec/v1",
		OID:     testOID,
		Size:    "5",
	})
	require.NoError(t, err)
	require.Equal(t, []byte("world"), blob)
}

func TestWriteSurfacesObjectStoreUnavailableOnSubprocessFailure(t *testing.T) {
	a, err := lfsadapter.New(lfsadapter.Options{CleanCmd: failingCmd(), Retries: 1})
	require.NoError(t, err)

	_, err = a.Write(context.Background(), []byte("hello"))
	require.Error(t, err)
}

func TestReadSurfacesObjectNotFoundOnSubprocessFailure(t *testing.T) {
	a, err := lfsadapter.New(lfsadapter.Options{SmudgeCmd: failingCmd(), Retries: 1})
	require.NoError(t, err)

	_, err = a.Read(context.Background(), metadata.LFSMetadata{OID: testOID, Size: "5"})
	require.Error(t, err)
}

func TestWriteRejectsMalformedPointerOutput(t *testing.T) {
	a, err := lfsadapter.New(lfsadapter.Options{CleanCmd: []string{"sh", "-c", "cat >/dev/null; printf 'not a pointer'"}})
	require.NoError(t, err)

	_, err = a.Write(context.Background(), []byte("hello"))
	require.Error(t, err)
}
