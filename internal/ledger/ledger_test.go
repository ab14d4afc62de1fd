package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/git-theta/theta/internal/ledger"
)

const (
	commitA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	commitB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	oid1    = "1111111111111111111111111111111111111111111111111111111111111111111111"[:64]
	oid2    = "2222222222222222222222222222222222222222222222222222222222222222222222"[:64]
)

func TestWriteReadRoundTrip(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, l.Write(commitA, []string{oid1, oid2}))

	oids, ok, err := l.Read(commitA)
	require.NoError(t, err)
	require.True(t, ok)
	require.ElementsMatch(t, []string{oid1, oid2}, oids)
}

func TestReadMissingCommitReturnsFalse(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)

	_, ok, err := l.Read(commitB)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWriteRejectsMalformedCommitHash(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	require.Error(t, l.Write("not-a-hash", []string{oid1}))
}

func TestWriteRejectsMalformedOID(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	require.Error(t, l.Write(commitA, []string{"short"}))
}

type fakeLister struct {
	commits []string
}

func (f fakeLister) CommitsBetween(string, string) ([]string, error) {
	return f.commits, nil
}

func TestOIDsInRangeUnionsAcrossCommitsAndDedupes(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, l.Write(commitA, []string{oid1}))
	require.NoError(t, l.Write(commitB, []string{oid1, oid2}))

	oids, err := l.OIDsInRange(fakeLister{commits: []string{commitA, commitB}}, "0000000000000000000000000000000000000000", commitB)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{oid1, oid2}, oids)
}
