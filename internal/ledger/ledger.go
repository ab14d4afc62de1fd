// Package ledger implements the Commit Ledger (spec §4.9): a
// one-file-per-commit record of which object-store OIDs a commit
// introduced, consulted by the pre-push hook to compute which OIDs a
// push needs to transfer. Grounded on
// cmd/entire/cli/checkpoint/checkpoint.go's sharded-storage precedent,
// adapted to one JSON file per commit instead of per-session shards.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/git-theta/theta/internal/jsonutil"
	"github.com/git-theta/theta/internal/thetaerr"
	"github.com/git-theta/theta/internal/validation"
)

// Ledger persists commit -> introduced-OIDs records under dir, one
// file per commit.
type Ledger struct {
	dir string
}

// Open returns a Ledger rooted at dir, creating it if necessary.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("creating ledger directory: %w", err))
	}
	return &Ledger{dir: dir}, nil
}

type record struct {
	OIDs []string `json:"oids"`
}

func (l *Ledger) path(commitID string) string {
	return filepath.Join(l.dir, commitID+".json")
}

// Write records the OIDs a commit introduced. Both the commit ID and
// every OID are validated against their grammars before anything is
// written.
func (l *Ledger) Write(commitID string, oids []string) error {
	if err := validation.ValidateCommitHash(commitID); err != nil {
		return err
	}
	for _, oid := range oids {
		if err := validation.ValidateOID(oid); err != nil {
			return err
		}
	}
	data, err := jsonutil.MarshalIndentWithNewline(record{OIDs: oids}, "", "  ")
	if err != nil {
		return thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding ledger record for %s: %w", commitID, err))
	}
	if err := os.WriteFile(l.path(commitID), data, 0o644); err != nil {
		return thetaerr.New(thetaerr.Configuration, fmt.Errorf("writing ledger record for %s: %w", commitID, err))
	}
	return nil
}

// Read returns the OIDs recorded for commitID, or (nil, false, nil) if
// no record exists (e.g. a commit made before the ledger existed).
func (l *Ledger) Read(commitID string) ([]string, bool, error) {
	data, err := os.ReadFile(l.path(commitID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, thetaerr.New(thetaerr.Configuration, fmt.Errorf("reading ledger record for %s: %w", commitID, err))
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding ledger record for %s: %w", commitID, err))
	}
	return rec.OIDs, true, nil
}

// CommitLister resolves the commits reachable from newRef but not from
// oldRef; satisfied by *vcs.Repository.
type CommitLister interface {
	CommitsBetween(oldRef, newRef string) ([]string, error)
}

// OIDsInRange returns the union of OIDs introduced by every commit
// between oldRef and newRef (oldRef exclusive), used by the pre-push
// hook to decide what the object store needs to transfer.
func (l *Ledger) OIDsInRange(commits CommitLister, oldRef, newRef string) ([]string, error) {
	hashes, err := commits.CommitsBetween(oldRef, newRef)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, h := range hashes {
		oids, ok, err := l.Read(h)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		for _, oid := range oids {
			if seen[oid] {
				continue
			}
			seen[oid] = true
			out = append(out, oid)
		}
	}
	return out, nil
}
