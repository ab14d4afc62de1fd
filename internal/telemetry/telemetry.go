// Package telemetry deduplicates the one-time "install configured
// filters" notice the install sub-command prints (spec §6), so running
// install again in a second repository on the same machine doesn't
// repeat it. Grounded on
// cmd/entire/cli/telemetry/telemetry.go's machineid.ProtectedID use,
// stripped of everything PostHog: nothing here is sent over the
// network, phoning home contradicts a filter that must run offline in
// CI, so the machine ID only keys a local marker file.
package telemetry

import (
	"os"
	"path/filepath"

	"github.com/denisbrodbeck/machineid"
)

const appID = "git-theta"

// Store tracks which one-time notices have already been shown on this
// machine, persisted as empty marker files under dir.
type Store struct {
	dir string
}

// DefaultStore returns a Store rooted at the user's cache directory,
// creating it if necessary.
func DefaultStore() (*Store, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(cacheDir, appID, "notices")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// NotifyOnce calls emit the first time name is seen on this machine,
// and never again. A failure to determine the machine ID or to persist
// the marker is swallowed: the notice may repeat, but install must
// never fail because of a best-effort dedup check.
func (s *Store) NotifyOnce(name string, emit func()) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		emit()
		return
	}

	marker := filepath.Join(s.dir, name+"-"+id[:12]+".seen")
	if _, err := os.Stat(marker); err == nil {
		return
	}

	emit()
	_ = os.WriteFile(marker, []byte{}, 0o644)
}
