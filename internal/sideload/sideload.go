// Package sideload loads the side-loaded update-data file pointed to by
// GIT_THETA_UPDATE_DATA_PATH (spec §6): a JSON document an external
// process (a fine-tuning job, a third-party adapter export) drops next
// to a checkpoint so the clean filter can merge its contents into
// specific parameters without the caller re-running the full training
// loop just to produce a diffable checkpoint. Grounded on
// original_source/git_theta/utils.py's EnvVarConstants.UPDATE_DATA_PATH
// and filters.py's use of update_handler.will_update(param_keys) to
// skip the unchanged-parameter fast path for parameters the file
// covers. Every string value in the file is scanned with a gitleaks
// detector (the teacher's own secret-scanning library, repurposed from
// scanning a coding agent's working tree to scanning this one
// externally-supplied file), since a side-loaded file bypasses the
// normal checkpoint path and its contents have never been reviewed.
package sideload

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/git-theta/theta/internal/thetaerr"
)

// document is the on-disk shape of a side-load file: a flat map from
// dotted parameter name to arbitrary update payload, interpreted by
// whichever update plug-in consumes it.
type document struct {
	Parameters map[string]json.RawMessage `json:"parameters"`
}

// Loader answers which parameters a side-loaded update-data file
// covers and hands back each parameter's raw payload.
type Loader struct {
	path   string
	params map[string]json.RawMessage
}

// Load reads and parses the side-load file at path, rejecting it if
// any value contains what looks like a leaked credential. An empty
// path is not an error: it yields a Loader that covers nothing, since
// GIT_THETA_UPDATE_DATA_PATH defaults to unset.
func Load(path string) (*Loader, error) {
	if path == "" {
		return &Loader{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Configuration, fmt.Errorf("reading update data file %s: %w", path, err)).WithPath(path)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("parsing update data file %s: %w", path, err)).WithPath(path)
	}

	if err := scan(doc); err != nil {
		return nil, thetaerr.New(thetaerr.Integrity, err).WithPath(path)
	}

	return &Loader{path: path, params: doc.Parameters}, nil
}

// Covers reports whether the side-load file carries an entry for name.
func (l *Loader) Covers(name string) bool {
	if l == nil {
		return false
	}
	_, ok := l.params[name]
	return ok
}

// Get returns name's raw payload from the side-load file.
func (l *Loader) Get(name string) (json.RawMessage, bool) {
	if l == nil {
		return nil, false
	}
	raw, ok := l.params[name]
	return raw, ok
}

// Path returns the file the Loader was built from, empty if none.
func (l *Loader) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

var (
	detectorOnce sync.Once
	detector     *detect.Detector
)

func getDetector() *detect.Detector {
	detectorOnce.Do(func() {
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return
		}
		detector = d
	})
	return detector
}

// scan walks every string leaf of doc and refuses the file outright if
// the gitleaks detector flags one as a likely secret. A side-loaded
// file has no commit history to audit after the fact, so it is checked
// before a single byte of it reaches a tensor.
func scan(doc document) error {
	d := getDetector()
	if d == nil {
		return nil
	}
	for name, raw := range doc.Parameters {
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if finding, ok := findSecret(d, value); ok {
			return fmt.Errorf("update data for %q looks like it contains a secret (rule %s), refusing to load", name, finding)
		}
	}
	return nil
}

func findSecret(d *detect.Detector, v any) (string, bool) {
	switch val := v.(type) {
	case string:
		for _, f := range d.DetectString(val) {
			if f.Secret != "" {
				return f.RuleID, true
			}
		}
	case map[string]any:
		for _, child := range val {
			if rule, ok := findSecret(d, child); ok {
				return rule, true
			}
		}
	case []any:
		for _, child := range val {
			if rule, ok := findSecret(d, child); ok {
				return rule, true
			}
		}
	}
	return "", false
}
