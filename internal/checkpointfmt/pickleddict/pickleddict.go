// Package pickleddict implements the "pickled_dict" checkpoint format:
// a flat name -> tensor dict, the Go-native analogue of the Python
// pickled state-dict checkpoints PyTorch uses (spec §4.6), grounded on
// original_source/git_theta/checkpoints/pickled_dict_checkpoint.py's
// shape (it too is "just" a flat dict of arrays; Go has no pickle
// equivalent, so the wire form is internal/tensor's bundle format
// instead of a pickle stream).
package pickleddict

import (
	"bytes"
	"fmt"
	"io"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
)

const Name = "pickled_dict"

type Plugin struct{}

func init() {
	checkpointfmt.Register(Plugin{})
}

func (Plugin) Name() string { return Name }

func (Plugin) Load(r io.Reader) (checkpointfmt.Native, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	entries, err := tensor.Unbundle(raw)
	if err != nil {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("loading pickled_dict checkpoint: %w", err))
	}
	flat := make(checkpointfmt.FlatCheckpoint, len(entries))
	for name, chunk := range entries {
		t, err := tensor.Decode(bytes.NewReader(chunk))
		if err != nil {
			return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding tensor %q: %w", name, err))
		}
		flat[name] = t
	}
	return flat, nil
}

func (Plugin) Save(w io.Writer, flat checkpointfmt.FlatCheckpoint) error {
	entries := make(map[string][]byte, len(flat))
	for name, t := range flat {
		var buf bytes.Buffer
		if err := tensor.Encode(&buf, t, 0); err != nil {
			return thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding tensor %q: %w", name, err))
		}
		entries[name] = buf.Bytes()
	}
	raw, err := tensor.Bundle(entries)
	if err != nil {
		return thetaerr.New(thetaerr.Decode, fmt.Errorf("saving pickled_dict checkpoint: %w", err))
	}
	_, err = w.Write(raw)
	return err
}

// FromFramework is the identity conversion: a pickled_dict's native
// form already is the flat dict.
func (Plugin) FromFramework(native checkpointfmt.Native) (checkpointfmt.FlatCheckpoint, error) {
	flat, ok := native.(checkpointfmt.FlatCheckpoint)
	if !ok {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("pickled_dict: expected FlatCheckpoint native value, got %T", native))
	}
	return flat, nil
}

func (Plugin) ToFramework(flat checkpointfmt.FlatCheckpoint) (checkpointfmt.Native, error) {
	return flat, nil
}
