// Package sharded implements a directory-of-tensors checkpoint format:
// parameters are grouped into byte-bounded shards plus a name -> shard
// index, grounded on
// original_source/git_theta/checkpoints/tensorflow_checkpoint.py's
// real on-disk convention (a `.index` file alongside one or more
// `.data-NNNNN-of-MMMMM` shard files) — translated to a single
// self-contained stream since the Plugin interface reads/writes one
// io.Reader/Writer rather than a directory.
package sharded

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/git-theta/theta/internal/checkpointfmt"
	"github.com/git-theta/theta/internal/jsonutil"
	"github.com/git-theta/theta/internal/tensor"
	"github.com/git-theta/theta/internal/thetaerr"
)

const Name = "sharded"

const magic = "THSH"
const formatVersion = 1

// DefaultMaxShardBytes bounds how many bytes of encoded tensor data
// (internal/tensor's per-tensor encoding, before bundling) each shard
// holds before a new shard is started, mirroring the order
// of magnitude of TensorFlow's default shard size.
const DefaultMaxShardBytes = 100 << 20

// Plugin is the sharded checkpoint format. MaxShardBytes of zero
// selects DefaultMaxShardBytes.
type Plugin struct {
	MaxShardBytes int64
}

func init() {
	checkpointfmt.Register(Plugin{})
}

func (Plugin) Name() string { return Name }

func (p Plugin) maxShardBytes() int64 {
	if p.MaxShardBytes > 0 {
		return p.MaxShardBytes
	}
	return DefaultMaxShardBytes
}

func (Plugin) FromFramework(native checkpointfmt.Native) (checkpointfmt.FlatCheckpoint, error) {
	flat, ok := native.(checkpointfmt.FlatCheckpoint)
	if !ok {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("sharded: expected FlatCheckpoint native value, got %T", native))
	}
	return flat, nil
}

func (Plugin) ToFramework(flat checkpointfmt.FlatCheckpoint) (checkpointfmt.Native, error) {
	return flat, nil
}

func (p Plugin) Save(w io.Writer, flat checkpointfmt.FlatCheckpoint) error {
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	var shards [][]byte
	current := map[string][]byte{}
	var currentBytes int64
	maxBytes := p.maxShardBytes()

	flushShard := func() error {
		if len(current) == 0 {
			return nil
		}
		raw, err := tensor.Bundle(current)
		if err != nil {
			return err
		}
		shards = append(shards, raw)
		current = map[string][]byte{}
		currentBytes = 0
		return nil
	}

	for _, name := range names {
		var buf bytes.Buffer
		if err := tensor.Encode(&buf, flat[name], 0); err != nil {
			return thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding tensor %q: %w", name, err))
		}
		if currentBytes > 0 && currentBytes+int64(buf.Len()) > maxBytes {
			if err := flushShard(); err != nil {
				return thetaerr.New(thetaerr.Decode, err)
			}
		}
		index[name] = len(shards)
		current[name] = buf.Bytes()
		currentBytes += int64(buf.Len())
	}
	if err := flushShard(); err != nil {
		return thetaerr.New(thetaerr.Decode, err)
	}

	indexBytes, err := jsonutil.MarshalIndentWithNewline(index, "", "  ")
	if err != nil {
		return thetaerr.New(thetaerr.Decode, fmt.Errorf("encoding shard index: %w", err))
	}

	if _, err := io.WriteString(w, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(formatVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(indexBytes))); err != nil {
		return err
	}
	if _, err := w.Write(indexBytes); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(shards))); err != nil {
		return err
	}
	for _, shard := range shards {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(shard))); err != nil {
			return err
		}
		if _, err := w.Write(shard); err != nil {
			return err
		}
	}
	return nil
}

func (Plugin) Load(r io.Reader) (checkpointfmt.Native, error) {
	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil || string(magicBuf) != magic {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("sharded: bad magic"))
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != formatVersion {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("sharded: unsupported version"))
	}
	var indexLen uint32
	if err := binary.Read(r, binary.LittleEndian, &indexLen); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, err)
	}
	indexBytes := make([]byte, indexLen)
	if _, err := io.ReadFull(r, indexBytes); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, err)
	}
	var index map[string]int
	if err := json.Unmarshal(indexBytes, &index); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding shard index: %w", err))
	}

	var numShards uint32
	if err := binary.Read(r, binary.LittleEndian, &numShards); err != nil {
		return nil, thetaerr.New(thetaerr.Decode, err)
	}

	flat := make(checkpointfmt.FlatCheckpoint, len(index))
	for s := uint32(0); s < numShards; s++ {
		var shardLen uint32
		if err := binary.Read(r, binary.LittleEndian, &shardLen); err != nil {
			return nil, thetaerr.New(thetaerr.Decode, err)
		}
		shardBytes := make([]byte, shardLen)
		if _, err := io.ReadFull(r, shardBytes); err != nil {
			return nil, thetaerr.New(thetaerr.Decode, err)
		}
		entries, err := tensor.Unbundle(shardBytes)
		if err != nil {
			return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("unbundling shard %d: %w", s, err))
		}
		for name, chunk := range entries {
			t, err := tensor.Decode(bytes.NewReader(chunk))
			if err != nil {
				return nil, thetaerr.New(thetaerr.Decode, fmt.Errorf("decoding tensor %q: %w", name, err))
			}
			flat[name] = t
		}
	}
	return flat, nil
}
