package tensor

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Bundle packs a name -> encoded-chunk-bytes map into one contiguous byte
// stream. Tar is used because it does not attempt to compress the
// already-incompressible float data and can be decoded entry by entry.
// Each entry costs a 512-byte tar header plus padding of its data to a
// 512-byte boundary, and the stream ends with a 1024-byte trailer.
func Bundle(entries map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		data := entries[name]
		if err := tw.WriteHeader(&tar.Header{
			Name: name,
			Size: int64(len(data)),
			Mode: 0o644,
		}); err != nil {
			return nil, fmt.Errorf("%w: writing bundle entry %q: %v", ErrDecode, name, err)
		}
		if _, err := tw.Write(data); err != nil {
			return nil, fmt.Errorf("%w: writing bundle entry %q: %v", ErrDecode, name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing bundle: %v", ErrDecode, err)
	}
	return buf.Bytes(), nil
}

// Unbundle reverses Bundle, returning the name -> bytes map it packed.
func Unbundle(bundle []byte) (map[string][]byte, error) {
	tr := tar.NewReader(bytes.NewReader(bundle))
	entries := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: reading bundle: %v", ErrDecode, err)
		}
		data := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr, data); err != nil {
			return nil, fmt.Errorf("%w: reading bundle entry %q: %v", ErrDecode, hdr.Name, err)
		}
		entries[hdr.Name] = data
	}
	return entries, nil
}
