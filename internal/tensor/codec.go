package tensor

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// magic identifies the chunked tensor stream format.
var magic = [4]byte{'T', 'H', 'T', 'S'}

const formatVersion = 1

// DefaultChunkElements is the number of float64 elements per data chunk
// when Encode is not given an explicit chunk size. Chosen so a chunk is a
// convenient streaming unit (~512KiB) without fragmenting small tensors.
const DefaultChunkElements = 1 << 16

type header struct {
	Shape       []int64 `json:"shape"`
	DType       string  `json:"dtype"`
	ChunkSize   int     `json:"chunk_size"`
	NumElements int64   `json:"num_elements"`
}

// Encode writes t to w as a chunked, self-describing byte stream: a
// header naming shape and dtype, followed by one or more data chunks
// named by their starting flat-index coordinate. chunkElements <= 0 uses
// DefaultChunkElements.
func Encode(w io.Writer, t Tensor, chunkElements int) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if chunkElements <= 0 {
		chunkElements = DefaultChunkElements
	}

	h := header{Shape: t.Shape, DType: t.DType, ChunkSize: chunkElements, NumElements: t.NumElements()}
	hdrBytes, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("%w: encoding header: %v", ErrDecode, err)
	}

	if _, err := w.Write(magic[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(formatVersion)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(hdrBytes))); err != nil {
		return err
	}
	if _, err := w.Write(hdrBytes); err != nil {
		return err
	}

	total := len(t.Data)
	for start := 0; start < total || (total == 0 && start == 0); start += chunkElements {
		end := start + chunkElements
		if end > total {
			end = total
		}
		chunk := t.Data[start:end]
		if err := binary.Write(w, binary.LittleEndian, uint64(start)); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(chunk))); err != nil {
			return err
		}
		for _, v := range chunk {
			if err := binary.Write(w, binary.LittleEndian, v); err != nil {
				return err
			}
		}
		if total == 0 {
			break
		}
	}

	return nil
}

// Decode reads a chunked tensor stream produced by Encode, reassembling
// the full Tensor. Returns ErrDecode on malformed input and
// ErrShapeMismatch when the header's declared element count disagrees
// with the chunks actually present.
func Decode(r io.Reader) (Tensor, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return Tensor{}, fmt.Errorf("%w: reading magic: %v", ErrDecode, err)
	}
	if gotMagic != magic {
		return Tensor{}, fmt.Errorf("%w: bad magic", ErrDecode)
	}

	var version uint8
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Tensor{}, fmt.Errorf("%w: reading version: %v", ErrDecode, err)
	}
	if version != formatVersion {
		return Tensor{}, fmt.Errorf("%w: unsupported format version %d", ErrDecode, version)
	}

	var hdrLen uint32
	if err := binary.Read(r, binary.LittleEndian, &hdrLen); err != nil {
		return Tensor{}, fmt.Errorf("%w: reading header length: %v", ErrDecode, err)
	}
	hdrBytes := make([]byte, hdrLen)
	if _, err := io.ReadFull(r, hdrBytes); err != nil {
		return Tensor{}, fmt.Errorf("%w: reading header: %v", ErrDecode, err)
	}
	var h header
	if err := json.Unmarshal(hdrBytes, &h); err != nil {
		return Tensor{}, fmt.Errorf("%w: parsing header: %v", ErrDecode, err)
	}

	data := make([]float64, h.NumElements)
	var present uint64
	for {
		var start uint64
		err := binary.Read(r, binary.LittleEndian, &start)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Tensor{}, fmt.Errorf("%w: reading chunk coordinate: %v", ErrDecode, err)
		}
		var count uint32
		if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
			return Tensor{}, fmt.Errorf("%w: reading chunk length: %v", ErrDecode, err)
		}
		if start+uint64(count) > uint64(len(data)) {
			return Tensor{}, fmt.Errorf("%w: chunk at %d+%d exceeds declared %d elements", ErrShapeMismatch, start, count, len(data))
		}
		present += uint64(count)
		for i := uint64(0); i < uint64(count); i++ {
			var v float64
			if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
				return Tensor{}, fmt.Errorf("%w: reading element: %v", ErrDecode, err)
			}
			data[start+i] = v
		}
	}
	if present != uint64(len(data)) {
		return Tensor{}, fmt.Errorf("%w: chunks hold %d elements, header declares %d", ErrShapeMismatch, present, len(data))
	}

	t := Tensor{Shape: h.Shape, DType: h.DType, Data: data}
	if err := t.Validate(); err != nil {
		return Tensor{}, err
	}
	return t, nil
}
