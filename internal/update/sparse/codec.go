package sparse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/RoaringBitmap/roaring"
)

// document is the on-disk shape of a sparse update: compressed-sparse-row
// layout of the flattened delta (spec §4.5), with the set of touched
// flat indices additionally tracked as a roaring bitmap so downstream
// tooling can answer "is element i touched" in O(1) without rebuilding
// indptr.
type document struct {
	shape   []int64
	rows    int64
	cols    int64
	indptr  []uint32
	indices []uint32
	data    []float64
}

const magic = "THSP"
const formatVersion = 1

func encodeDocument(d document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(formatVersion)); err != nil {
		return nil, err
	}

	bm := roaring.New()
	for rowIdx := 0; rowIdx < len(d.indptr)-1; rowIdx++ {
		start, end := d.indptr[rowIdx], d.indptr[rowIdx+1]
		for i := start; i < end; i++ {
			flat := uint32(int64(rowIdx)*d.cols) + d.indices[i]
			bm.Add(flat)
		}
	}
	bmBytes, err := bm.ToBytes()
	if err != nil {
		return nil, err
	}

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.shape))); err != nil {
		return nil, err
	}
	for _, s := range d.shape {
		if err := binary.Write(&buf, binary.LittleEndian, s); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, d.rows); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, d.cols); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(bmBytes))); err != nil {
		return nil, err
	}
	buf.Write(bmBytes)

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.indptr))); err != nil {
		return nil, err
	}
	for _, v := range d.indptr {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.indices))); err != nil {
		return nil, err
	}
	for _, v := range d.indices {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(d.data))); err != nil {
		return nil, err
	}
	for _, v := range d.data {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeDocument(raw []byte) (document, error) {
	r := bytes.NewReader(raw)
	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil || string(magicBuf) != magic {
		return document{}, fmt.Errorf("sparse: bad magic")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != formatVersion {
		return document{}, fmt.Errorf("sparse: unsupported version")
	}

	var d document
	var shapeLen uint32
	if err := binary.Read(r, binary.LittleEndian, &shapeLen); err != nil {
		return document{}, err
	}
	d.shape = make([]int64, shapeLen)
	for i := range d.shape {
		if err := binary.Read(r, binary.LittleEndian, &d.shape[i]); err != nil {
			return document{}, err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &d.rows); err != nil {
		return document{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &d.cols); err != nil {
		return document{}, err
	}

	var bmLen uint32
	if err := binary.Read(r, binary.LittleEndian, &bmLen); err != nil {
		return document{}, err
	}
	if _, err := io.CopyN(io.Discard, r, int64(bmLen)); err != nil {
		return document{}, err
	}

	var indptrLen uint32
	if err := binary.Read(r, binary.LittleEndian, &indptrLen); err != nil {
		return document{}, err
	}
	d.indptr = make([]uint32, indptrLen)
	for i := range d.indptr {
		if err := binary.Read(r, binary.LittleEndian, &d.indptr[i]); err != nil {
			return document{}, err
		}
	}
	var indicesLen uint32
	if err := binary.Read(r, binary.LittleEndian, &indicesLen); err != nil {
		return document{}, err
	}
	d.indices = make([]uint32, indicesLen)
	for i := range d.indices {
		if err := binary.Read(r, binary.LittleEndian, &d.indices[i]); err != nil {
			return document{}, err
		}
	}
	var dataLen uint32
	if err := binary.Read(r, binary.LittleEndian, &dataLen); err != nil {
		return document{}, err
	}
	d.data = make([]float64, dataLen)
	for i := range d.data {
		if err := binary.Read(r, binary.LittleEndian, &d.data[i]); err != nil {
			return document{}, err
		}
	}
	return d, nil
}
