package lowrank

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const magic = "THLR"
const formatVersion = 1

// kind distinguishes the two on-disk shapes a low-rank update can take:
// a true low-rank factorization, or (for 1-D parameters, spec §4.5) a
// dense fallback delta.
type kind uint8

const (
	kindFactored kind = iota
	kindDense
)

type document struct {
	shape []int64
	kind  kind

	// factored form
	rows, cols, rank int64
	r, c             []float64

	// dense fallback
	dense []float64
}

func encodeDocument(d document) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	if err := binary.Write(&buf, binary.LittleEndian, uint32(formatVersion)); err != nil {
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
	if err := binary.Write(&buf, binary.LittleEndian, uint8(d.kind)); err != nil {
		return nil, err
	}
	switch d.kind {
	case kindFactored:
		for _, v := range []int64{d.rows, d.cols, d.rank} {
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				return nil, err
			}
		}
		if err := writeFloats(&buf, d.r); err != nil {
			return nil, err
		}
		if err := writeFloats(&buf, d.c); err != nil {
			return nil, err
		}
	case kindDense:
		if err := writeFloats(&buf, d.dense); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("lowrank: unknown document kind %d", d.kind)
	}
	return buf.Bytes(), nil
}

func writeFloats(buf *bytes.Buffer, data []float64) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, data)
}

func readFloats(r io.Reader) ([]float64, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	data := make([]float64, n)
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, err
	}
	return data, nil
}

func decodeDocument(raw []byte) (document, error) {
	r := bytes.NewReader(raw)
	magicBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, magicBuf); err != nil || string(magicBuf) != magic {
		return document{}, fmt.Errorf("lowrank: bad magic")
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil || version != formatVersion {
		return document{}, fmt.Errorf("lowrank: unsupported version")
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
	var k uint8
	if err := binary.Read(r, binary.LittleEndian, &k); err != nil {
		return document{}, err
	}
	d.kind = kind(k)
	switch d.kind {
	case kindFactored:
		vals := make([]int64, 3)
		for i := range vals {
			if err := binary.Read(r, binary.LittleEndian, &vals[i]); err != nil {
				return document{}, err
			}
		}
		d.rows, d.cols, d.rank = vals[0], vals[1], vals[2]
		var err error
		if d.r, err = readFloats(r); err != nil {
			return document{}, err
		}
		if d.c, err = readFloats(r); err != nil {
			return document{}, err
		}
	case kindDense:
		var err error
		if d.dense, err = readFloats(r); err != nil {
			return document{}, err
		}
	default:
		return document{}, fmt.Errorf("lowrank: unknown document kind %d", d.kind)
	}
	return d, nil
}
