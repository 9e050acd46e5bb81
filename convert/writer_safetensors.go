package convert

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/edgarlab/secrnn/model/kpi"
	"github.com/edgarlab/secrnn/model/rnn"
)

type namedTensor struct {
	name  string
	shape []uint64
	data  []float64
}

// SaveRegressor writes the regressor's weights as a single-file F32
// safetensors checkpoint.
func SaveRegressor(m *rnn.Regressor, p string) error {
	var ts []namedTensor
	for _, t := range m.Tensors() {
		ts = append(ts, namedTensor{t.Name, shapeU64(t.Shape), t.Data})
	}

	return writeSafetensors(p, ts)
}

// SaveKPI writes the KPI model's weights as a single-file F32
// safetensors checkpoint.
func SaveKPI(m *kpi.Model, p string) error {
	var ts []namedTensor
	for _, t := range m.Tensors() {
		ts = append(ts, namedTensor{t.Name, shapeU64(t.Shape), t.Data})
	}

	return writeSafetensors(p, ts)
}

// writeSafetensors lays payloads out in sorted name order so offsets
// line up with the marshaled header keys.
func writeSafetensors(p string, ts []namedTensor) error {
	slices.SortFunc(ts, func(a, b namedTensor) int {
		return cmp.Compare(a.name, b.name)
	})

	headers := make(map[string]safetensorMetadata, len(ts))
	var offset int64
	for _, t := range ts {
		n := int64(1)
		for _, d := range t.shape {
			n *= int64(d)
		}
		if n != int64(len(t.data)) {
			return fmt.Errorf("%s: %d values for shape %v", t.name, len(t.data), t.shape)
		}

		size := int64(len(t.data)) * 4
		headers[t.name] = safetensorMetadata{
			Type:    "F32",
			Shape:   t.shape,
			Offsets: []int64{offset, offset + size},
		}
		offset += size
	}

	header, err := json.Marshal(headers)
	if err != nil {
		return err
	}

	var b bytes.Buffer
	if err := binary.Write(&b, binary.LittleEndian, int64(len(header))); err != nil {
		return err
	}
	b.Write(header)

	for _, t := range ts {
		f32s := make([]float32, len(t.data))
		for i, v := range t.data {
			f32s[i] = float32(v)
		}

		if err := binary.Write(&b, binary.LittleEndian, f32s); err != nil {
			return err
		}
	}

	return os.WriteFile(p, b.Bytes(), 0o644)
}

func shapeU64(shape []int) []uint64 {
	u64s := make([]uint64, len(shape))
	for i, d := range shape {
		u64s[i] = uint64(d)
	}

	return u64s
}
