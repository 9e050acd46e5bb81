package convert

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/exp/maps"
)

type safetensorMetadata struct {
	Type    string   `json:"dtype"`
	Shape   []uint64 `json:"shape"`
	Offsets []int64  `json:"data_offsets"`
}

func parseSafetensors(ps ...string) ([]Tensor, error) {
	var ts []Tensor
	names := make(map[string]struct{})
	for _, p := range ps {
		f, err := os.Open(p)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		var n int64
		if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
			return nil, err
		}

		b := bytes.NewBuffer(make([]byte, 0, n))
		if _, err = io.CopyN(b, f, n); err != nil {
			return nil, err
		}

		var headers map[string]safetensorMetadata
		if err := json.NewDecoder(b).Decode(&headers); err != nil {
			return nil, err
		}

		keys := maps.Keys(headers)
		slices.Sort(keys)

		for _, key := range keys {
			value := headers[key]
			if value.Type == "" {
				// the __metadata__ entry
				continue
			}

			if len(value.Shape) == 0 {
				return nil, fmt.Errorf("unsupported 0-dimensional tensor %q", key)
			}
			if len(value.Offsets) != 2 || value.Offsets[0] > value.Offsets[1] {
				return nil, fmt.Errorf("%s: invalid data offsets %v", key, value.Offsets)
			}

			name := stateName(key)
			if _, ok := names[name]; ok {
				return nil, fmt.Errorf("duplicate tensor name %q", name)
			}
			names[name] = struct{}{}

			ts = append(ts, safetensor{
				path:   p,
				dtype:  value.Type,
				offset: 8 + n + value.Offsets[0],
				size:   value.Offsets[1] - value.Offsets[0],
				tensorBase: &tensorBase{
					name:  name,
					shape: value.Shape,
				},
			})
		}
	}

	return ts, nil
}

type safetensor struct {
	path   string
	dtype  string
	offset int64
	size   int64
	*tensorBase
}

func (st safetensor) Floats() ([]float64, error) {
	f, err := os.Open(st.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(st.offset, io.SeekStart); err != nil {
		return nil, err
	}

	var f32s []float32
	switch st.dtype {
	case "F32":
		f32s = make([]float32, st.size/4)
		if err := binary.Read(f, binary.LittleEndian, f32s); err != nil {
			return nil, err
		}
	case "F16":
		u16s := make([]uint16, st.size/2)
		if err := binary.Read(f, binary.LittleEndian, u16s); err != nil {
			return nil, err
		}

		f32s = make([]float32, len(u16s))
		for i := range u16s {
			f32s[i] = float16.Frombits(u16s[i]).Float32()
		}
	case "BF16":
		u8s := make([]uint8, st.size)
		if err := binary.Read(f, binary.LittleEndian, u8s); err != nil {
			return nil, err
		}

		f32s = bfloat16.DecodeFloat32(u8s)
	case "F64":
		f64s := make([]float64, st.size/8)
		if err := binary.Read(f, binary.LittleEndian, f64s); err != nil {
			return nil, err
		}

		return st.repack(f64s)
	default:
		return nil, fmt.Errorf("%s: unknown data type %s", st.name, st.dtype)
	}

	f64s := make([]float64, len(f32s))
	for i := range f32s {
		f64s[i] = float64(f32s[i])
	}

	return st.repack(f64s)
}
