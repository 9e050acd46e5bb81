package convert

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"
)

func parseTorch(ps ...string) ([]Tensor, error) {
	var ts []Tensor
	names := make(map[string]struct{})
	for _, p := range ps {
		m, err := pytorch.Load(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		entries, err := stateDict(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}

		for _, e := range entries {
			t, ok := e.value.(*pytorch.Tensor)
			if !ok {
				continue
			}
			if len(t.Size) == 0 {
				continue
			}

			shape := make([]uint64, len(t.Size))
			for i, dim := range t.Size {
				shape[i] = uint64(dim)
			}

			name := stateName(e.key)
			if _, ok := names[name]; ok {
				return nil, fmt.Errorf("duplicate tensor name %q", name)
			}
			names[name] = struct{}{}

			ts = append(ts, torch{
				t: t,
				tensorBase: &tensorBase{
					name:  name,
					shape: shape,
				},
			})
		}
	}

	return ts, nil
}

type dictEntry struct {
	key   string
	value any
}

// stateDict flattens the unpickled object. torch.save writes a plain
// dict or an OrderedDict depending on how the state dict was built.
func stateDict(m any) ([]dictEntry, error) {
	var entries []dictEntry
	switch d := m.(type) {
	case *types.Dict:
		for _, k := range d.Keys() {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}

			entries = append(entries, dictEntry{key, d.MustGet(k)})
		}
	case *types.OrderedDict:
		for k, e := range d.Map {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("non-string key %v", k)
			}

			entries = append(entries, dictEntry{key, e.Value})
		}
	default:
		return nil, fmt.Errorf("expected a state dict, got %T", m)
	}

	slices.SortFunc(entries, func(a, b dictEntry) int {
		return cmp.Compare(a.key, b.key)
	})

	return entries, nil
}

type torch struct {
	t *pytorch.Tensor
	*tensorBase
}

func (t torch) Floats() ([]float64, error) {
	var f64s []float64
	switch s := t.t.Source.(type) {
	case *pytorch.FloatStorage:
		f64s = widen(s.Data)
	case *pytorch.HalfStorage:
		f64s = widen(s.Data)
	case *pytorch.BFloat16Storage:
		f64s = widen(s.Data)
	case *pytorch.DoubleStorage:
		f64s = slices.Clone(s.Data)
	default:
		return nil, fmt.Errorf("%s: unsupported storage type %T", t.name, s)
	}

	return t.repack(f64s)
}

func widen(f32s []float32) []float64 {
	f64s := make([]float64, len(f32s))
	for i := range f32s {
		f64s[i] = float64(f32s[i])
	}

	return f64s
}
