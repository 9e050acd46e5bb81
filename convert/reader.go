package convert

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Tensor is one named parameter read from a checkpoint file. Floats
// decodes the payload lazily so callers can inspect names and shapes
// without touching the data.
type Tensor interface {
	Name() string
	Shape() []uint64
	SetRepacker(Repacker)
	Floats() ([]float64, error)
}

// Repacker rewrites a decoded payload before it reaches the model.
type Repacker func(name string, data []float64, shape []uint64) ([]float64, error)

type tensorBase struct {
	name     string
	shape    []uint64
	repacker Repacker
}

func (t tensorBase) Name() string {
	return t.name
}

func (t tensorBase) Shape() []uint64 {
	return t.shape
}

func (t *tensorBase) SetRepacker(fn Repacker) {
	t.repacker = fn
}

func (t tensorBase) elements() int64 {
	n := int64(1)
	for _, d := range t.shape {
		n *= int64(d)
	}

	return n
}

func (t tensorBase) repack(data []float64) ([]float64, error) {
	if int64(len(data)) != t.elements() {
		return nil, fmt.Errorf("%s: %d values for shape %v", t.name, len(data), t.shape)
	}

	if t.repacker == nil {
		return data, nil
	}

	return t.repacker(t.name, data, t.shape)
}

// stateName strips the DataParallel wrapper prefix some checkpoints
// carry so keys line up with the model's tensor names.
func stateName(key string) string {
	return strings.TrimPrefix(key, "module.")
}

// ParseFile reads all tensors from a single checkpoint file, selecting
// the reader by extension.
func ParseFile(p string) ([]Tensor, error) {
	switch filepath.Ext(p) {
	case ".safetensors":
		return parseSafetensors(p)
	case ".bin", ".pt", ".pth":
		return parseTorch(p)
	default:
		return nil, fmt.Errorf("unknown checkpoint format %q", filepath.Ext(p))
	}
}

// ParseDir reads the checkpoint blobs in a directory. The fine-tuning
// entry point leaves the regressor and KPI state dicts side by side, so
// a single pattern may match several files; their tensor names must not
// collide.
func ParseDir(d string) ([]Tensor, error) {
	patterns := []struct {
		glob  string
		parse func(...string) ([]Tensor, error)
	}{
		{"*.safetensors", parseSafetensors},
		{"*pytorch_model.bin", parseTorch},
		{"*.pth", parseTorch},
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(d, pattern.glob))
		if err != nil {
			return nil, err
		}

		if len(matches) > 0 {
			return pattern.parse(matches...)
		}
	}

	return nil, errors.New("unknown tensor format")
}
