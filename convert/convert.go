// Package convert reads and writes model checkpoints: the PyTorch
// pickles the fine-tuning entry point leaves behind and safetensors for
// interop with other tooling. Loaded weights are mapped onto the Go
// models by their state-dict names; any shape mismatch is fatal and
// names the offending tensor.
package convert

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/edgarlab/secrnn/model/kpi"
	"github.com/edgarlab/secrnn/model/rnn"
)

// Checkpoint blob names written by the fine-tuning entry point.
const (
	RegressorBlob = "rnn_pytorch_model.bin"
	KPIBlob       = "kpi_pytorch_model.bin"
)

// LoadRegressor reads sequence regressor weights from a checkpoint
// file, inferring the architecture from tensor shapes.
func LoadRegressor(p string) (*rnn.Regressor, error) {
	ts, err := ParseFile(p)
	if err != nil {
		return nil, err
	}

	c := rnn.DefaultConfig()
	c.NumLayers = 0
	for _, t := range ts {
		shape := t.Shape()
		switch {
		case strings.HasPrefix(t.Name(), "lstm.weight_ih_l"):
			c.NumLayers++
			if t.Name() != "lstm.weight_ih_l0" {
				continue
			}
			if len(shape) != 2 || shape[0]%4 != 0 {
				return nil, fmt.Errorf("%s: unexpected shape %v", t.Name(), shape)
			}

			c.HiddenSize = int(shape[0] / 4)
			c.InputSize = int(shape[1])
		case t.Name() == "linear_layers.4.weight":
			if len(shape) != 2 {
				return nil, fmt.Errorf("%s: unexpected shape %v", t.Name(), shape)
			}

			c.NumClasses = int(shape[0])
		}
	}
	if c.NumLayers == 0 {
		return nil, fmt.Errorf("%s: no lstm weights found", p)
	}

	m, err := rnn.New(c)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{})
	for _, t := range m.Tensors() {
		want[t.Name] = struct{}{}
	}

	if err := setTensors(m, ts, want); err != nil {
		return nil, err
	}

	return m, nil
}

// LoadKPI reads KPI regressor weights from a checkpoint file. The
// hidden layer variant is detected from the tensor names.
func LoadKPI(p string) (*kpi.Model, error) {
	ts, err := ParseFile(p)
	if err != nil {
		return nil, err
	}

	c := kpi.DefaultConfig()
	found := false
	for _, t := range ts {
		shape := t.Shape()
		switch t.Name() {
		case "layers.weight":
			if len(shape) != 2 {
				return nil, fmt.Errorf("%s: unexpected shape %v", t.Name(), shape)
			}

			c.HiddenLayers = 0
			c.NumClasses = int(shape[0])
			c.InputSize = int(shape[1])
			found = true
		case "layers.0.weight":
			if len(shape) != 2 {
				return nil, fmt.Errorf("%s: unexpected shape %v", t.Name(), shape)
			}

			c.HiddenLayers = 1
			c.HiddenSize = int(shape[0])
			c.InputSize = int(shape[1])
			found = true
		case "layers.3.weight":
			if len(shape) != 2 {
				return nil, fmt.Errorf("%s: unexpected shape %v", t.Name(), shape)
			}

			c.NumClasses = int(shape[0])
		}
	}
	if !found {
		return nil, fmt.Errorf("%s: no kpi weights found", p)
	}

	m, err := kpi.New(c)
	if err != nil {
		return nil, err
	}

	want := make(map[string]struct{})
	for _, t := range m.Tensors() {
		want[t.Name] = struct{}{}
	}

	if err := setTensors(m, ts, want); err != nil {
		return nil, err
	}

	return m, nil
}

type settable interface {
	SetTensor(name string, shape []int, data []float64) error
}

func setTensors(m settable, ts []Tensor, want map[string]struct{}) error {
	for _, t := range ts {
		data, err := t.Floats()
		if err != nil {
			return err
		}

		shape := make([]int, len(t.Shape()))
		for i, d := range t.Shape() {
			shape[i] = int(d)
		}

		if err := m.SetTensor(t.Name(), shape, data); err != nil {
			return err
		}

		delete(want, t.Name())
	}

	if len(want) > 0 {
		names := maps.Keys(want)
		slices.Sort(names)
		return fmt.Errorf("missing tensors: %s", strings.Join(names, ", "))
	}

	return nil
}
