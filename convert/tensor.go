package convert

import (
	"fmt"

	"github.com/pdevine/tensor"
	"github.com/pdevine/tensor/native"
)

// Gate is one block of a packed LSTM parameter.
type Gate struct {
	Name string
	Data []float64
}

var gateNames = []string{"input", "forget", "cell", "output"}

// SplitGates slices a packed LSTM weight or bias along its leading
// dimension into the four gate blocks.
func SplitGates(name string, shape []uint64, data []float64) ([]Gate, error) {
	if len(shape) == 0 || shape[0]%4 != 0 {
		return nil, fmt.Errorf("%s: not a packed gate tensor, shape %v", name, shape)
	}

	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}

	rows := dims[0] / 4
	gates := make([]Gate, 0, len(gateNames))
	for i, gate := range gateNames {
		var tt tensor.Tensor = tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
		tt, err := tt.Slice(tensor.S(i*rows, (i+1)*rows))
		if err != nil {
			return nil, err
		}

		tt = tensor.Materialize(tt)

		// flatten so the block reads as a vector
		if err := tt.Reshape(tt.Shape().TotalSize()); err != nil {
			return nil, err
		}

		v, err := native.VectorF64(tt.(*tensor.Dense))
		if err != nil {
			return nil, err
		}

		gates = append(gates, Gate{Name: gate, Data: v})
	}

	return gates, nil
}
