package kpi

import (
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestParameterCount(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	// 116*64+64 weights into the hidden layer, 64*1+1 out of it.
	if got := m.ParameterCount(); got != 7553 {
		t.Fatalf("parameter count %d, want 7553", got)
	}
}

func TestParameterCountNoHidden(t *testing.T) {
	c := DefaultConfig()
	c.HiddenLayers = 0

	m, err := New(c)
	if err != nil {
		t.Fatal(err)
	}

	if got := m.ParameterCount(); got != 117 {
		t.Fatalf("parameter count %d, want 117", got)
	}
}

func TestTensorNames(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, tensor := range m.Tensors() {
		names = append(names, tensor.Name)
	}

	want := []string{"layers.0.weight", "layers.0.bias", "layers.3.weight", "layers.3.bias"}
	if len(names) != len(want) {
		t.Fatalf("tensor names %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tensor %d named %q, want %q", i, names[i], want[i])
		}
	}
}

func TestTensorNamesNoHidden(t *testing.T) {
	c := DefaultConfig()
	c.HiddenLayers = 0

	m, err := New(c)
	if err != nil {
		t.Fatal(err)
	}

	tensors := m.Tensors()
	if len(tensors) != 2 || tensors[0].Name != "layers.weight" || tensors[1].Name != "layers.bias" {
		t.Fatalf("unexpected tensors %v", tensors)
	}
}

func TestForwardShape(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	m.Init(7)

	x := mat.NewDense(4, 116, nil)
	for i := 0; i < 4; i++ {
		row := x.RawRowView(i)
		for j := range row {
			row[j] = float64(i+j) / 116
		}
	}

	out, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}

	if rows, cols := out.Dims(); rows != 4 || cols != 1 {
		t.Fatalf("output shape (%d, %d), want (4, 1)", rows, cols)
	}
}

func TestForwardGolden(t *testing.T) {
	m, err := New(Config{InputSize: 2, HiddenSize: 2, HiddenLayers: 1, NumClasses: 1, DropoutProb: 0.2})
	if err != nil {
		t.Fatal(err)
	}

	set := func(name string, shape []int, data []float64) {
		t.Helper()
		if err := m.SetTensor(name, shape, data); err != nil {
			t.Fatal(err)
		}
	}
	set("layers.0.weight", []int{2, 2}, []float64{1, 0, 0, 1})
	set("layers.0.bias", []int{2}, []float64{0, 0})
	set("layers.3.weight", []int{1, 2}, []float64{1, 1})
	set("layers.3.bias", []int{1}, []float64{0})

	// Identity projection of [2, -3], then the activation clamps the
	// negative lane, so the output sums to 2.
	out, err := m.Forward(mat.NewDense(1, 2, []float64{2, -3}))
	if err != nil {
		t.Fatal(err)
	}

	if got := out.At(0, 0); got != 2 {
		t.Fatalf("output %v, want 2", got)
	}
}

func TestForwardGoldenNoHidden(t *testing.T) {
	m, err := New(Config{InputSize: 2, HiddenLayers: 0, NumClasses: 1})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetTensor("layers.weight", []int{1, 2}, []float64{3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetTensor("layers.bias", []int{1}, []float64{0.5}); err != nil {
		t.Fatal(err)
	}

	out, err := m.Forward(mat.NewDense(1, 2, []float64{1, 2}))
	if err != nil {
		t.Fatal(err)
	}

	// Plain affine map, no activation in this variant.
	if got := out.At(0, 0); got != 11.5 {
		t.Fatalf("output %v, want 11.5", got)
	}
}

func TestLoss(t *testing.T) {
	m, err := New(Config{InputSize: 2, HiddenLayers: 0, NumClasses: 1})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetTensor("layers.weight", []int{1, 2}, []float64{1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := m.SetTensor("layers.bias", []int{1}, []float64{0}); err != nil {
		t.Fatal(err)
	}

	// Predictions are 3 and 7; labels miss by 1 and 3.
	x := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	loss, err := m.Loss(x, []float64{2, 4})
	if err != nil {
		t.Fatal(err)
	}

	if want := 5.0; loss != want {
		t.Fatalf("loss %v, want %v", loss, want)
	}
}

func TestLossLabelMismatch(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Loss(mat.NewDense(2, 116, nil), []float64{1}); err == nil {
		t.Fatal("expected an error for mismatched label count")
	}
}

func TestForwardErrors(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.Forward(mat.NewDense(1, 115, nil)); err == nil {
		t.Error("expected error for narrow input")
	}
}

func TestDropoutEvalDeterministic(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	m.Init(3)

	x := mat.NewDense(2, 116, nil)
	for i := range x.RawMatrix().Data {
		x.RawMatrix().Data[i] = 0.25
	}

	a, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a, b) {
		t.Error("evaluation outputs differ between calls")
	}

	m.SetTraining(true)
	c, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	d, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	if mat.Equal(c, d) {
		t.Error("training outputs identical, dropout inactive")
	}

	m.SetTraining(false)
	e, err := m.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a, e) {
		t.Error("evaluation output changed after a training pass")
	}
}

func TestSetTensorShapeMismatch(t *testing.T) {
	m, err := New(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	err = m.SetTensor("layers.0.weight", []int{116, 64}, make([]float64, 116*64))
	if err == nil {
		t.Fatal("expected shape mismatch error")
	}
	if !strings.Contains(err.Error(), "layers.0.weight") {
		t.Errorf("error %q does not name the tensor", err)
	}

	if err := m.SetTensor("layers.9.weight", []int{1}, []float64{0}); err == nil {
		t.Error("expected error for unknown tensor")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []Config{
		{InputSize: 0, HiddenSize: 64, HiddenLayers: 1, NumClasses: 1},
		{InputSize: 116, HiddenSize: 0, HiddenLayers: 1, NumClasses: 1},
		{InputSize: 116, HiddenSize: 64, HiddenLayers: 2, NumClasses: 1},
		{InputSize: 116, HiddenSize: 64, HiddenLayers: 1, NumClasses: 1, DropoutProb: 1},
	}

	for _, c := range cases {
		if _, err := New(c); err == nil {
			t.Errorf("New(%+v) succeeded, want error", c)
		}
	}
}
