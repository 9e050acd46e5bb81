// Package kpi implements the frozen KPI regressor: a small feed-forward
// network over a filing's numeric KPI vector. During fine-tuning it only
// contributes an auxiliary loss and is never updated.
package kpi

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Config fixes the network's dimensions. HiddenLayers selects between a
// single projection (0) and one hidden layer (1).
type Config struct {
	InputSize    int     `json:"kpi_input_size"`
	HiddenSize   int     `json:"kpi_hidden_size"`
	HiddenLayers int     `json:"kpi_hidden_layers"`
	NumClasses   int     `json:"kpi_num_classes"`
	DropoutProb  float64 `json:"kpi_dropout_prob"`
}

func DefaultConfig() Config {
	return Config{
		InputSize:    116,
		HiddenSize:   64,
		HiddenLayers: 1,
		NumClasses:   1,
		DropoutProb:  0.2,
	}
}

type Model struct {
	config Config

	w1 *mat.Dense // (hidden, in), or (classes, in) with no hidden layer
	b1 []float64
	w2 *mat.Dense // (classes, hidden); nil with no hidden layer
	b2 []float64

	training bool
	rng      *rand.Rand
}

// New builds a model with zeroed weights; load a checkpoint into it or
// draw fresh weights with Init.
func New(c Config) (*Model, error) {
	if c.InputSize <= 0 || c.NumClasses <= 0 {
		return nil, fmt.Errorf("invalid dimensions: input=%d classes=%d", c.InputSize, c.NumClasses)
	}
	if c.DropoutProb < 0 || c.DropoutProb >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %v", c.DropoutProb)
	}

	m := Model{config: c, rng: rand.New(rand.NewSource(1))}
	switch c.HiddenLayers {
	case 0:
		m.w1 = mat.NewDense(c.NumClasses, c.InputSize, nil)
		m.b1 = make([]float64, c.NumClasses)
	case 1:
		if c.HiddenSize <= 0 {
			return nil, fmt.Errorf("hidden size must be positive, got %d", c.HiddenSize)
		}
		m.w1 = mat.NewDense(c.HiddenSize, c.InputSize, nil)
		m.b1 = make([]float64, c.HiddenSize)
		m.w2 = mat.NewDense(c.NumClasses, c.HiddenSize, nil)
		m.b2 = make([]float64, c.NumClasses)
	default:
		return nil, fmt.Errorf("unsupported hidden layer count %d", c.HiddenLayers)
	}

	return &m, nil
}

func (m *Model) Config() Config {
	return m.config
}

// Init draws all weights uniformly from ±1/sqrt(fan-in) with the given
// seed.
func (m *Model) Init(seed uint64) {
	m.rng = rand.New(rand.NewSource(seed))

	k := 1 / math.Sqrt(float64(m.config.InputSize))
	m.fillUniform(m.w1.RawMatrix().Data, k)
	m.fillUniform(m.b1, k)

	if m.w2 != nil {
		k = 1 / math.Sqrt(float64(m.config.HiddenSize))
		m.fillUniform(m.w2.RawMatrix().Data, k)
		m.fillUniform(m.b2, k)
	}
}

func (m *Model) fillUniform(data []float64, k float64) {
	for i := range data {
		data[i] = (2*m.rng.Float64() - 1) * k
	}
}

// SetTraining toggles dropout between the hidden projection and its
// activation. The model ships frozen, so evaluation mode is the norm.
func (m *Model) SetTraining(training bool) {
	m.training = training
}

// Forward maps a (batch, InputSize) matrix of KPI vectors to a
// (batch, NumClasses) prediction matrix.
func (m *Model) Forward(x *mat.Dense) (*mat.Dense, error) {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if cols != m.config.InputSize {
		return nil, fmt.Errorf("input width %d, want %d", cols, m.config.InputSize)
	}

	var z1 mat.Dense
	z1.Mul(x, m.w1.T())
	addBias(&z1, m.b1)

	if m.w2 == nil {
		return &z1, nil
	}

	if m.training && m.config.DropoutProb > 0 {
		m.dropout(&z1)
	}

	z1.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, &z1)

	var z2 mat.Dense
	z2.Mul(&z1, m.w2.T())
	addBias(&z2, m.b2)

	return &z2, nil
}

// Loss returns the mean squared error of the model's predictions against
// labels, the auxiliary term of the KPI-informed training objective.
func (m *Model) Loss(x *mat.Dense, labels []float64) (float64, error) {
	preds, err := m.Forward(x)
	if err != nil {
		return 0, err
	}

	rows, _ := preds.Dims()
	if rows != len(labels) {
		return 0, fmt.Errorf("have %d predictions for %d labels", rows, len(labels))
	}

	var sum float64
	for i, label := range labels {
		diff := preds.At(i, 0) - label
		sum += diff * diff
	}

	return sum / float64(len(labels)), nil
}

func addBias(m *mat.Dense, bias []float64) {
	rows, _ := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := range bias {
			row[j] += bias[j]
		}
	}
}

func (m *Model) dropout(d *mat.Dense) {
	p := m.config.DropoutProb
	scale := 1 / (1 - p)

	rows, cols := d.Dims()
	for i := 0; i < rows; i++ {
		row := d.RawRowView(i)
		for j := 0; j < cols; j++ {
			if m.rng.Float64() < p {
				row[j] = 0
			} else {
				row[j] *= scale
			}
		}
	}
}

// Tensor is one named parameter. Data aliases the live weights.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// Tensors lists the parameters under their state-dict names. The single
// projection variant stores its weights directly under "layers".
func (m *Model) Tensors() []Tensor {
	r1, c1 := m.w1.Dims()
	if m.w2 == nil {
		return []Tensor{
			{"layers.weight", []int{r1, c1}, m.w1.RawMatrix().Data},
			{"layers.bias", []int{len(m.b1)}, m.b1},
		}
	}

	r2, c2 := m.w2.Dims()
	return []Tensor{
		{"layers.0.weight", []int{r1, c1}, m.w1.RawMatrix().Data},
		{"layers.0.bias", []int{len(m.b1)}, m.b1},
		{"layers.3.weight", []int{r2, c2}, m.w2.RawMatrix().Data},
		{"layers.3.bias", []int{len(m.b2)}, m.b2},
	}
}

// SetTensor copies checkpoint data into the named parameter. A shape
// mismatch is an error naming the offending tensor.
func (m *Model) SetTensor(name string, shape []int, data []float64) error {
	for _, t := range m.Tensors() {
		if t.Name != name {
			continue
		}

		if !slices.Equal(shape, t.Shape) {
			return fmt.Errorf("%s: shape mismatch: checkpoint %v, model %v", name, shape, t.Shape)
		}
		if len(data) != len(t.Data) {
			return fmt.Errorf("%s: element count %d, want %d", name, len(data), len(t.Data))
		}

		copy(t.Data, data)
		return nil
	}

	return fmt.Errorf("unknown tensor %q", name)
}

// ParameterCount returns the number of trainable parameters.
func (m *Model) ParameterCount() int64 {
	var n int64
	for _, t := range m.Tensors() {
		n += int64(len(t.Data))
	}

	return n
}
