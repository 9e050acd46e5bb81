// Package rnn implements the sequence regressor: a stacked LSTM over
// fixed-width embedding sequences, followed by a feed-forward head that
// reads only the final time step.
package rnn

import (
	"fmt"
	"math"
	"slices"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Config fixes the regressor's layer dimensions. The head projects the
// recurrent output to half the hidden width and then to NumClasses.
type Config struct {
	InputSize   int     `json:"rnn_input_size"`
	HiddenSize  int     `json:"rnn_hidden_size"`
	NumLayers   int     `json:"rnn_num_layers"`
	NumClasses  int     `json:"rnn_num_classes"`
	DropoutProb float64 `json:"rnn_dropout_prob"`
}

func DefaultConfig() Config {
	return Config{
		InputSize:   768,
		HiddenSize:  256,
		NumLayers:   2,
		NumClasses:  1,
		DropoutProb: 0.2,
	}
}

// lstmLayer holds one stacked layer's parameters. Rows of the weight
// matrices are the gate blocks in input, forget, cell, output order.
type lstmLayer struct {
	wih *mat.Dense // (4*hidden, in)
	whh *mat.Dense // (4*hidden, hidden)
	bih []float64
	bhh []float64
}

// Regressor maps a batch of embedding sequences to one scalar per
// sequence. The recurrent state starts at zero on every call; nothing is
// carried between batches.
type Regressor struct {
	config Config

	layers []lstmLayer

	w1 *mat.Dense // (hidden/2, hidden)
	b1 []float64
	w2 *mat.Dense // (classes, hidden/2)
	b2 []float64

	training bool
	rng      *rand.Rand
}

// New builds a regressor with zeroed weights. Callers either load a
// checkpoint into it or draw fresh weights with Init.
func New(c Config) (*Regressor, error) {
	if c.InputSize <= 0 || c.HiddenSize <= 0 || c.NumLayers <= 0 || c.NumClasses <= 0 {
		return nil, fmt.Errorf("invalid dimensions: input=%d hidden=%d layers=%d classes=%d",
			c.InputSize, c.HiddenSize, c.NumLayers, c.NumClasses)
	}
	if c.HiddenSize%2 != 0 {
		return nil, fmt.Errorf("hidden size must be even, got %d", c.HiddenSize)
	}
	if c.DropoutProb < 0 || c.DropoutProb >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %v", c.DropoutProb)
	}

	r := Regressor{config: c, rng: rand.New(rand.NewSource(1))}
	for i := 0; i < c.NumLayers; i++ {
		in := c.InputSize
		if i > 0 {
			in = c.HiddenSize
		}

		r.layers = append(r.layers, lstmLayer{
			wih: mat.NewDense(4*c.HiddenSize, in, nil),
			whh: mat.NewDense(4*c.HiddenSize, c.HiddenSize, nil),
			bih: make([]float64, 4*c.HiddenSize),
			bhh: make([]float64, 4*c.HiddenSize),
		})
	}

	head := c.HiddenSize / 2
	r.w1 = mat.NewDense(head, c.HiddenSize, nil)
	r.b1 = make([]float64, head)
	r.w2 = mat.NewDense(c.NumClasses, head, nil)
	r.b2 = make([]float64, c.NumClasses)

	return &r, nil
}

func (r *Regressor) Config() Config {
	return r.config
}

// Init draws every weight uniformly from ±1/sqrt(fan) with the given seed,
// the recurrent stack's default initialization in the original trainer.
// The same source then drives dropout.
func (r *Regressor) Init(seed uint64) {
	r.rng = rand.New(rand.NewSource(seed))

	k := 1 / math.Sqrt(float64(r.config.HiddenSize))
	for i := range r.layers {
		r.fillUniform(r.layers[i].wih.RawMatrix().Data, k)
		r.fillUniform(r.layers[i].whh.RawMatrix().Data, k)
		r.fillUniform(r.layers[i].bih, k)
		r.fillUniform(r.layers[i].bhh, k)
	}

	r.fillUniform(r.w1.RawMatrix().Data, k)
	r.fillUniform(r.b1, k)

	k2 := 1 / math.Sqrt(float64(r.config.HiddenSize/2))
	r.fillUniform(r.w2.RawMatrix().Data, k2)
	r.fillUniform(r.b2, k2)
}

func (r *Regressor) fillUniform(data []float64, k float64) {
	for i := range data {
		data[i] = (2*r.rng.Float64() - 1) * k
	}
}

// SetTraining toggles the head's dropout. In evaluation mode the forward
// pass is fully deterministic.
func (r *Regressor) SetTraining(training bool) {
	r.training = training
}

// Forward runs a batch of shape (batch, seq, features) through the
// network and returns a (batch, NumClasses) matrix. Every sequence must
// have the configured feature width and at least one time step; anything
// else is an error, never silently truncated or padded.
func (r *Regressor) Forward(x [][][]float64) (*mat.Dense, error) {
	batch := len(x)
	if batch == 0 {
		return nil, fmt.Errorf("empty batch")
	}

	seq := len(x[0])
	if seq < 1 {
		return nil, fmt.Errorf("sequence length must be at least 1")
	}

	for i := range x {
		if len(x[i]) != seq {
			return nil, fmt.Errorf("ragged batch: sequence %d has %d steps, want %d", i, len(x[i]), seq)
		}
		for t := range x[i] {
			if len(x[i][t]) != r.config.InputSize {
				return nil, fmt.Errorf("input width %d at sequence %d step %d, want %d",
					len(x[i][t]), i, t, r.config.InputSize)
			}
		}
	}

	// repack time-major: one (batch, features) matrix per step
	steps := make([]*mat.Dense, seq)
	for t := 0; t < seq; t++ {
		data := make([]float64, batch*r.config.InputSize)
		for i := 0; i < batch; i++ {
			copy(data[i*r.config.InputSize:(i+1)*r.config.InputSize], x[i][t])
		}
		steps[t] = mat.NewDense(batch, r.config.InputSize, data)
	}

	return r.head(r.encode(steps, batch)), nil
}

// encode runs the stacked LSTM and returns the top layer's hidden output
// at the final time step. Hidden and cell states are allocated zero here,
// on every call.
func (r *Regressor) encode(steps []*mat.Dense, batch int) *mat.Dense {
	input := steps
	for l := range r.layers {
		h := mat.NewDense(batch, r.config.HiddenSize, nil)
		c := mat.NewDense(batch, r.config.HiddenSize, nil)

		outs := make([]*mat.Dense, len(input))
		for t, xt := range input {
			h, c = r.layers[l].step(xt, h, c)
			outs[t] = h
		}

		input = outs
	}

	return input[len(input)-1]
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// step advances one LSTM layer by one time step.
func (l *lstmLayer) step(x, hPrev, cPrev *mat.Dense) (*mat.Dense, *mat.Dense) {
	batch, _ := x.Dims()
	n, _ := l.wih.Dims()
	hidden := n / 4

	var gates mat.Dense
	gates.Mul(x, l.wih.T())

	var rec mat.Dense
	rec.Mul(hPrev, l.whh.T())
	gates.Add(&gates, &rec)

	h := mat.NewDense(batch, hidden, nil)
	c := mat.NewDense(batch, hidden, nil)

	for i := 0; i < batch; i++ {
		row := gates.RawRowView(i)
		for j := 0; j < hidden; j++ {
			in := sigmoid(row[j] + l.bih[j] + l.bhh[j])
			forget := sigmoid(row[hidden+j] + l.bih[hidden+j] + l.bhh[hidden+j])
			cell := math.Tanh(row[2*hidden+j] + l.bih[2*hidden+j] + l.bhh[2*hidden+j])
			out := sigmoid(row[3*hidden+j] + l.bih[3*hidden+j] + l.bhh[3*hidden+j])

			ct := forget*cPrev.At(i, j) + in*cell
			c.Set(i, j, ct)
			h.Set(i, j, out*math.Tanh(ct))
		}
	}

	return h, c
}

// head applies the regression layers to the final hidden output. The
// leading clamp runs before the first projection; that ordering is the
// trained model's and must not be "fixed".
func (r *Regressor) head(h *mat.Dense) *mat.Dense {
	relu := func(_, _ int, v float64) float64 { return math.Max(0, v) }

	var a mat.Dense
	a.Apply(relu, h)

	var z1 mat.Dense
	z1.Mul(&a, r.w1.T())
	addBias(&z1, r.b1)

	if r.training && r.config.DropoutProb > 0 {
		r.dropout(&z1)
	}

	z1.Apply(relu, &z1)

	var z2 mat.Dense
	z2.Mul(&z1, r.w2.T())
	addBias(&z2, r.b2)

	return &z2
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

// dropout zeroes activations with the configured probability and rescales
// survivors by 1/(1-p), matching the trainer's inverted dropout.
func (r *Regressor) dropout(m *mat.Dense) {
	p := r.config.DropoutProb
	scale := 1 / (1 - p)

	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		row := m.RawRowView(i)
		for j := 0; j < cols; j++ {
			if r.rng.Float64() < p {
				row[j] = 0
			} else {
				row[j] *= scale
			}
		}
	}
}

// Tensor is one named parameter. Data aliases the live weights, so writes
// through it mutate the model.
type Tensor struct {
	Name  string
	Shape []int
	Data  []float64
}

// Tensors lists the parameters under their state-dict names, in
// checkpoint order.
func (r *Regressor) Tensors() []Tensor {
	var ts []Tensor
	for i, l := range r.layers {
		rih, cih := l.wih.Dims()
		rhh, chh := l.whh.Dims()
		ts = append(ts,
			Tensor{fmt.Sprintf("lstm.weight_ih_l%d", i), []int{rih, cih}, l.wih.RawMatrix().Data},
			Tensor{fmt.Sprintf("lstm.weight_hh_l%d", i), []int{rhh, chh}, l.whh.RawMatrix().Data},
			Tensor{fmt.Sprintf("lstm.bias_ih_l%d", i), []int{len(l.bih)}, l.bih},
			Tensor{fmt.Sprintf("lstm.bias_hh_l%d", i), []int{len(l.bhh)}, l.bhh},
		)
	}

	r1, c1 := r.w1.Dims()
	r2, c2 := r.w2.Dims()
	ts = append(ts,
		Tensor{"linear_layers.1.weight", []int{r1, c1}, r.w1.RawMatrix().Data},
		Tensor{"linear_layers.1.bias", []int{len(r.b1)}, r.b1},
		Tensor{"linear_layers.4.weight", []int{r2, c2}, r.w2.RawMatrix().Data},
		Tensor{"linear_layers.4.bias", []int{len(r.b2)}, r.b2},
	)

	return ts
}

// SetTensor copies checkpoint data into the named parameter. A shape
// mismatch is an error naming the offending tensor.
func (r *Regressor) SetTensor(name string, shape []int, data []float64) error {
	for _, t := range r.Tensors() {
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
func (r *Regressor) ParameterCount() int64 {
	var n int64
	for _, t := range r.Tensors() {
		n += int64(len(t.Data))
	}

	return n
}
