package forecast

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"gonum.org/v1/gonum/floats"
)

// LSTMOptions configures the recurrent regressor.
type LSTMOptions struct {
	Enabled      bool
	MinCPUs      int
	Units        int
	DenseUnits   int
	Epochs       int
	BatchSize    int
	LearningRate float64
}

// DefaultLSTMOptions returns two 50-unit layers and a 25-unit dense layer trained for 5 epochs.
func DefaultLSTMOptions() LSTMOptions {
	return LSTMOptions{
		Enabled:      true,
		MinCPUs:      2,
		Units:        50,
		DenseUnits:   25,
		Epochs:       5,
		BatchSize:    32,
		LearningRate: 0.001,
	}
}

// LSTMBackend runs only when enabled and the host has at least MinCPUs cores.
type LSTMBackend struct {
	opts LSTMOptions
}

// NewLSTMBackend creates the LSTM backend.
func NewLSTMBackend(opts LSTMOptions) *LSTMBackend {
	return &LSTMBackend{opts: opts}
}

// Name implements Backend.
func (b *LSTMBackend) Name() string { return "lstm" }

// Available implements Backend.
func (b *LSTMBackend) Available() bool {
	return b.opts.Enabled && b.opts.Units > 0 && runtime.NumCPU() >= b.opts.MinCPUs
}

// New implements Backend.
func (b *LSTMBackend) New(seed int64) Regressor {
	return &lstmRegressor{opts: b.opts, rng: rand.New(rand.NewSource(seed))}
}

// lstmRegressor stacks two LSTM layers, a linear dense layer and a linear output,
// trained on mean squared error with full backpropagation through time.
type lstmRegressor struct {
	opts   LSTMOptions
	rng    *rand.Rand
	first  *lstmLayer
	second *lstmLayer
	hidden *denseLayer
	output *denseLayer
}

func (r *lstmRegressor) Fit(x [][]float64, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}

	units := r.opts.Units
	denseUnits := r.opts.DenseUnits
	if denseUnits <= 0 {
		denseUnits = 1
	}
	r.first = newLSTMLayer(1, units, r.rng)
	r.second = newLSTMLayer(units, units, r.rng)
	r.hidden = newDenseLayer(units, denseUnits, r.rng, false)
	r.output = newDenseLayer(denseUnits, 1, r.rng, false)

	var params, grads [][]float64
	for _, p := range [][][]float64{r.first.params(), r.second.params(), r.hidden.params(), r.output.params()} {
		params = append(params, p...)
	}
	for _, g := range [][][]float64{r.first.grads(), r.second.grads(), r.hidden.grads(), r.output.grads()} {
		grads = append(grads, g...)
	}
	opt := newAdam(r.opts.LearningRate, 1e-7, params, grads)

	epochs := r.opts.Epochs
	if epochs <= 0 {
		epochs = 1
	}
	for epoch := 0; epoch < epochs; epoch++ {
		for _, batch := range batches(len(x), r.opts.BatchSize, r.rng) {
			zero(grads)
			lossSum := 0.0
			for _, idx := range batch {
				lossSum += r.backprop(x[idx], y[idx])
			}
			if math.IsNaN(lossSum) || math.IsInf(lossSum, 0) {
				return fmt.Errorf("training diverged at epoch %d", epoch+1)
			}
			scaleAll(grads, 1/float64(len(batch)))
			opt.step()
		}
	}
	return nil
}

// backprop accumulates gradients for one sequence and returns its squared error.
func (r *lstmRegressor) backprop(window []float64, y float64) float64 {
	seq := toSequence(window)
	h1, steps1 := r.first.forward(seq)
	h2, steps2 := r.second.forward(h1)
	last := h2[len(h2)-1]
	d := r.hidden.forward(last)
	out := r.output.forward(d)

	diff := out[0] - y
	dd := r.output.backward(d, []float64{2 * diff})
	dLast := r.hidden.backward(last, dd)

	dh2 := make([][]float64, len(h2))
	dh2[len(h2)-1] = dLast
	dh1 := r.second.backward(steps2, dh2)
	r.first.backward(steps1, dh1)
	return diff * diff
}

func (r *lstmRegressor) Predict(window []float64) (float64, error) {
	if r.first == nil {
		return 0, fmt.Errorf("lstm regressor is not fitted")
	}
	h1, _ := r.first.forward(toSequence(window))
	h2, _ := r.second.forward(h1)
	out := r.output.forward(r.hidden.forward(h2[len(h2)-1]))
	return out[0], nil
}

func toSequence(window []float64) [][]float64 {
	seq := make([][]float64, len(window))
	for i, v := range window {
		seq[i] = []float64{v}
	}
	return seq
}

// lstmLayer holds gate weights for [input, forget, cell, output] stacked row-wise
// over the concatenated [x, h] vector.
type lstmLayer struct {
	in, units int
	w, b      []float64
	gw, gb    []float64
}

type lstmStep struct {
	xh         []float64
	i, f, g, o []float64
	cPrev      []float64
	tanhC      []float64
}

func newLSTMLayer(in, units int, rng *rand.Rand) *lstmLayer {
	cols := in + units
	l := &lstmLayer{
		in:    in,
		units: units,
		w:     make([]float64, 4*units*cols),
		b:     make([]float64, 4*units),
		gw:    make([]float64, 4*units*cols),
		gb:    make([]float64, 4*units),
	}
	fillUniform(l.w, glorotBound(cols, 4*units), rng)
	for u := 0; u < units; u++ {
		l.b[units+u] = 1
	}
	return l
}

func (l *lstmLayer) params() [][]float64 { return [][]float64{l.w, l.b} }
func (l *lstmLayer) grads() [][]float64  { return [][]float64{l.gw, l.gb} }

// forward runs the whole sequence from zero state and returns every hidden state.
func (l *lstmLayer) forward(seq [][]float64) ([][]float64, []lstmStep) {
	cols := l.in + l.units
	h := make([]float64, l.units)
	c := make([]float64, l.units)
	outputs := make([][]float64, len(seq))
	steps := make([]lstmStep, len(seq))

	for t, x := range seq {
		xh := make([]float64, cols)
		copy(xh, x)
		copy(xh[l.in:], h)

		s := lstmStep{
			xh:    xh,
			i:     make([]float64, l.units),
			f:     make([]float64, l.units),
			g:     make([]float64, l.units),
			o:     make([]float64, l.units),
			cPrev: c,
			tanhC: make([]float64, l.units),
		}
		nextC := make([]float64, l.units)
		nextH := make([]float64, l.units)
		for u := 0; u < l.units; u++ {
			s.i[u] = sigmoid(l.gate(0, u, xh))
			s.f[u] = sigmoid(l.gate(1, u, xh))
			s.g[u] = math.Tanh(l.gate(2, u, xh))
			s.o[u] = sigmoid(l.gate(3, u, xh))
			nextC[u] = s.f[u]*c[u] + s.i[u]*s.g[u]
			s.tanhC[u] = math.Tanh(nextC[u])
			nextH[u] = s.o[u] * s.tanhC[u]
		}
		steps[t] = s
		outputs[t] = nextH
		h, c = nextH, nextC
	}
	return outputs, steps
}

func (l *lstmLayer) gate(k, u int, xh []float64) float64 {
	row := k*l.units + u
	cols := len(xh)
	return l.b[row] + floats.Dot(l.w[row*cols:(row+1)*cols], xh)
}

// backward takes the loss gradient for each hidden state (nil where none flows in),
// accumulates weight gradients and returns the gradient for each input step.
func (l *lstmLayer) backward(steps []lstmStep, dOut [][]float64) [][]float64 {
	cols := l.in + l.units
	dIn := make([][]float64, len(steps))
	dhNext := make([]float64, l.units)
	dcNext := make([]float64, l.units)
	dz := make([]float64, 4*l.units)

	for t := len(steps) - 1; t >= 0; t-- {
		s := steps[t]
		for u := 0; u < l.units; u++ {
			dh := dhNext[u]
			if dOut[t] != nil {
				dh += dOut[t][u]
			}
			do := dh * s.tanhC[u]
			dc := dh*s.o[u]*(1-s.tanhC[u]*s.tanhC[u]) + dcNext[u]
			di := dc * s.g[u]
			dg := dc * s.i[u]
			df := dc * s.cPrev[u]
			dcNext[u] = dc * s.f[u]

			dz[u] = di * s.i[u] * (1 - s.i[u])
			dz[l.units+u] = df * s.f[u] * (1 - s.f[u])
			dz[2*l.units+u] = dg * (1 - s.g[u]*s.g[u])
			dz[3*l.units+u] = do * s.o[u] * (1 - s.o[u])
		}

		dxh := make([]float64, cols)
		for row, g := range dz {
			if g == 0 {
				continue
			}
			l.gb[row] += g
			floats.AddScaled(l.gw[row*cols:(row+1)*cols], g, s.xh)
			floats.AddScaled(dxh, g, l.w[row*cols:(row+1)*cols])
		}
		dIn[t] = dxh[:l.in]
		copy(dhNext, dxh[l.in:])
	}
	return dIn
}
