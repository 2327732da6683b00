package forecast

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// denseLayer is a fully connected layer with row-major weights w[o*in+i].
type denseLayer struct {
	in, out int
	w, b    []float64
	gw, gb  []float64
}

func newDenseLayer(in, out int, rng *rand.Rand, initBias bool) *denseLayer {
	d := &denseLayer{
		in:  in,
		out: out,
		w:   make([]float64, in*out),
		b:   make([]float64, out),
		gw:  make([]float64, in*out),
		gb:  make([]float64, out),
	}
	bound := glorotBound(in, out)
	fillUniform(d.w, bound, rng)
	if initBias {
		fillUniform(d.b, bound, rng)
	}
	return d
}

// forward returns W·x + b.
func (d *denseLayer) forward(x []float64) []float64 {
	z := make([]float64, d.out)
	for o := 0; o < d.out; o++ {
		z[o] = d.b[o] + floats.Dot(d.w[o*d.in:(o+1)*d.in], x)
	}
	return z
}

// backward accumulates gradients for dz at input x and returns dL/dx.
func (d *denseLayer) backward(x, dz []float64) []float64 {
	dx := make([]float64, d.in)
	for o := 0; o < d.out; o++ {
		g := dz[o]
		if g == 0 {
			continue
		}
		d.gb[o] += g
		floats.AddScaled(d.gw[o*d.in:(o+1)*d.in], g, x)
		floats.AddScaled(dx, g, d.w[o*d.in:(o+1)*d.in])
	}
	return dx
}

func (d *denseLayer) params() [][]float64 { return [][]float64{d.w, d.b} }
func (d *denseLayer) grads() [][]float64  { return [][]float64{d.gw, d.gb} }

// glorotBound is the Glorot uniform limit sqrt(6 / (fan_in + fan_out)).
func glorotBound(fanIn, fanOut int) float64 {
	return math.Sqrt(6 / float64(fanIn+fanOut))
}

func fillUniform(values []float64, bound float64, rng *rand.Rand) {
	for i := range values {
		values[i] = (rng.Float64()*2 - 1) * bound
	}
}

func zero(slices [][]float64) {
	for _, s := range slices {
		clear(s)
	}
}

func scaleAll(slices [][]float64, factor float64) {
	for _, s := range slices {
		floats.Scale(factor, s)
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// adam applies Adam updates to a fixed set of parameter tensors.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	params, grads         [][]float64
	m, v                  [][]float64
}

func newAdam(lr, eps float64, params, grads [][]float64) *adam {
	a := &adam{
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    eps,
		params: params,
		grads:  grads,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

// step moves every parameter against its current gradient.
func (a *adam) step() {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))
	lr := a.lr * math.Sqrt(c2) / c1
	for k, p := range a.params {
		g, m, v := a.grads[k], a.m[k], a.v[k]
		for i := range p {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			p[i] -= lr * m[i] / (math.Sqrt(v[i]) + a.eps)
		}
	}
}

// batches shuffles sample indices and splits them into runs of size.
func batches(n, size int, rng *rand.Rand) [][]int {
	if size <= 0 || size > n {
		size = n
	}
	order := rng.Perm(n)
	out := make([][]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, order[start:end])
	}
	return out
}
