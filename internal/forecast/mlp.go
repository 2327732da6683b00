package forecast

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// MLPOptions configures the feed-forward fallback regressor.
type MLPOptions struct {
	HiddenLayers  []int
	MaxIter       int
	BatchSize     int
	LearningRate  float64
	Alpha         float64
	Tol           float64
	NIterNoChange int
}

// DefaultMLPOptions returns a (100, 50) ReLU network trained for up to 200 epochs.
func DefaultMLPOptions() MLPOptions {
	return MLPOptions{
		HiddenLayers:  []int{100, 50},
		MaxIter:       200,
		BatchSize:     200,
		LearningRate:  0.001,
		Alpha:         0.0001,
		Tol:           0.0001,
		NIterNoChange: 10,
	}
}

// MLPBackend is always available.
type MLPBackend struct {
	opts MLPOptions
}

// NewMLPBackend creates the MLP backend.
func NewMLPBackend(opts MLPOptions) *MLPBackend {
	return &MLPBackend{opts: opts}
}

// Name implements Backend.
func (b *MLPBackend) Name() string { return "mlp" }

// Available implements Backend.
func (b *MLPBackend) Available() bool { return true }

// New implements Backend.
func (b *MLPBackend) New(seed int64) Regressor {
	return &mlpRegressor{opts: b.opts, rng: rand.New(rand.NewSource(seed))}
}

// mlpRegressor is a ReLU network with a linear output, trained on half squared error
// plus an L2 penalty. Training stops early once the epoch loss has failed to improve
// by Tol for NIterNoChange consecutive epochs.
type mlpRegressor struct {
	opts   MLPOptions
	rng    *rand.Rand
	layers []*denseLayer
	epochs int
}

func (r *mlpRegressor) Fit(x [][]float64, y []float64) error {
	if err := checkTrainingSet(x, y); err != nil {
		return err
	}

	sizes := append([]int{len(x[0])}, r.opts.HiddenLayers...)
	sizes = append(sizes, 1)
	r.layers = make([]*denseLayer, len(sizes)-1)
	var params, grads [][]float64
	for i := range r.layers {
		r.layers[i] = newDenseLayer(sizes[i], sizes[i+1], r.rng, true)
		params = append(params, r.layers[i].params()...)
		grads = append(grads, r.layers[i].grads()...)
	}
	opt := newAdam(r.opts.LearningRate, 1e-8, params, grads)

	batchSize := r.opts.BatchSize
	if batchSize <= 0 || batchSize > len(x) {
		batchSize = len(x)
	}

	best := math.Inf(1)
	stale := 0
	for r.epochs = 0; r.epochs < r.opts.MaxIter; r.epochs++ {
		epochLoss := 0.0
		for _, batch := range batches(len(x), batchSize, r.rng) {
			zero(grads)
			lossSum := 0.0
			for _, idx := range batch {
				lossSum += r.backprop(x[idx], y[idx])
			}
			n := float64(len(batch))
			scaleAll(grads, 1/n)

			penalty := 0.0
			for _, l := range r.layers {
				penalty += floats.Dot(l.w, l.w)
				floats.AddScaled(l.gw, r.opts.Alpha/n, l.w)
			}
			batchLoss := lossSum/n + 0.5*r.opts.Alpha*penalty/n
			if math.IsNaN(batchLoss) || math.IsInf(batchLoss, 0) {
				return fmt.Errorf("training diverged at epoch %d", r.epochs+1)
			}
			epochLoss += batchLoss * n
			opt.step()
		}
		epochLoss /= float64(len(x))

		if epochLoss > best-r.opts.Tol {
			stale++
		} else {
			stale = 0
		}
		if epochLoss < best {
			best = epochLoss
		}
		if r.opts.NIterNoChange > 0 && stale >= r.opts.NIterNoChange {
			r.epochs++
			break
		}
	}
	return nil
}

// backprop accumulates gradients for one sample and returns its half squared error.
func (r *mlpRegressor) backprop(x []float64, y float64) float64 {
	acts := make([][]float64, len(r.layers)+1)
	acts[0] = x
	for i, l := range r.layers {
		z := l.forward(acts[i])
		if i < len(r.layers)-1 {
			for j := range z {
				z[j] = math.Max(z[j], 0)
			}
		}
		acts[i+1] = z
	}

	diff := acts[len(r.layers)][0] - y
	delta := []float64{diff}
	for i := len(r.layers) - 1; i >= 0; i-- {
		dx := r.layers[i].backward(acts[i], delta)
		if i == 0 {
			break
		}
		for j, a := range acts[i] {
			if a <= 0 {
				dx[j] = 0
			}
		}
		delta = dx
	}
	return 0.5 * diff * diff
}

func (r *mlpRegressor) Predict(window []float64) (float64, error) {
	if len(r.layers) == 0 {
		return 0, fmt.Errorf("mlp regressor is not fitted")
	}
	if len(window) != r.layers[0].in {
		return 0, fmt.Errorf("mlp regressor expects %d inputs, got %d", r.layers[0].in, len(window))
	}
	a := window
	for i, l := range r.layers {
		a = l.forward(a)
		if i < len(r.layers)-1 {
			for j := range a {
				a[j] = math.Max(a[j], 0)
			}
		}
	}
	return a[0], nil
}
