package forecast

import "gonum.org/v1/gonum/floats"

// MinMaxScaler maps values onto [0, 1] using the range seen by Fit.
// A zero range uses a divisor of 1, so a constant series scales to all zeros.
type MinMaxScaler struct {
	min   float64
	scale float64
}

// FitMinMaxScaler learns the range of values.
func FitMinMaxScaler(values []float64) MinMaxScaler {
	if len(values) == 0 {
		return MinMaxScaler{scale: 1}
	}
	lo, hi := floats.Min(values), floats.Max(values)
	scale := hi - lo
	if scale == 0 {
		scale = 1
	}
	return MinMaxScaler{min: lo, scale: scale}
}

// Transform scales one value.
func (s MinMaxScaler) Transform(v float64) float64 {
	return (v - s.min) / s.scale
}

// Inverse undoes Transform.
func (s MinMaxScaler) Inverse(v float64) float64 {
	return v*s.scale + s.min
}

// TransformAll returns a scaled copy of values.
func (s MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}
