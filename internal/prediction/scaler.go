package prediction

import (
	"fmt"
	"math"
)

// StandardScaler standardizes features to zero mean and unit variance.
// Parameters come exclusively from the data passed to Fit; transforming the
// held-out set with train-set statistics is the point.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// Fit computes per-feature mean and standard deviation.
func (s *StandardScaler) Fit(X [][]float64) error {
	if len(X) == 0 {
		return fmt.Errorf("scaler fit: empty matrix")
	}
	d := len(X[0])
	s.Mean = make([]float64, d)
	s.Scale = make([]float64, d)

	n := float64(len(X))
	for j := 0; j < d; j++ {
		var sum float64
		for i := range X {
			sum += X[i][j]
		}
		mean := sum / n
		var sq float64
		for i := range X {
			dv := X[i][j] - mean
			sq += dv * dv
		}
		std := math.Sqrt(sq / n)
		if std == 0 {
			// constant feature: pass through centered
			std = 1
		}
		s.Mean[j] = mean
		s.Scale[j] = std
	}
	return nil
}

// Transform returns a standardized copy of X using the fitted parameters.
func (s *StandardScaler) Transform(X [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, fmt.Errorf("scaler transform: not fitted")
	}
	out := make([][]float64, len(X))
	for i := range X {
		if len(X[i]) != len(s.Mean) {
			return nil, fmt.Errorf("scaler transform: row %d has %d features, fitted with %d", i, len(X[i]), len(s.Mean))
		}
		row := make([]float64, len(X[i]))
		for j := range X[i] {
			row[j] = (X[i][j] - s.Mean[j]) / s.Scale[j]
		}
		out[i] = row
	}
	return out, nil
}

// FitTransform fits on X and returns its standardized copy.
func (s *StandardScaler) FitTransform(X [][]float64) ([][]float64, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// TransformRow standardizes a single feature vector.
func (s *StandardScaler) TransformRow(x []float64) []float64 {
	row := make([]float64, len(x))
	for j := range x {
		row[j] = (x[j] - s.Mean[j]) / s.Scale[j]
	}
	return row
}
