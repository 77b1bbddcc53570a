package features

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"LiqFlow/internal/domain/models"
)

// Series helpers. All operate on float64 slices with NaN as the missing
// sentinel and compute each output row strictly from input rows at or before
// it, so no derived value can look ahead.

// Shift returns x delayed by n rows; the first n rows are missing.
func Shift(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < n {
			out[i] = models.Missing()
			continue
		}
		out[i] = x[i-n]
	}
	return out
}

// PctChange returns the percentage rate of change over an n-row window:
// (x[i]/x[i-n] - 1) * 100. Undefined for the first n rows, for missing
// endpoints, and for a zero base.
func PctChange(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < n || models.IsMissing(x[i]) || models.IsMissing(x[i-n]) || x[i-n] == 0 {
			out[i] = models.Missing()
			continue
		}
		out[i] = (x[i]/x[i-n] - 1) * 100
	}
	return out
}

// Diff returns x[i] - x[i-n]; undefined for the first n rows and missing
// endpoints.
func Diff(x []float64, n int) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < n || models.IsMissing(x[i]) || models.IsMissing(x[i-n]) {
			out[i] = models.Missing()
			continue
		}
		out[i] = x[i] - x[i-n]
	}
	return out
}

// RollingMean returns the trailing simple moving average over w rows.
// Undefined until a full window of non-missing values is available.
func RollingMean(x []float64, w int) []float64 {
	return rollingApply(x, w, func(win []float64) float64 {
		return stat.Mean(win, nil)
	})
}

// RollingStd returns the trailing sample standard deviation over w rows.
func RollingStd(x []float64, w int) []float64 {
	return rollingApply(x, w, func(win []float64) float64 {
		return stat.StdDev(win, nil)
	})
}

func rollingApply(x []float64, w int, f func([]float64) float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		if i < w-1 {
			out[i] = models.Missing()
			continue
		}
		win := x[i-w+1 : i+1]
		ok := true
		for _, v := range win {
			if models.IsMissing(v) {
				ok = false
				break
			}
		}
		if !ok {
			out[i] = models.Missing()
			continue
		}
		out[i] = f(win)
	}
	return out
}

// Quantile returns the q-th linearly interpolated quantile of the non-missing
// values of x, or NaN when none exist.
func Quantile(x []float64, q float64) float64 {
	clean := Compact(x)
	if len(clean) == 0 {
		return models.Missing()
	}
	sort.Float64s(clean)
	return stat.Quantile(q, stat.LinInterp, clean, nil)
}

// Compact returns the non-missing values of x in order.
func Compact(x []float64) []float64 {
	out := make([]float64, 0, len(x))
	for _, v := range x {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}
