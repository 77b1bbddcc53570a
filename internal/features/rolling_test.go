package features

import (
	"math"
	"testing"

	"LiqFlow/internal/domain/models"
)

func TestShift(t *testing.T) {
	out := Shift([]float64{1, 2, 3, 4}, 2)
	if !models.IsMissing(out[0]) || !models.IsMissing(out[1]) {
		t.Fatalf("expected first 2 rows missing, got %v", out)
	}
	if out[2] != 1 || out[3] != 2 {
		t.Fatalf("unexpected shift %v", out)
	}
}

func TestPctChange(t *testing.T) {
	out := PctChange([]float64{100, 110, 0, 50}, 1)
	if !models.IsMissing(out[0]) {
		t.Fatalf("expected first row missing")
	}
	if math.Abs(out[1]-10) > 1e-9 {
		t.Fatalf("expected 10, got %v", out[1])
	}
	// Zero base is undefined, not infinite.
	if !models.IsMissing(out[3]) {
		t.Fatalf("expected missing over zero base, got %v", out[3])
	}
}

func TestDiff(t *testing.T) {
	out := Diff([]float64{1, 4, models.Missing(), 9}, 2)
	if !models.IsMissing(out[0]) || !models.IsMissing(out[1]) {
		t.Fatalf("expected warmup rows missing")
	}
	if !models.IsMissing(out[2]) {
		t.Fatalf("expected missing endpoint to propagate")
	}
	if out[3] != 5 {
		t.Fatalf("expected 5, got %v", out[3])
	}
}

func TestRollingMeanWindow(t *testing.T) {
	out := RollingMean([]float64{1, 2, 3, 4}, 3)
	if !models.IsMissing(out[0]) || !models.IsMissing(out[1]) {
		t.Fatalf("expected partial windows missing")
	}
	if out[2] != 2 || out[3] != 3 {
		t.Fatalf("unexpected means %v", out)
	}
}

func TestRollingMeanMissingInWindow(t *testing.T) {
	out := RollingMean([]float64{1, models.Missing(), 3, 4, 5}, 3)
	if !models.IsMissing(out[2]) || !models.IsMissing(out[3]) {
		t.Fatalf("window containing missing must be missing, got %v", out)
	}
	if out[4] != 4 {
		t.Fatalf("expected 4, got %v", out[4])
	}
}

func TestRollingStd(t *testing.T) {
	out := RollingStd([]float64{2, 4, 4, 4, 5, 5, 7, 9}, 8)
	want := 2.138089935299395 // sample stddev
	if math.Abs(out[7]-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, out[7])
	}
}

func TestQuantileSkipsMissing(t *testing.T) {
	x := []float64{models.Missing(), 1, 2, 3, 4, models.Missing()}
	// gonum LinInterp: h = n*p lands exactly on the second order statistic.
	if got := Quantile(x, 0.5); math.Abs(got-2) > 1e-9 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := Quantile([]float64{models.Missing()}, 0.5); !models.IsMissing(got) {
		t.Fatalf("expected missing for empty sample, got %v", got)
	}
}

func TestCompact(t *testing.T) {
	got := Compact([]float64{1, models.Missing(), 3})
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected compact %v", got)
	}
}
