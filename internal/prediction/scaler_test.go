package prediction

import (
	"math"
	"testing"
)

func TestScalerFitTransform(t *testing.T) {
	s := &StandardScaler{}
	out, err := s.FitTransform([][]float64{{0}, {2}})
	if err != nil {
		t.Fatalf("fit transform: %v", err)
	}
	if s.Mean[0] != 1 || s.Scale[0] != 1 {
		t.Fatalf("unexpected parameters mean=%v scale=%v", s.Mean[0], s.Scale[0])
	}
	if out[0][0] != -1 || out[1][0] != 1 {
		t.Fatalf("unexpected transform %v", out)
	}
}

func TestScalerTransformUsesFittedStats(t *testing.T) {
	s := &StandardScaler{}
	if _, err := s.FitTransform([][]float64{{0}, {2}}); err != nil {
		t.Fatalf("fit: %v", err)
	}
	out, err := s.Transform([][]float64{{4}})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	// Held-out data standardized with training statistics, not its own.
	if out[0][0] != 3 {
		t.Fatalf("expected 3, got %v", out[0][0])
	}
	row := s.TransformRow([]float64{4})
	if row[0] != 3 {
		t.Fatalf("expected 3 from TransformRow, got %v", row[0])
	}
}

func TestScalerConstantFeature(t *testing.T) {
	s := &StandardScaler{}
	out, err := s.FitTransform([][]float64{{5}, {5}})
	if err != nil {
		t.Fatalf("fit transform: %v", err)
	}
	if math.Abs(out[0][0]) > 1e-12 || math.Abs(out[1][0]) > 1e-12 {
		t.Fatalf("constant feature should center to zero, got %v", out)
	}
}

func TestScalerErrors(t *testing.T) {
	s := &StandardScaler{}
	if err := s.Fit(nil); err == nil {
		t.Fatalf("expected error fitting empty matrix")
	}
	if _, err := s.Transform([][]float64{{1}}); err == nil {
		t.Fatalf("expected error transforming before fit")
	}
	if _, err := (&StandardScaler{Mean: []float64{0}, Scale: []float64{1}}).Transform([][]float64{{1, 2}}); err == nil {
		t.Fatalf("expected width mismatch error")
	}
}
