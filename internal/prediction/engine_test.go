package prediction

import (
	"errors"
	"math"
	"testing"
	"time"

	"LiqFlow/internal/domain/models"
)

// separableDataset builds n rows where the first feature's sign determines the
// label, with a second uninformative feature.
func separableDataset(n int) *Dataset {
	ds := &Dataset{Symbol: "SPY", Features: []string{"signal", "noise"}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		x0 := sign * (2 + 0.01*float64(i%5))
		x1 := float64(i % 7)
		y := 0.0
		ret := -1.0
		if sign > 0 {
			y = 1
			ret = 2
		}
		ds.X = append(ds.X, []float64{x0, x1})
		ds.Y = append(ds.Y, y)
		ds.Dates = append(ds.Dates, base.AddDate(0, 0, i))
		ds.Returns = append(ds.Returns, ret)
	}
	return ds
}

func TestPrepareDatasetDropsSparseAndIncompleteRows(t *testing.T) {
	const n = 10
	dates := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	p, err := models.NewPanel("SPY", dates)
	if err != nil {
		t.Fatalf("new panel: %v", err)
	}

	dense := make([]float64, n)
	sparse := make([]float64, n)
	target := make([]float64, n)
	weekly := make([]float64, n)
	for i := 0; i < n; i++ {
		dense[i] = float64(i)
		sparse[i] = models.Missing() // observed on no rows, below the floor
		target[i] = float64(i % 2)
		weekly[i] = float64(i)
	}
	dense[3] = models.Missing() // one incomplete row

	p, _ = p.WithColumn("dense", models.ClassDerived, dense)
	p, _ = p.WithColumn("sparse", models.ClassDerived, sparse)
	p, _ = p.WithColumn(models.ColTargetUp, models.ClassDerived, target)
	p, _ = p.WithColumn(models.ColWeeklyReturn, models.ClassMarket, weekly)

	e := NewEngine(DefaultConfig(), nil)
	ds, err := e.PrepareDataset(p, []string{"dense", "sparse"})
	if err != nil {
		t.Fatalf("prepare dataset: %v", err)
	}
	if len(ds.Features) != 1 || ds.Features[0] != "dense" {
		t.Fatalf("expected only dense feature, got %v", ds.Features)
	}
	if len(ds.X) != n-1 {
		t.Fatalf("expected %d rows, got %d", n-1, len(ds.X))
	}
}

func TestPrepareDatasetAllSparse(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := models.NewPanel("SPY", []time.Time{base, base.AddDate(0, 0, 1)})
	p, _ = p.WithColumn("a", models.ClassDerived, []float64{models.Missing(), models.Missing()})
	_, err := NewEngine(DefaultConfig(), nil).PrepareDataset(p, []string{"a"})
	if !errors.Is(err, models.ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}

func TestTrainChronologicalSplit(t *testing.T) {
	ds := separableDataset(100)
	e := NewEngine(DefaultConfig(), nil)
	trained, report, err := e.Train(models.ModelLogistic, ds)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if trained.Split != 70 {
		t.Fatalf("expected split at 70, got %d", trained.Split)
	}
	if report.TrainRows != 70 || report.TestRows != 30 {
		t.Fatalf("unexpected row counts %d/%d", report.TrainRows, report.TestRows)
	}
	if report.Evaluation.Accuracy < 0.9 {
		t.Fatalf("separable data should score high, accuracy=%v", report.Evaluation.Accuracy)
	}
	if len(report.Importance) != 2 {
		t.Fatalf("expected 2 importances, got %d", len(report.Importance))
	}
	if report.Importance[0].Feature != "signal" {
		t.Fatalf("informative feature should rank first, got %q", report.Importance[0].Feature)
	}
}

func TestTrainInsufficientRows(t *testing.T) {
	ds := separableDataset(60) // split lands at 42, below the 50-row floor
	_, _, err := NewEngine(DefaultConfig(), nil).Train(models.ModelLogistic, ds)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrainUnknownKind(t *testing.T) {
	ds := separableDataset(100)
	_, _, err := NewEngine(DefaultConfig(), nil).Train(models.ModelKind("mystery"), ds)
	if err == nil {
		t.Fatalf("expected unknown model kind error")
	}
}

func TestRandomForestDeterministic(t *testing.T) {
	ds := separableDataset(100)
	e := NewEngine(DefaultConfig(), nil)

	a, _, err := e.Train(models.ModelRandomForest, ds)
	if err != nil {
		t.Fatalf("train a: %v", err)
	}
	b, _, err := e.Train(models.ModelRandomForest, ds)
	if err != nil {
		t.Fatalf("train b: %v", err)
	}
	for _, row := range ds.X[70:] {
		if pa, pb := a.Proba(row), b.Proba(row); pa != pb {
			t.Fatalf("same seed must reproduce probabilities: %v vs %v", pa, pb)
		}
	}
}

func TestClassifiersLearnSeparableData(t *testing.T) {
	ds := separableDataset(100)
	e := NewEngine(DefaultConfig(), nil)
	for _, kind := range []models.ModelKind{models.ModelRandomForest, models.ModelGradientBoosting, models.ModelLogistic} {
		trained, report, err := e.Train(kind, ds)
		if err != nil {
			t.Fatalf("%s: train: %v", kind, err)
		}
		if report.Evaluation.Accuracy < 0.9 {
			t.Fatalf("%s: accuracy %v too low", kind, report.Evaluation.Accuracy)
		}
		up := trained.Proba([]float64{2, 3})
		down := trained.Proba([]float64{-2, 3})
		if up <= 0.5 || down >= 0.5 {
			t.Fatalf("%s: probabilities did not separate: up=%v down=%v", kind, up, down)
		}
	}
}

func TestCompareSortsByAccuracy(t *testing.T) {
	ds := separableDataset(100)
	scores, err := NewEngine(DefaultConfig(), nil).Compare(ds)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(scores))
	}
	for i := 1; i < len(scores); i++ {
		if scores[i].Evaluation.Accuracy > scores[i-1].Evaluation.Accuracy {
			t.Fatalf("scores not sorted by accuracy: %v", scores)
		}
	}
}

func TestImportancesSumToOne(t *testing.T) {
	ds := separableDataset(100)
	e := NewEngine(DefaultConfig(), nil)
	trained, _, err := e.Train(models.ModelRandomForest, ds)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	var sum float64
	for _, v := range trained.model.FeatureImportances() {
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("importances should normalize to 1, got %v", sum)
	}
}
