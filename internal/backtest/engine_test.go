package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"LiqFlow/internal/domain/models"
	"LiqFlow/internal/prediction"
)

// trainedOnSeparable fits a logistic model on data where the first feature's
// sign determines the label, so held-out probabilities sit far from 0.5.
func trainedOnSeparable(t *testing.T, n int) (*prediction.TrainedModel, *prediction.Dataset) {
	t.Helper()
	ds := &prediction.Dataset{Symbol: "SPY", Features: []string{"signal"}}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sign := 1.0
		if i%2 == 1 {
			sign = -1
		}
		y, ret := 0.0, -1.0
		if sign > 0 {
			y, ret = 1, 2
		}
		ds.X = append(ds.X, []float64{sign * 2})
		ds.Y = append(ds.Y, y)
		ds.Dates = append(ds.Dates, base.AddDate(0, 0, i))
		ds.Returns = append(ds.Returns, ret)
	}
	e := prediction.NewEngine(prediction.DefaultConfig(), nil)
	trained, _, err := e.Train(models.ModelLogistic, ds)
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	return trained, ds
}

func TestRunLongCashSimulation(t *testing.T) {
	trained, ds := trainedOnSeparable(t, 100)
	res, err := NewEngine(DefaultConfig(), nil).Run(trained, ds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.Rows) != 30 {
		t.Fatalf("expected 30 held-out rows, got %d", len(res.Rows))
	}

	buyHold, strategy := 1.0, 1.0
	for i, row := range res.Rows {
		if row.Signal == models.SignalLong {
			if row.StrategyReturn != row.WeeklyReturn {
				t.Fatalf("row %d: LONG must earn the weekly return", i)
			}
		} else if row.StrategyReturn != 0 {
			t.Fatalf("row %d: CASH must earn zero, got %v", i, row.StrategyReturn)
		}
		buyHold *= 1 + row.WeeklyReturn/100
		strategy *= 1 + row.StrategyReturn/100
		if math.Abs(row.CumulativeBuyHold-buyHold) > 1e-9 {
			t.Fatalf("row %d: buy-hold curve mismatch", i)
		}
		if math.Abs(row.CumulativeStrategy-strategy) > 1e-9 {
			t.Fatalf("row %d: strategy curve mismatch", i)
		}
	}
	if math.Abs(res.TotalReturn-(buyHold-1)*100) > 1e-9 {
		t.Fatalf("total return mismatch: %v", res.TotalReturn)
	}
	if math.Abs(res.Alpha-(res.StrategyReturn-res.TotalReturn)) > 1e-9 {
		t.Fatalf("alpha must be strategy minus buy-hold, got %v", res.Alpha)
	}
	// The model sidesteps every losing week, so the strategy must beat holding.
	if res.StrategyReturn <= res.TotalReturn {
		t.Fatalf("expected positive alpha, strategy=%v buyhold=%v", res.StrategyReturn, res.TotalReturn)
	}
}

func TestRunSignalsFollowProbabilities(t *testing.T) {
	trained, ds := trainedOnSeparable(t, 100)
	res, err := NewEngine(Config{Threshold: 0.5}, nil).Run(trained, ds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	for i, row := range res.Rows {
		want := models.SignalCash
		if row.Probability > 0.5 {
			want = models.SignalLong
		}
		if row.Signal != want {
			t.Fatalf("row %d: signal %q does not match probability %v", i, row.Signal, row.Probability)
		}
		// Positive-return weeks are the up-labelled ones in this construction.
		if row.WeeklyReturn > 0 && row.Signal != models.SignalLong {
			t.Fatalf("row %d: model missed a separable up week", i)
		}
	}
}

func TestRunNoHeldOutRows(t *testing.T) {
	trained, ds := trainedOnSeparable(t, 100)
	short := &prediction.Dataset{
		Symbol:   ds.Symbol,
		Features: ds.Features,
		X:        ds.X[:trained.Split],
		Y:        ds.Y[:trained.Split],
		Dates:    ds.Dates[:trained.Split],
		Returns:  ds.Returns[:trained.Split],
	}
	_, err := NewEngine(DefaultConfig(), nil).Run(trained, short)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestNewEngineClampsThreshold(t *testing.T) {
	e := NewEngine(Config{Threshold: 0}, nil)
	if e.cfg.Threshold != 0.5 {
		t.Fatalf("expected default threshold, got %v", e.cfg.Threshold)
	}
	e = NewEngine(Config{Threshold: 1.5}, nil)
	if e.cfg.Threshold != 0.5 {
		t.Fatalf("expected default threshold, got %v", e.cfg.Threshold)
	}
}
