package features

import (
	"errors"
	"testing"
	"time"

	"LiqFlow/internal/domain/models"
)

func testPanel(t *testing.T, n int, levels map[string]func(i int) float64) *models.Panel {
	t.Helper()
	quotes := make([]models.Quote, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range quotes {
		price := 100 + float64(i)
		quotes[i] = models.Quote{
			Date: base.AddDate(0, 0, i),
			Open: price, High: price + 1, Low: price - 1, Close: price,
			Volume: 1000,
		}
	}
	var series []models.LevelSeries
	for name, f := range levels {
		points := make([]models.LevelPoint, n)
		for i := range points {
			points[i] = models.LevelPoint{Date: base.AddDate(0, 0, i), Value: f(i), PctChange: models.Missing()}
		}
		series = append(series, models.LevelSeries{Name: name, Points: points})
	}
	p, err := models.BuildPanel("SPY", quotes, series)
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	return p
}

func TestAddLagFeaturesWarmup(t *testing.T) {
	p := testPanel(t, 30, map[string]func(int) float64{
		models.ColTGA: func(i int) float64 { return float64(i) },
	})
	e := NewEngineer(nil)
	out, err := e.AddLagFeatures(p)
	if err != nil {
		t.Fatalf("add lag features: %v", err)
	}
	lag, ok := out.Column(LagWeekColumn(models.ColTGA, 1))
	if !ok {
		t.Fatalf("1-week lag column missing")
	}
	for i := 0; i < TradingWeek; i++ {
		if !models.IsMissing(lag[i]) {
			t.Fatalf("row %d before lag horizon should be missing", i)
		}
	}
	if lag[TradingWeek] != 0 {
		t.Fatalf("expected lagged value 0, got %v", lag[TradingWeek])
	}
	if p.Has(LagWeekColumn(models.ColTGA, 1)) {
		t.Fatalf("input panel was mutated")
	}
}

func TestAddVelocityFeatures(t *testing.T) {
	p := testPanel(t, 30, map[string]func(int) float64{
		models.ColRRP: func(i int) float64 { return 100 + float64(i) },
	})
	out, err := NewEngineer(nil).AddVelocityFeatures(p)
	if err != nil {
		t.Fatalf("add velocity features: %v", err)
	}
	for _, suffix := range []string{"1w", "2w", "1m"} {
		if !out.Has(VelocityColumn(models.ColRRP, suffix)) {
			t.Fatalf("velocity column %s missing", suffix)
		}
	}
}

func TestIdentifyMarketRegimeCodes(t *testing.T) {
	// Monotonically rising close keeps price above its trailing average once
	// the 200-row window is full.
	p := testPanel(t, 210, nil)
	out, err := NewEngineer(nil).IdentifyMarketRegime(p)
	if err != nil {
		t.Fatalf("identify regime: %v", err)
	}
	trend, _ := out.Column(models.ColRegime)
	if !models.IsMissing(trend[0]) || !models.IsMissing(trend[198]) {
		t.Fatalf("trend should be undefined before a full window")
	}
	if trend[209] != models.TrendBull {
		t.Fatalf("rising market should be BULL, got %v", trend[209])
	}
	momentum, _ := out.Column(models.ColRegimeMomentum)
	// (close[i]/close[i-50]-1)*100 on a rising series exceeds +10%.
	if momentum[209] != models.MomentumBull {
		t.Fatalf("expected momentum BULL, got %v", momentum[209])
	}
}

func TestAssignLiquidityQuartile(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, 8)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	p, err := models.NewPanel("SPY", dates)
	if err != nil {
		t.Fatalf("new panel: %v", err)
	}
	p, err = p.WithColumn(models.ColNetLiquidity, models.ClassLevel, []float64{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("with column: %v", err)
	}
	out, err := NewEngineer(nil).AssignLiquidityQuartile(p)
	if err != nil {
		t.Fatalf("assign quartile: %v", err)
	}
	codes, _ := out.Column(models.ColLiqRegime)
	want := []float64{
		models.QuartileVeryTight, models.QuartileVeryTight,
		models.QuartileTight, models.QuartileTight,
		models.QuartileLoose, models.QuartileLoose,
		models.QuartileVeryLoose, models.QuartileVeryLoose,
	}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("row %d: expected code %v, got %v", i, want[i], codes[i])
		}
	}
}

func TestAssignLiquidityQuartileTooFewDistinct(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, _ := models.NewPanel("SPY", []time.Time{base, base.AddDate(0, 0, 1)})
	p, _ = p.WithColumn(models.ColNetLiquidity, models.ClassLevel, []float64{5, 5})
	_, err := NewEngineer(nil).AssignLiquidityQuartile(p)
	if !errors.Is(err, models.ErrInsufficientSample) {
		t.Fatalf("expected ErrInsufficientSample, got %v", err)
	}
}

func TestEngineerMLFeaturesDropsWarmupRows(t *testing.T) {
	const n = 80
	p := testPanel(t, n, map[string]func(int) float64{
		models.ColWALCL: func(i int) float64 { return 7000 + float64(i) },
		models.ColTGA:   func(i int) float64 { return 700 + float64(i%7) },
		models.ColRRP:   func(i int) float64 { return 300 + float64(i%5) },
	})
	filtered, feats, err := NewEngineer(nil).EngineerMLFeatures(p)
	if err != nil {
		t.Fatalf("engineer ml features: %v", err)
	}
	// The 50-row moving average is the longest warm-up.
	if want := n - 49; filtered.Len() != want {
		t.Fatalf("expected %d rows after warmup drop, got %d", want, filtered.Len())
	}
	hasMA := false
	for _, f := range feats {
		if f == MAColumn(models.ColTGA, 50) {
			hasMA = true
		}
	}
	if !hasMA {
		t.Fatalf("feature list missing %s", MAColumn(models.ColTGA, 50))
	}
	for _, f := range feats {
		col, ok := filtered.Column(f)
		if !ok {
			t.Fatalf("declared feature %s not in panel", f)
		}
		for i, v := range col {
			if models.IsMissing(v) {
				t.Fatalf("feature %s has missing value at row %d after filtering", f, i)
			}
		}
	}
	if p.Has(models.ColTargetUp) {
		t.Fatalf("input panel was mutated")
	}
}

func TestEngineerMLFeaturesNoLevels(t *testing.T) {
	p := testPanel(t, 10, nil)
	_, _, err := NewEngineer(nil).EngineerMLFeatures(p)
	if !errors.Is(err, models.ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}
