package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	"LiqFlow/internal/domain/models"
)

func flowPanel(t *testing.T, cols map[string][]float64, n int) *models.Panel {
	t.Helper()
	dates := make([]time.Time, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range dates {
		dates[i] = base.AddDate(0, 0, i)
	}
	p, err := models.NewPanel("SPY", dates)
	if err != nil {
		t.Fatalf("new panel: %v", err)
	}
	for name, vals := range cols {
		if p, err = p.WithColumn(name, models.ClassDerived, vals); err != nil {
			t.Fatalf("with column %s: %v", name, err)
		}
	}
	return p
}

func TestFlowDynamicsTGADrainage(t *testing.T) {
	// Drain rows (change below -1%) carry +2 returns, the rest -1.
	p := flowPanel(t, map[string][]float64{
		models.ColWeeklyReturn:        {2, -1, 2, -1, 2, -1},
		models.ColTGA + "_pct_change": {-3, 0, -2, 0.5, -1.5, -1},
	}, 6)
	report, err := NewAnalyzer(DefaultConfig(), nil).FlowDynamics(p)
	if err != nil {
		t.Fatalf("flow dynamics: %v", err)
	}
	cond := report.TGADrainage
	if cond == nil {
		t.Fatalf("tga drainage condition missing")
	}
	// -1 sits exactly on the threshold and is not a drain.
	if cond.Active.Count != 3 || cond.Inactive.Count != 3 {
		t.Fatalf("unexpected partition %d/%d", cond.Active.Count, cond.Inactive.Count)
	}
	if math.Abs(cond.Active.Mean-2) > 1e-9 {
		t.Fatalf("expected active mean 2, got %v", cond.Active.Mean)
	}
	if math.Abs(cond.Inactive.Mean+1) > 1e-9 {
		t.Fatalf("expected inactive mean -1, got %v", cond.Inactive.Mean)
	}
}

func TestFlowDynamicsDoubleInjection(t *testing.T) {
	p := flowPanel(t, map[string][]float64{
		models.ColWeeklyReturn:        {5, 1, 1, 1},
		models.ColTGA + "_pct_change": {-2, -2, 0, 0},
		models.ColRRP + "_pct_change": {-3, 0, -3, 0},
	}, 4)
	report, err := NewAnalyzer(DefaultConfig(), nil).FlowDynamics(p)
	if err != nil {
		t.Fatalf("flow dynamics: %v", err)
	}
	di := report.DoubleInjection
	if di == nil {
		t.Fatalf("double injection condition missing")
	}
	// Only the row where both conditions hold counts as active.
	if di.Active.Count != 1 || di.Active.Mean != 5 {
		t.Fatalf("unexpected double injection stats %+v", di.Active)
	}
}

func TestFlowDynamicsNoFlowColumns(t *testing.T) {
	p := flowPanel(t, map[string][]float64{models.ColWeeklyReturn: {1, 2}}, 2)
	_, err := NewAnalyzer(DefaultConfig(), nil).FlowDynamics(p)
	if !errors.Is(err, models.ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}

func TestAuctionImpactBuckets(t *testing.T) {
	p := flowPanel(t, map[string][]float64{
		models.ColWeeklyReturn:             {1, 2, 3, 4},
		models.ColAuctions:                 {100, 200, 300, 400},
		models.ColAuctions + "_pct_change": {15, 0, -15, 10},
	}, 4)
	buckets, err := NewAnalyzer(DefaultConfig(), nil).AuctionImpact(p)
	if err != nil {
		t.Fatalf("auction impact: %v", err)
	}
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(buckets))
	}
	if buckets[0].Bucket != "Heavy_Issuance" || buckets[0].WeeklyReturn.Count != 1 {
		t.Fatalf("unexpected heavy bucket %+v", buckets[0])
	}
	// +10 sits on the boundary and belongs to Normal.
	if buckets[1].Bucket != "Normal" || buckets[1].WeeklyReturn.Count != 2 {
		t.Fatalf("unexpected normal bucket %+v", buckets[1])
	}
	if math.Abs(buckets[1].MeanValue-300) > 1e-9 {
		t.Fatalf("expected mean auction value 300, got %v", buckets[1].MeanValue)
	}
	if buckets[2].Bucket != "Light_Issuance" || buckets[2].WeeklyReturn.Count != 1 {
		t.Fatalf("unexpected light bucket %+v", buckets[2])
	}
}

func TestAuctionImpactMissingColumns(t *testing.T) {
	p := flowPanel(t, map[string][]float64{models.ColWeeklyReturn: {1}}, 1)
	_, err := NewAnalyzer(DefaultConfig(), nil).AuctionImpact(p)
	if !errors.Is(err, models.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestQuartileStats(t *testing.T) {
	p := flowPanel(t, map[string][]float64{
		models.ColLiqRegime: {
			models.QuartileVeryTight, models.QuartileVeryTight,
			models.QuartileVeryLoose, models.QuartileVeryLoose,
		},
		models.ColWeeklyReturn: {-1, -3, 2, 4},
		models.ColDailyReturn:  {-0.5, -0.5, 1, 1},
		models.ColClose:        {10, 11, 12, 13},
	}, 4)
	stats, err := NewAnalyzer(DefaultConfig(), nil).QuartileStats(p)
	if err != nil {
		t.Fatalf("quartile stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 populated quartiles, got %d", len(stats))
	}
	if stats[0].Quartile != "Very_Tight" || math.Abs(stats[0].WeeklyReturn.Mean+2) > 1e-9 {
		t.Fatalf("unexpected tight quartile %+v", stats[0])
	}
	if stats[1].Quartile != "Very_Loose" || math.Abs(stats[1].WeeklyReturn.Mean-3) > 1e-9 {
		t.Fatalf("unexpected loose quartile %+v", stats[1])
	}
	if stats[1].LastClose != 13 {
		t.Fatalf("expected last close 13, got %v", stats[1].LastClose)
	}
}

func TestQuartileStatsNoAssignments(t *testing.T) {
	p := flowPanel(t, map[string][]float64{
		models.ColLiqRegime:    {models.Missing(), models.Missing()},
		models.ColWeeklyReturn: {1, 2},
	}, 2)
	_, err := NewAnalyzer(DefaultConfig(), nil).QuartileStats(p)
	if !errors.Is(err, models.ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}
