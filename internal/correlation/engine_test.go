package correlation

import (
	"errors"
	"math"
	"testing"
	"time"

	"LiqFlow/internal/domain/models"
)

func corrPanel(t *testing.T, cols map[string][]float64, n int) *models.Panel {
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
		class := models.ClassDerived
		if models.IsLiquidityLevel(name) {
			class = models.ClassLevel
		}
		if p, err = p.WithColumn(name, class, vals); err != nil {
			t.Fatalf("with column %s: %v", name, err)
		}
	}
	return p
}

func TestRankOrdersByAbsCorrelation(t *testing.T) {
	const n = 40
	target := make([]float64, n)
	positive := make([]float64, n)
	negative := make([]float64, n)
	weak := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		target[i] = x
		positive[i] = 2 * x
		negative[i] = -3 * x
		// Alternating series with a slight drift correlates weakly.
		weak[i] = math.Mod(x*7919, 13)
	}
	p := corrPanel(t, map[string][]float64{
		"target": target, "pos": positive, "neg": negative, "weak": weak,
	}, n)

	table, err := NewEngine(nil).Rank(p, []string{"weak", "pos", "neg"}, "target", MinPlainSamples)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(table.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(table.Entries))
	}
	// pos and neg are both perfectly correlated in magnitude; stable sort
	// keeps their input order ahead of the weak feature.
	if table.Entries[0].Feature != "pos" || table.Entries[1].Feature != "neg" {
		t.Fatalf("unexpected order %q, %q", table.Entries[0].Feature, table.Entries[1].Feature)
	}
	if table.Entries[2].Feature != "weak" {
		t.Fatalf("expected weak last, got %q", table.Entries[2].Feature)
	}
	if math.Abs(table.Entries[1].Correlation+1) > 1e-9 {
		t.Fatalf("expected r=-1 for neg, got %v", table.Entries[1].Correlation)
	}
}

func TestRankExcludesSmallSamples(t *testing.T) {
	const n = 40
	target := make([]float64, n)
	sparse := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = float64(i)
		if i < 5 {
			sparse[i] = float64(i)
		} else {
			sparse[i] = models.Missing()
		}
	}
	p := corrPanel(t, map[string][]float64{"target": target, "sparse": sparse}, n)
	table, err := NewEngine(nil).Rank(p, []string{"sparse"}, "target", MinPlainSamples)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(table.Entries) != 0 {
		t.Fatalf("sparse feature should be excluded, got %d entries", len(table.Entries))
	}
}

func TestRankExcludesConstantSeries(t *testing.T) {
	const n = 40
	target := make([]float64, n)
	flat := make([]float64, n)
	for i := 0; i < n; i++ {
		target[i] = float64(i)
		flat[i] = 5
	}
	p := corrPanel(t, map[string][]float64{"target": target, "flat": flat}, n)
	table, err := NewEngine(nil).Rank(p, []string{"flat"}, "target", MinPlainSamples)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if len(table.Entries) != 0 {
		t.Fatalf("constant feature should be excluded, got %d entries", len(table.Entries))
	}
}

func TestRankMissingTarget(t *testing.T) {
	p := corrPanel(t, map[string][]float64{"a": {1, 2}}, 2)
	_, err := NewEngine(nil).Rank(p, []string{"a"}, "nope", MinPlainSamples)
	if !errors.Is(err, models.ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestRankByRegimePartitions(t *testing.T) {
	const n = 60
	regime := make([]float64, n)
	feat := make([]float64, n)
	ret := make([]float64, n)
	for i := 0; i < n; i++ {
		x := float64(i)
		feat[i] = x
		if i < 30 {
			regime[i] = models.TrendBull
			ret[i] = x // positive association in BULL
		} else {
			regime[i] = models.TrendBear
			ret[i] = -x // negative association in BEAR
		}
	}
	p := corrPanel(t, map[string][]float64{
		models.ColRegime:       regime,
		models.ColWeeklyReturn: ret,
		models.ColTGA:          feat,
	}, n)

	out, err := NewEngine(nil).RankByRegime(p, []string{models.ColTGA})
	if err != nil {
		t.Fatalf("rank by regime: %v", err)
	}
	bull, ok := out["BULL"]
	if !ok {
		t.Fatalf("missing BULL partition")
	}
	bear, ok := out["BEAR"]
	if !ok {
		t.Fatalf("missing BEAR partition")
	}
	if bull.Entries[0].Correlation <= 0 {
		t.Fatalf("expected positive correlation in BULL, got %v", bull.Entries[0].Correlation)
	}
	if bear.Entries[0].Correlation >= 0 {
		t.Fatalf("expected negative correlation in BEAR, got %v", bear.Entries[0].Correlation)
	}
}

func TestSignificanceTests(t *testing.T) {
	const n = 60
	net := make([]float64, n)
	change := make([]float64, n)
	ret := make([]float64, n)
	for i := 0; i < n; i++ {
		net[i] = float64(i)
		change[i] = float64(i % 7)
		// Clear separation: returns are far higher above the liquidity median.
		if i >= n/2 {
			ret[i] = 10 + float64(i%3)
		} else {
			ret[i] = -10 + float64(i%3)
		}
	}
	p := corrPanel(t, map[string][]float64{
		models.ColNetLiquidity:                 net,
		models.ColNetLiquidity + "_pct_change": change,
		models.ColWeeklyReturn:                 ret,
	}, n)

	report, err := NewEngine(nil).SignificanceTests(p)
	if err != nil {
		t.Fatalf("significance tests: %v", err)
	}
	tt := report.HighVsLowLiquidity
	if tt == nil {
		t.Fatalf("t-test missing from report")
	}
	if !tt.Significant {
		t.Fatalf("expected significant separation, p=%v", tt.PValue)
	}
	if tt.HighMean <= tt.LowMean {
		t.Fatalf("expected high-liquidity mean above low, got %v vs %v", tt.HighMean, tt.LowMean)
	}
	if report.NetLiqChangeVsRet == nil {
		t.Fatalf("pearson test missing from report")
	}
}

func TestSignificanceTestsNoUsableSample(t *testing.T) {
	p := corrPanel(t, map[string][]float64{"close": {1, 2}}, 2)
	_, err := NewEngine(nil).SignificanceTests(p)
	if !errors.Is(err, models.ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}
