package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestNewPanelRejectsUnorderedDates(t *testing.T) {
	_, err := NewPanel("SPY", []time.Time{day(1), day(1)})
	if err == nil {
		t.Fatalf("expected error for duplicate dates")
	}
	_, err = NewPanel("SPY", []time.Time{day(2), day(1)})
	if err == nil {
		t.Fatalf("expected error for descending dates")
	}
}

func TestWithColumnDoesNotMutateReceiver(t *testing.T) {
	p, err := NewPanel("SPY", []time.Time{day(0), day(1)})
	if err != nil {
		t.Fatalf("new panel: %v", err)
	}
	widened, err := p.WithColumn("tga_value", ClassLevel, []float64{1, 2})
	if err != nil {
		t.Fatalf("with column: %v", err)
	}
	if p.Has("tga_value") {
		t.Fatalf("receiver gained column")
	}
	if !widened.Has("tga_value") {
		t.Fatalf("widened view missing column")
	}
}

func TestWithColumnRejectsDuplicateAndBadLength(t *testing.T) {
	p, _ := NewPanel("SPY", []time.Time{day(0), day(1)})
	p, err := p.WithColumn("close", ClassMarket, []float64{1, 2})
	if err != nil {
		t.Fatalf("with column: %v", err)
	}
	if _, err := p.WithColumn("close", ClassMarket, []float64{3, 4}); err == nil {
		t.Fatalf("expected duplicate column error")
	}
	if _, err := p.WithColumn("open", ClassMarket, []float64{1}); err == nil {
		t.Fatalf("expected length mismatch error")
	}
}

func TestSelectSkipsMissingRows(t *testing.T) {
	p, _ := NewPanel("SPY", []time.Time{day(0), day(1), day(2)})
	p, _ = p.WithColumn("a", ClassDerived, []float64{1, Missing(), 3})
	p, _ = p.WithColumn("b", ClassDerived, []float64{1, 2, 3})

	idx, err := p.Select("a", "b")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(idx) != 2 || idx[0] != 0 || idx[1] != 2 {
		t.Fatalf("unexpected indices %v", idx)
	}

	if _, err := p.Select("missing_col"); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestBuildPanelDedupesQuotesLastWins(t *testing.T) {
	quotes := []Quote{
		{Date: day(1), Close: 10},
		{Date: day(0), Close: 5},
		{Date: day(1), Close: 11},
	}
	p, err := BuildPanel("SPY", quotes, nil)
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", p.Len())
	}
	closeC, _ := p.Column(ColClose)
	if closeC[1] != 11 {
		t.Fatalf("expected later duplicate to win, got %v", closeC[1])
	}
}

func TestBuildPanelFillsLevelGaps(t *testing.T) {
	quotes := []Quote{
		{Date: day(0), Close: 1},
		{Date: day(1), Close: 2},
		{Date: day(2), Close: 3},
		{Date: day(3), Close: 4},
	}
	levels := []LevelSeries{{
		Name: ColTGA,
		Points: []LevelPoint{
			{Date: day(1), Value: 700, PctChange: Missing()},
		},
	}}
	p, err := BuildPanel("SPY", quotes, levels)
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	tga, _ := p.Column(ColTGA)
	for i, want := range []float64{700, 700, 700, 700} {
		if tga[i] != want {
			t.Fatalf("row %d: expected fill to %v, got %v", i, want, tga[i])
		}
	}
}

func TestBuildPanelDerivesNetLiquidity(t *testing.T) {
	quotes := []Quote{{Date: day(0), Close: 1}, {Date: day(1), Close: 2}}
	point := func(v float64) []LevelPoint {
		return []LevelPoint{
			{Date: day(0), Value: v, PctChange: Missing()},
			{Date: day(1), Value: v + 10, PctChange: Missing()},
		}
	}
	levels := []LevelSeries{
		{Name: ColWALCL, Points: point(7000)},
		{Name: ColTGA, Points: point(700)},
		{Name: ColRRP, Points: point(300)},
	}
	p, err := BuildPanel("SPY", quotes, levels)
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	net, ok := p.Column(ColNetLiquidity)
	if !ok {
		t.Fatalf("net liquidity not derived")
	}
	if net[0] != 6000 {
		t.Fatalf("expected 6000, got %v", net[0])
	}
	if !p.Has(ColNetLiquidity + "_pct_change") {
		t.Fatalf("net liquidity pct change missing")
	}
}

func TestBuildPanelReturnsZeroWithoutPriorPrice(t *testing.T) {
	quotes := []Quote{{Date: day(0), Close: 100}, {Date: day(1), Close: 110}}
	p, err := BuildPanel("SPY", quotes, nil)
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	daily, _ := p.Column(ColDailyReturn)
	if daily[0] != 0 {
		t.Fatalf("expected zero return on first row, got %v", daily[0])
	}
	if math.Abs(daily[1]-10) > 1e-9 {
		t.Fatalf("expected 10%% daily return, got %v", daily[1])
	}
}

func TestBuildPanelRejectsUnknownLevel(t *testing.T) {
	quotes := []Quote{{Date: day(0), Close: 1}}
	levels := []LevelSeries{{Name: "mystery_value", Points: []LevelPoint{{Date: day(0), Value: 1}}}}
	if _, err := BuildPanel("SPY", quotes, levels); err == nil {
		t.Fatalf("expected unrecognized level error")
	}
}

func TestBuildPanelNoQuotes(t *testing.T) {
	if _, err := BuildPanel("SPY", nil, nil); !errors.Is(err, ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}

func TestFilterRowsMaterializesColumns(t *testing.T) {
	p, _ := NewPanel("SPY", []time.Time{day(0), day(1), day(2)})
	p, _ = p.WithColumn("a", ClassDerived, []float64{1, 2, 3})
	out, err := p.FilterRows([]int{0, 2})
	if err != nil {
		t.Fatalf("filter rows: %v", err)
	}
	a, _ := out.Column("a")
	if len(a) != 2 || a[0] != 1 || a[1] != 3 {
		t.Fatalf("unexpected filtered column %v", a)
	}
	if _, err := p.FilterRows([]int{5}); err == nil {
		t.Fatalf("expected out of range error")
	}
}
