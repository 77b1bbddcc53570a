package models

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// ColumnClass describes the semantic role of a panel column.
type ColumnClass int

const (
	// ClassLevel is a raw magnitude series supplied by the data collaborator
	// (cash balances, balance-sheet size). Values may be missing on days with
	// no publication.
	ClassLevel ColumnClass = iota
	// ClassDerived is a column computed from a level or market series
	// (percentage change, lag, velocity, moving average, regime code).
	ClassDerived
	// ClassMarket is a price/volume field or a realized return computed from
	// close.
	ClassMarket
)

func (c ColumnClass) String() string {
	switch c {
	case ClassLevel:
		return "level"
	case ClassDerived:
		return "derived"
	case ClassMarket:
		return "market"
	default:
		return "unknown"
	}
}

// Recognized level metric identifiers. Column discovery is a fixed schema,
// not substring matching: a column is a liquidity level iff it appears here.
const (
	ColTGA            = "tga_value"
	ColRRP            = "rrp_value"
	ColWALCL          = "walcl_value"
	ColSOMA           = "soma_value"
	ColSOMATreasuries = "soma_treasuries_value"
	ColSOMAMBS        = "soma_mbs_value"
	ColAuctions       = "auctions_value"
	ColNetLiquidity   = "net_liquidity"
)

// Market field identifiers.
const (
	ColOpen         = "open"
	ColHigh         = "high"
	ColLow          = "low"
	ColClose        = "close"
	ColVolume       = "volume"
	ColDailyReturn  = "daily_return"
	ColWeeklyReturn = "weekly_return"
)

// LiquidityLevelColumns lists every recognized liquidity level metric in
// declaration order. Feature engineering iterates this list and skips columns
// the panel does not carry.
var LiquidityLevelColumns = []string{
	ColTGA,
	ColRRP,
	ColWALCL,
	ColSOMA,
	ColSOMATreasuries,
	ColSOMAMBS,
	ColAuctions,
	ColNetLiquidity,
}

var liquidityLevelSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(LiquidityLevelColumns))
	for _, c := range LiquidityLevelColumns {
		m[c] = struct{}{}
	}
	return m
}()

// IsLiquidityLevel reports whether name is a recognized liquidity level metric.
func IsLiquidityLevel(name string) bool {
	_, ok := liquidityLevelSet[name]
	return ok
}

// Missing is the sentinel for an absent observation.
func Missing() float64 { return math.NaN() }

// IsMissing reports whether v is the missing-value sentinel.
func IsMissing(v float64) bool { return math.IsNaN(v) }

// Panel is a date-indexed, column-oriented table of liquidity and market
// series. Dates are unique and ascending; columns are float64 slices of equal
// length with NaN marking missing observations.
//
// A Panel is logically immutable: widening operations return a new view that
// shares unchanged column data with the receiver. Callers must not mutate
// slices obtained from Column.
type Panel struct {
	symbol string
	dates  []time.Time
	order  []string
	cols   map[string][]float64
	class  map[string]ColumnClass
}

// NewPanel creates an empty panel over the given ascending unique dates.
func NewPanel(symbol string, dates []time.Time) (*Panel, error) {
	for i := 1; i < len(dates); i++ {
		if !dates[i].After(dates[i-1]) {
			return nil, fmt.Errorf("panel dates must be strictly ascending: %s >= %s",
				dates[i-1].Format("2006-01-02"), dates[i].Format("2006-01-02"))
		}
	}
	return &Panel{
		symbol: symbol,
		dates:  dates,
		cols:   make(map[string][]float64),
		class:  make(map[string]ColumnClass),
	}, nil
}

// Symbol returns the market symbol this panel is scoped to.
func (p *Panel) Symbol() string { return p.symbol }

// Len returns the number of rows.
func (p *Panel) Len() int { return len(p.dates) }

// Dates returns the date index. The slice must not be mutated.
func (p *Panel) Dates() []time.Time { return p.dates }

// Columns returns column names in insertion order.
func (p *Panel) Columns() []string { return p.order }

// Has reports whether the panel carries the named column.
func (p *Panel) Has(name string) bool {
	_, ok := p.cols[name]
	return ok
}

// Column returns the named column. The slice must not be mutated.
func (p *Panel) Column(name string) ([]float64, bool) {
	c, ok := p.cols[name]
	return c, ok
}

// Class returns the semantic class of the named column.
func (p *Panel) Class(name string) (ColumnClass, bool) {
	c, ok := p.class[name]
	return c, ok
}

// WithColumn returns a widened view carrying the additional column. The
// receiver is unchanged. Re-adding an existing name is rejected so that stage
// provenance is never silently overwritten.
func (p *Panel) WithColumn(name string, class ColumnClass, values []float64) (*Panel, error) {
	if len(values) != len(p.dates) {
		return nil, fmt.Errorf("column %s: length %d does not match panel rows %d", name, len(values), len(p.dates))
	}
	if _, exists := p.cols[name]; exists {
		return nil, fmt.Errorf("column %s already present", name)
	}
	out := p.shallowCopy()
	out.cols[name] = values
	out.class[name] = class
	out.order = append(out.order, name)
	return out, nil
}

// LiquidityLevels returns the recognized liquidity level columns the panel
// actually carries, in schema declaration order.
func (p *Panel) LiquidityLevels() []string {
	out := make([]string, 0, len(LiquidityLevelColumns))
	for _, name := range LiquidityLevelColumns {
		if p.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Select returns row indices where every named column is non-missing.
func (p *Panel) Select(names ...string) ([]int, error) {
	cols := make([][]float64, 0, len(names))
	for _, n := range names {
		c, ok := p.cols[n]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
		cols = append(cols, c)
	}
	idx := make([]int, 0, len(p.dates))
	for i := range p.dates {
		keep := true
		for _, c := range cols {
			if IsMissing(c[i]) {
				keep = false
				break
			}
		}
		if keep {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// FilterRows returns a new panel containing only the given row indices, which
// must be ascending. Every column is materialized for the surviving rows.
func (p *Panel) FilterRows(idx []int) (*Panel, error) {
	dates := make([]time.Time, len(idx))
	for k, i := range idx {
		if i < 0 || i >= len(p.dates) {
			return nil, fmt.Errorf("row index %d out of range [0,%d)", i, len(p.dates))
		}
		dates[k] = p.dates[i]
	}
	out, err := NewPanel(p.symbol, dates)
	if err != nil {
		return nil, err
	}
	for _, name := range p.order {
		src := p.cols[name]
		dst := make([]float64, len(idx))
		for k, i := range idx {
			dst[k] = src[i]
		}
		out.cols[name] = dst
		out.class[name] = p.class[name]
		out.order = append(out.order, name)
	}
	return out, nil
}

func (p *Panel) shallowCopy() *Panel {
	out := &Panel{
		symbol: p.symbol,
		dates:  p.dates,
		order:  make([]string, len(p.order), len(p.order)+1),
		cols:   make(map[string][]float64, len(p.cols)+1),
		class:  make(map[string]ColumnClass, len(p.class)+1),
	}
	copy(out.order, p.order)
	for k, v := range p.cols {
		out.cols[k] = v
	}
	for k, v := range p.class {
		out.class[k] = v
	}
	return out
}

// LevelPoint is one published observation of a level metric.
type LevelPoint struct {
	Date  time.Time
	Value float64
	// PctChange is the day-over-day percentage change supplied by the
	// collaborator, NaN when unavailable.
	PctChange float64
}

// LevelSeries is a named level metric as supplied by the data collaborator.
type LevelSeries struct {
	Name   string
	Points []LevelPoint
}

// Quote is one market bar.
type Quote struct {
	Date                   time.Time
	Open, High, Low, Close float64
	Volume                 float64
}

// BuildPanel assembles the aligned per-symbol panel from the collaborator's
// level series and market quotes, mirroring the merge semantics of the
// acquisition layer: quotes define the row set (one row per trading day),
// level columns are outer-joined on date then forward- and backward-filled,
// net liquidity is derived where WALCL, TGA and RRP are all present, and
// return fields default to zero only when no prior price exists.
func BuildPanel(symbol string, quotes []Quote, levels []LevelSeries) (*Panel, error) {
	if len(quotes) == 0 {
		return nil, fmt.Errorf("%w: no quotes for %s", ErrNoUsableData, symbol)
	}
	sorted := make([]Quote, len(quotes))
	copy(sorted, quotes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	// Dedupe on date; later quotes win, matching a last-write merge.
	dates := make([]time.Time, 0, len(sorted))
	uniq := make([]Quote, 0, len(sorted))
	for _, q := range sorted {
		d := q.Date.Truncate(24 * time.Hour)
		q.Date = d
		if n := len(uniq); n > 0 && uniq[n-1].Date.Equal(d) {
			uniq[n-1] = q
			continue
		}
		uniq = append(uniq, q)
		dates = append(dates, d)
	}

	p, err := NewPanel(symbol, dates)
	if err != nil {
		return nil, err
	}

	n := len(uniq)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closeC := make([]float64, n)
	vol := make([]float64, n)
	for i, q := range uniq {
		open[i], high[i], low[i], closeC[i], vol[i] = q.Open, q.High, q.Low, q.Close, q.Volume
	}
	for _, mc := range []struct {
		name string
		vals []float64
	}{
		{ColOpen, open}, {ColHigh, high}, {ColLow, low}, {ColClose, closeC}, {ColVolume, vol},
	} {
		if p, err = p.WithColumn(mc.name, ClassMarket, mc.vals); err != nil {
			return nil, err
		}
	}

	// Realized returns from close. No prior price means return 0, the one
	// documented zero-coercion for market fields.
	daily := returnOverWindow(closeC, 1)
	weekly := returnOverWindow(closeC, 5)
	if p, err = p.WithColumn(ColDailyReturn, ClassMarket, daily); err != nil {
		return nil, err
	}
	if p, err = p.WithColumn(ColWeeklyReturn, ClassMarket, weekly); err != nil {
		return nil, err
	}

	for _, ls := range levels {
		if !IsLiquidityLevel(ls.Name) && ls.Name != ColNetLiquidity {
			return nil, fmt.Errorf("unrecognized level series %q", ls.Name)
		}
		vals, pct := alignLevel(dates, ls.Points)
		fillBothWays(vals)
		if p, err = p.WithColumn(ls.Name, ClassLevel, vals); err != nil {
			return nil, err
		}
		if pct != nil {
			if p, err = p.WithColumn(ls.Name+"_pct_change", ClassDerived, pct); err != nil {
				return nil, err
			}
		}
	}

	return withNetLiquidity(p)
}

// withNetLiquidity derives net_liquidity = WALCL - TGA - RRP on rows where
// all three are present, plus its day-over-day percentage change.
func withNetLiquidity(p *Panel) (*Panel, error) {
	if p.Has(ColNetLiquidity) {
		return p, nil
	}
	walcl, okW := p.Column(ColWALCL)
	tga, okT := p.Column(ColTGA)
	rrp, okR := p.Column(ColRRP)
	if !okW || !okT || !okR {
		return p, nil
	}
	n := p.Len()
	net := make([]float64, n)
	for i := 0; i < n; i++ {
		if IsMissing(walcl[i]) || IsMissing(tga[i]) || IsMissing(rrp[i]) {
			net[i] = Missing()
			continue
		}
		net[i] = walcl[i] - tga[i] - rrp[i]
	}
	p, err := p.WithColumn(ColNetLiquidity, ClassLevel, net)
	if err != nil {
		return nil, err
	}
	pct := make([]float64, n)
	for i := 0; i < n; i++ {
		if i == 0 || IsMissing(net[i]) || IsMissing(net[i-1]) || net[i-1] == 0 {
			pct[i] = Missing()
			continue
		}
		pct[i] = (net[i]/net[i-1] - 1) * 100
	}
	return p.WithColumn(ColNetLiquidity+"_pct_change", ClassDerived, pct)
}

// returnOverWindow computes (close[i]/close[i-n]-1)*100 with a zero default
// for rows lacking a prior price.
func returnOverWindow(closeC []float64, n int) []float64 {
	out := make([]float64, len(closeC))
	for i := range closeC {
		if i < n || closeC[i-n] == 0 {
			out[i] = 0
			continue
		}
		out[i] = (closeC[i]/closeC[i-n] - 1) * 100
	}
	return out
}

// alignLevel places level observations onto the panel's date index. Returns
// the value column and, when any point carried one, the pct-change column.
func alignLevel(dates []time.Time, points []LevelPoint) (vals, pct []float64) {
	byDate := make(map[time.Time]LevelPoint, len(points))
	hasPct := false
	for _, pt := range points {
		d := pt.Date.Truncate(24 * time.Hour)
		pt.Date = d
		byDate[d] = pt
		if !IsMissing(pt.PctChange) {
			hasPct = true
		}
	}
	vals = make([]float64, len(dates))
	if hasPct {
		pct = make([]float64, len(dates))
	}
	for i, d := range dates {
		pt, ok := byDate[d]
		if !ok || IsMissing(pt.Value) {
			vals[i] = Missing()
			if pct != nil {
				pct[i] = Missing()
			}
			continue
		}
		vals[i] = pt.Value
		if pct != nil {
			pct[i] = pt.PctChange
		}
	}
	return vals, pct
}

// fillBothWays forward-fills then backward-fills missing values in place.
// Applied to liquidity level columns only, after the market merge.
func fillBothWays(vals []float64) {
	last := Missing()
	for i := range vals {
		if IsMissing(vals[i]) {
			vals[i] = last
		} else {
			last = vals[i]
		}
	}
	next := Missing()
	for i := len(vals) - 1; i >= 0; i-- {
		if IsMissing(vals[i]) {
			vals[i] = next
		} else {
			next = vals[i]
		}
	}
}
