package features

import (
	"fmt"

	"LiqFlow/internal/domain/models"
	applogger "LiqFlow/pkg/logger"
)

// Engineering window constants, in trading rows (5 rows = 1 week).
const (
	TradingWeek      = 5
	smaWindow        = 200
	momentumWindow   = 50
	momentumBullPct  = 10.0
	momentumBearPct  = -10.0
	stressQuantile   = 0.80
	momentumDiffRows = 5
)

var velocityWindows = []struct {
	Rows   int
	Suffix string
}{
	{5, "1w"},
	{10, "2w"},
	{20, "1m"},
}

var returnHorizonColumns = []struct {
	Rows int
	Name string
}{
	{10, "return_2w"},
	{20, "return_1m"},
	{60, "return_3m"},
}

var (
	mlLagRows    = []int{1, 5, 10, 20}
	mlMAWindows  = []int{5, 20, 50}
	mlROCWindows = []int{5, 20}
	volWindows   = []int{20, 50}
)

// Column naming scheme for derived features.
func LagWeekColumn(col string, weeks int) string  { return fmt.Sprintf("%s_lag_%dw", col, weeks) }
func LagRowColumn(col string, rows int) string    { return fmt.Sprintf("%s_lag_%d", col, rows) }
func MAColumn(col string, rows int) string        { return fmt.Sprintf("%s_ma_%d", col, rows) }
func ROCColumn(col string, rows int) string       { return fmt.Sprintf("%s_roc_%d", col, rows) }
func VelocityColumn(col, suffix string) string    { return fmt.Sprintf("%s_velocity_%s", col, suffix) }
func VolatilityColumn(rows int) string            { return fmt.Sprintf("price_volatility_%d", rows) }

// ReturnHorizonColumns lists the multi-horizon return column names in
// ascending horizon order.
func ReturnHorizonColumns() []string {
	out := make([]string, 0, len(returnHorizonColumns))
	for _, h := range returnHorizonColumns {
		out = append(out, h.Name)
	}
	return out
}

// Engineer derives lag, velocity, moving-average, momentum and regime
// features on a panel. Every operation returns a widened view; the input
// panel is never mutated.
type Engineer struct {
	l        *applogger.Logger
	lagWeeks []int
}

// Option configures an Engineer.
type Option func(*Engineer)

// WithLagWeeks overrides the default lag horizons {1,2,4} (trading weeks).
func WithLagWeeks(weeks []int) Option {
	return func(e *Engineer) {
		if len(weeks) > 0 {
			e.lagWeeks = weeks
		}
	}
}

// NewEngineer creates a feature engineer. Logger may be nil.
func NewEngineer(l *applogger.Logger, opts ...Option) *Engineer {
	e := &Engineer{l: l, lagWeeks: []int{1, 2, 4}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddLagFeatures appends, for every liquidity level column, a copy shifted by
// lag*5 rows per configured lag horizon. Rows before the horizon are missing
// by construction.
func (e *Engineer) AddLagFeatures(p *models.Panel) (*models.Panel, error) {
	levels := p.LiquidityLevels()
	if e.l != nil {
		e.l.Debug("adding lag features", applogger.Int("metrics", len(levels)))
	}
	var err error
	for _, col := range levels {
		src, _ := p.Column(col)
		for _, w := range e.lagWeeks {
			p, err = p.WithColumn(LagWeekColumn(col, w), models.ClassDerived, Shift(src, w*TradingWeek))
			if err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// AddVelocityFeatures appends 1-week, 2-week and 1-month percentage
// rate-of-change columns for every liquidity level column.
func (e *Engineer) AddVelocityFeatures(p *models.Panel) (*models.Panel, error) {
	levels := p.LiquidityLevels()
	if e.l != nil {
		e.l.Debug("adding velocity features", applogger.Int("metrics", len(levels)))
	}
	var err error
	for _, col := range levels {
		src, _ := p.Column(col)
		for _, vw := range velocityWindows {
			p, err = p.WithColumn(VelocityColumn(col, vw.Suffix), models.ClassDerived, PctChange(src, vw.Rows))
			if err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

// AddReturnHorizons appends 2-week, 1-month and 3-month percentage return
// columns computed from close. A panel without a close column is returned
// unchanged with ErrMissingColumn.
func (e *Engineer) AddReturnHorizons(p *models.Panel) (*models.Panel, error) {
	closeC, ok := p.Column(models.ColClose)
	if !ok {
		return p, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColClose)
	}
	var err error
	for _, h := range returnHorizonColumns {
		p, err = p.WithColumn(h.Name, models.ClassDerived, PctChange(closeC, h.Rows))
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// IdentifyMarketRegime appends the 200-row trailing SMA of close, a BULL/BEAR
// trend code (close above/below SMA, missing before 200 observations), the
// 50-row momentum percentage, and its BEAR/NEUTRAL/BULL bucket code.
func (e *Engineer) IdentifyMarketRegime(p *models.Panel) (*models.Panel, error) {
	closeC, ok := p.Column(models.ColClose)
	if !ok {
		return p, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColClose)
	}

	sma := RollingMean(closeC, smaWindow)
	trend := make([]float64, len(closeC))
	for i := range closeC {
		switch {
		case models.IsMissing(sma[i]) || models.IsMissing(closeC[i]):
			trend[i] = models.Missing()
		case closeC[i] > sma[i]:
			trend[i] = models.TrendBull
		default:
			trend[i] = models.TrendBear
		}
	}

	momentum := PctChange(closeC, momentumWindow)
	bucket := make([]float64, len(momentum))
	for i, m := range momentum {
		switch {
		case models.IsMissing(m):
			bucket[i] = models.Missing()
		case m < momentumBearPct:
			bucket[i] = models.MomentumBear
		case m > momentumBullPct:
			bucket[i] = models.MomentumBull
		default:
			bucket[i] = models.MomentumNeutral
		}
	}

	var err error
	for _, c := range []struct {
		name string
		vals []float64
	}{
		{models.ColSMA200, sma},
		{models.ColRegime, trend},
		{models.ColMomentum50, momentum},
		{models.ColRegimeMomentum, bucket},
	} {
		p, err = p.WithColumn(c.name, models.ClassDerived, c.vals)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AssignLiquidityQuartile splits net liquidity into four equal-frequency
// buckets using quartile cut points from the full sample, coded tightest to
// loosest.
func (e *Engineer) AssignLiquidityQuartile(p *models.Panel) (*models.Panel, error) {
	net, ok := p.Column(models.ColNetLiquidity)
	if !ok {
		return p, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColNetLiquidity)
	}
	if distinctCount(net) < 4 {
		return p, fmt.Errorf("%w: need at least 4 distinct net liquidity values", models.ErrInsufficientSample)
	}
	q1 := Quantile(net, 0.25)
	q2 := Quantile(net, 0.50)
	q3 := Quantile(net, 0.75)

	codes := make([]float64, len(net))
	for i, v := range net {
		switch {
		case models.IsMissing(v):
			codes[i] = models.Missing()
		case v <= q1:
			codes[i] = models.QuartileVeryTight
		case v <= q2:
			codes[i] = models.QuartileTight
		case v <= q3:
			codes[i] = models.QuartileLoose
		default:
			codes[i] = models.QuartileVeryLoose
		}
	}
	return p.WithColumn(models.ColLiqRegime, models.ClassDerived, codes)
}

// EngineerMLFeatures derives the modeling feature superset: per liquidity
// level column lags {1,5,10,20}, moving averages {5,20,50} and rate of change
// {5,20}; net liquidity momentum and acceleration; price volatility {20,50};
// the TGA/RRP ratio; the liquidity stress flag; and the binary up/down
// target from the weekly return sign. Rows holding any undefined engineered
// value are dropped, the single point where sample size shrinks due to
// warm-up windows.
//
// Returns the filtered panel and the declared model feature column list.
func (e *Engineer) EngineerMLFeatures(p *models.Panel) (*models.Panel, []string, error) {
	levels := p.LiquidityLevels()
	if len(levels) == 0 {
		return nil, nil, fmt.Errorf("%w: no liquidity level columns", models.ErrNoUsableData)
	}

	feats := make([]string, 0, 64)
	addFeat := func(name string) { feats = append(feats, name) }

	// Raw levels and collaborator-supplied pct changes participate as model
	// features alongside the engineered columns.
	for _, col := range levels {
		addFeat(col)
		if p.Has(col + "_pct_change") {
			addFeat(col + "_pct_change")
		}
	}

	var err error
	for _, col := range levels {
		src, _ := p.Column(col)
		for _, n := range mlLagRows {
			name := LagRowColumn(col, n)
			if p, err = p.WithColumn(name, models.ClassDerived, Shift(src, n)); err != nil {
				return nil, nil, err
			}
			addFeat(name)
		}
		for _, w := range mlMAWindows {
			name := MAColumn(col, w)
			if p, err = p.WithColumn(name, models.ClassDerived, RollingMean(src, w)); err != nil {
				return nil, nil, err
			}
			addFeat(name)
		}
		for _, w := range mlROCWindows {
			name := ROCColumn(col, w)
			if p, err = p.WithColumn(name, models.ClassDerived, PctChange(src, w)); err != nil {
				return nil, nil, err
			}
			addFeat(name)
		}
	}

	if net, ok := p.Column(models.ColNetLiquidity); ok {
		momentum := Diff(net, momentumDiffRows)
		if p, err = p.WithColumn(models.ColNetLiqMomentum, models.ClassDerived, momentum); err != nil {
			return nil, nil, err
		}
		addFeat(models.ColNetLiqMomentum)
		if p, err = p.WithColumn(models.ColNetLiqAccel, models.ClassDerived, Diff(momentum, momentumDiffRows)); err != nil {
			return nil, nil, err
		}
		addFeat(models.ColNetLiqAccel)
	}

	if closeC, ok := p.Column(models.ColClose); ok {
		for _, w := range volWindows {
			name := VolatilityColumn(w)
			if p, err = p.WithColumn(name, models.ClassDerived, RollingStd(closeC, w)); err != nil {
				return nil, nil, err
			}
			addFeat(name)
		}
	}

	tga, okT := p.Column(models.ColTGA)
	rrp, okR := p.Column(models.ColRRP)
	if okT && okR {
		ratio := make([]float64, p.Len())
		for i := range ratio {
			if models.IsMissing(tga[i]) || models.IsMissing(rrp[i]) {
				ratio[i] = models.Missing()
				continue
			}
			// +1 guards the zero-RRP division.
			ratio[i] = tga[i] / (rrp[i] + 1)
		}
		if p, err = p.WithColumn(models.ColTGARRPRatio, models.ClassDerived, ratio); err != nil {
			return nil, nil, err
		}
		addFeat(models.ColTGARRPRatio)

		q80 := Quantile(tga, stressQuantile)
		stress := make([]float64, p.Len())
		for i := range stress {
			if models.IsMissing(tga[i]) || models.IsMissing(q80) {
				stress[i] = models.Missing()
				continue
			}
			if tga[i] > q80 {
				stress[i] = 1
			}
		}
		if p, err = p.WithColumn(models.ColLiquidityStress, models.ClassDerived, stress); err != nil {
			return nil, nil, err
		}
		addFeat(models.ColLiquidityStress)
	}

	p, err = e.withTarget(p)
	if err != nil {
		return nil, nil, err
	}

	// Drop warm-up rows: the downstream consumers see only complete rows.
	required := append(append([]string{}, feats...), models.ColTargetUp, models.ColWeeklyReturn)
	idx, err := p.Select(required...)
	if err != nil {
		return nil, nil, err
	}
	if e.l != nil {
		e.l.Info("engineered ml features",
			applogger.String("symbol", p.Symbol()),
			applogger.Int("features", len(feats)),
			applogger.Int("rows_in", p.Len()),
			applogger.Int("rows_out", len(idx)),
		)
	}
	filtered, err := p.FilterRows(idx)
	if err != nil {
		return nil, nil, err
	}
	return filtered, feats, nil
}

// VelocityFeatureColumns returns the liquidity levels plus their velocity
// columns present in the panel, in schema order. This is the feature set for
// regime- and horizon-conditioned correlation rankings.
func (e *Engineer) VelocityFeatureColumns(p *models.Panel) []string {
	out := make([]string, 0, 4*len(models.LiquidityLevelColumns))
	for _, col := range p.LiquidityLevels() {
		out = append(out, col)
		for _, vw := range velocityWindows {
			if name := VelocityColumn(col, vw.Suffix); p.Has(name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// LagVelocityFeatureColumns additionally includes the weekly lag columns.
// This is the feature set for the lagged correlation ranking.
func (e *Engineer) LagVelocityFeatureColumns(p *models.Panel) []string {
	out := make([]string, 0, 8*len(models.LiquidityLevelColumns))
	for _, col := range p.LiquidityLevels() {
		out = append(out, col)
		for _, w := range e.lagWeeks {
			if name := LagWeekColumn(col, w); p.Has(name) {
				out = append(out, name)
			}
		}
		for _, vw := range velocityWindows {
			if name := VelocityColumn(col, vw.Suffix); p.Has(name) {
				out = append(out, name)
			}
		}
	}
	return out
}

// withTarget derives the binary up/down target from the weekly return sign,
// computing the weekly return from close first when it is absent.
func (e *Engineer) withTarget(p *models.Panel) (*models.Panel, error) {
	weekly, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		closeC, okC := p.Column(models.ColClose)
		if !okC {
			return nil, fmt.Errorf("%w: %s (and no %s to derive it)", models.ErrMissingColumn, models.ColWeeklyReturn, models.ColClose)
		}
		weekly = PctChange(closeC, TradingWeek)
		var err error
		if p, err = p.WithColumn(models.ColWeeklyReturn, models.ClassMarket, weekly); err != nil {
			return nil, err
		}
	}
	target := make([]float64, len(weekly))
	for i, r := range weekly {
		switch {
		case models.IsMissing(r):
			target[i] = models.Missing()
		case r > 0:
			target[i] = 1
		default:
			target[i] = 0
		}
	}
	return p.WithColumn(models.ColTargetUp, models.ClassDerived, target)
}

func distinctCount(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		if models.IsMissing(v) {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}
