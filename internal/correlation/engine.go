package correlation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"LiqFlow/internal/domain/models"
	applogger "LiqFlow/pkg/logger"
)

// Minimum overlapping non-missing observations a feature needs before its
// correlation enters a ranking. Smaller samples are excluded, not imputed.
const (
	MinPlainSamples  = 10
	MinRegimeSamples = 20
	MinLaggedSamples = 30
)

// Engine ranks candidate features by linear association with forward returns,
// plain or conditioned on regime and horizon.
type Engine struct {
	l *applogger.Logger
}

// NewEngine creates a correlation engine. Logger may be nil.
func NewEngine(l *applogger.Logger) *Engine {
	return &Engine{l: l}
}

// Rank computes Pearson correlations of each feature against target over
// their overlapping non-missing rows, excludes features below minSamples or
// with non-finite results, and sorts descending by absolute correlation.
// The sort is stable: ties keep discovery order, so the ranking is
// reproducible run to run.
func (e *Engine) Rank(p *models.Panel, feats []string, target string, minSamples int) (models.CorrelationTable, error) {
	table := models.CorrelationTable{Target: target}
	tgt, ok := p.Column(target)
	if !ok {
		return table, fmt.Errorf("%w: %s", models.ErrMissingColumn, target)
	}

	for _, name := range feats {
		col, ok := p.Column(name)
		if !ok {
			continue
		}
		xs, ys := overlap(col, tgt)
		if len(xs) < minSamples {
			if e.l != nil {
				e.l.Debug("feature excluded from ranking",
					applogger.String("feature", name),
					applogger.Int("samples", len(xs)),
					applogger.Int("required", minSamples),
				)
			}
			continue
		}
		r := stat.Correlation(xs, ys, nil)
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		table.Entries = append(table.Entries, models.CorrelationEntry{
			Feature:        name,
			Correlation:    r,
			AbsCorrelation: math.Abs(r),
			Samples:        len(xs),
		})
	}

	sort.SliceStable(table.Entries, func(i, j int) bool {
		return table.Entries[i].AbsCorrelation > table.Entries[j].AbsCorrelation
	})
	return table, nil
}

// PlainRanking ranks the raw liquidity level columns against weekly returns.
func (e *Engine) PlainRanking(p *models.Panel) (models.CorrelationTable, error) {
	table, err := e.Rank(p, p.LiquidityLevels(), models.ColWeeklyReturn, MinPlainSamples)
	if err != nil {
		return table, err
	}
	if len(table.Entries) == 0 {
		return table, fmt.Errorf("%w: no liquidity column had %d usable observations", models.ErrNoUsableData, MinPlainSamples)
	}
	if e.l != nil {
		e.l.Info("plain correlation ranking", applogger.Int("features", len(table.Entries)))
	}
	return table, nil
}

// LaggedRanking ranks lag and velocity features against weekly returns with
// the tighter 30-sample floor.
func (e *Engine) LaggedRanking(p *models.Panel, feats []string) (models.CorrelationTable, error) {
	table, err := e.Rank(p, feats, models.ColWeeklyReturn, MinLaggedSamples)
	if err != nil {
		return table, err
	}
	if e.l != nil {
		e.l.Info("lagged correlation ranking", applogger.Int("features", len(table.Entries)))
	}
	return table, nil
}

// RankByRegime partitions rows by the trend regime code, then ranks the
// features independently within each partition. Per-regime sign and magnitude
// differences are the analytical payoff and are reported separately, never
// averaged.
func (e *Engine) RankByRegime(p *models.Panel, feats []string) (map[string]models.CorrelationTable, error) {
	regime, ok := p.Column(models.ColRegime)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColRegime)
	}

	out := make(map[string]models.CorrelationTable, 2)
	for _, code := range []float64{models.TrendBull, models.TrendBear} {
		idx := make([]int, 0, p.Len())
		for i, v := range regime {
			if !models.IsMissing(v) && v == code {
				idx = append(idx, i)
			}
		}
		label := models.TrendLabel(code)
		if e.l != nil {
			e.l.Debug("regime partition", applogger.String("regime", label), applogger.Int("rows", len(idx)))
		}
		part, err := p.FilterRows(idx)
		if err != nil {
			return nil, err
		}
		table, err := e.Rank(part, feats, models.ColWeeklyReturn, MinRegimeSamples)
		if err != nil {
			return nil, err
		}
		if len(table.Entries) == 0 {
			continue
		}
		table.Regime = label
		out[label] = table
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no regime partition produced a ranking", models.ErrNoUsableData)
	}
	return out, nil
}

// RankByHorizon runs the ranking once per return horizon column, holding the
// feature set fixed, so a feature's association can be compared across
// horizon lengths.
func (e *Engine) RankByHorizon(p *models.Panel, feats []string, horizons []string) (map[string]models.CorrelationTable, error) {
	out := make(map[string]models.CorrelationTable, len(horizons))
	for _, target := range horizons {
		if !p.Has(target) {
			continue
		}
		table, err := e.Rank(p, feats, target, MinLaggedSamples)
		if err != nil {
			return nil, err
		}
		if len(table.Entries) == 0 {
			continue
		}
		out[target] = table
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no horizon produced a ranking", models.ErrNoUsableData)
	}
	return out, nil
}

// overlap returns the paired values where both series are non-missing.
func overlap(x, y []float64) (xs, ys []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs = make([]float64, 0, n)
	ys = make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if models.IsMissing(x[i]) || models.IsMissing(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	return xs, ys
}
