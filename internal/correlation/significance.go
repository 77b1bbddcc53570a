package correlation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"LiqFlow/internal/domain/models"
)

// significanceLevel is the p-value boundary for flagging a result. It flags,
// it never filters: insignificant results stay in the report.
const significanceLevel = 0.05

// SignificanceTests runs the statistical tests relating liquidity state to
// weekly returns: an independent two-sample t-test of returns above vs at or
// below the median net liquidity, and a Pearson test of the net liquidity
// percentage change against returns. A test lacking the minimum sample is
// omitted from the report, not failed.
func (e *Engine) SignificanceTests(p *models.Panel) (*models.SignificanceReport, error) {
	report := &models.SignificanceReport{}

	if tt, err := e.highVsLowLiquidity(p); err == nil {
		report.HighVsLowLiquidity = tt
	}
	if pr, err := e.netLiqChangeCorrelation(p); err == nil {
		report.NetLiqChangeVsRet = pr
	}

	if report.HighVsLowLiquidity == nil && report.NetLiqChangeVsRet == nil {
		return nil, fmt.Errorf("%w: no significance test had a usable sample", models.ErrNoUsableData)
	}
	return report, nil
}

func (e *Engine) highVsLowLiquidity(p *models.Panel) (*models.TTestResult, error) {
	net, ok := p.Column(models.ColNetLiquidity)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColNetLiquidity)
	}
	ret, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColWeeklyReturn)
	}

	median := medianOf(net)
	if models.IsMissing(median) {
		return nil, fmt.Errorf("%w: net liquidity entirely missing", models.ErrInsufficientSample)
	}

	var high, low []float64
	for i := range net {
		if models.IsMissing(net[i]) || models.IsMissing(ret[i]) {
			continue
		}
		if net[i] > median {
			high = append(high, ret[i])
		} else {
			low = append(low, ret[i])
		}
	}
	t, pv, err := twoSampleTTest(high, low)
	if err != nil {
		return nil, err
	}
	return &models.TTestResult{
		TStatistic:  t,
		PValue:      pv,
		HighMean:    stat.Mean(high, nil),
		LowMean:     stat.Mean(low, nil),
		HighN:       len(high),
		LowN:        len(low),
		Significant: pv < significanceLevel,
	}, nil
}

func (e *Engine) netLiqChangeCorrelation(p *models.Panel) (*models.PearsonResult, error) {
	change, ok := p.Column(models.ColNetLiquidity + "_pct_change")
	if !ok {
		return nil, fmt.Errorf("%w: %s_pct_change", models.ErrMissingColumn, models.ColNetLiquidity)
	}
	ret, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColWeeklyReturn)
	}
	xs, ys := overlap(change, ret)
	r, pv, err := pearsonTest(xs, ys)
	if err != nil {
		return nil, err
	}
	return &models.PearsonResult{
		Correlation: r,
		PValue:      pv,
		Samples:     len(xs),
		Significant: pv < significanceLevel,
	}, nil
}

// twoSampleTTest is the independent pooled-variance t-test; the two-sided
// p-value comes from the t distribution with n1+n2-2 degrees of freedom.
func twoSampleTTest(a, b []float64) (t, p float64, err error) {
	n1, n2 := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return 0, 0, fmt.Errorf("%w: t-test needs 2 observations per group", models.ErrInsufficientSample)
	}
	m1, m2 := stat.Mean(a, nil), stat.Mean(b, nil)
	v1, v2 := stat.Variance(a, nil), stat.Variance(b, nil)
	df := n1 + n2 - 2
	pooled := ((n1-1)*v1 + (n2-1)*v2) / df
	se := math.Sqrt(pooled * (1/n1 + 1/n2))
	if se == 0 {
		return 0, 0, fmt.Errorf("%w: zero pooled variance", models.ErrInsufficientSample)
	}
	t = (m1 - m2) / se
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.CDF(-math.Abs(t))
	return t, p, nil
}

// pearsonTest computes Pearson r and its two-sided p-value via the exact
// t transform with n-2 degrees of freedom.
func pearsonTest(xs, ys []float64) (r, p float64, err error) {
	n := len(xs)
	if n < 3 {
		return 0, 0, fmt.Errorf("%w: pearson test needs 3 paired observations", models.ErrInsufficientSample)
	}
	r = stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, 0, fmt.Errorf("%w: correlation undefined (constant series)", models.ErrInsufficientSample)
	}
	if r >= 1 || r <= -1 {
		return r, 0, nil
	}
	df := float64(n - 2)
	t := r * math.Sqrt(df/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p = 2 * dist.CDF(-math.Abs(t))
	return r, p, nil
}

func medianOf(x []float64) float64 {
	return quantileOf(x, 0.5)
}

func quantileOf(x []float64, q float64) float64 {
	clean := make([]float64, 0, len(x))
	for _, v := range x {
		if !models.IsMissing(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return models.Missing()
	}
	sort.Float64s(clean)
	return stat.Quantile(q, stat.LinInterp, clean, nil)
}
