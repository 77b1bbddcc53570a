package analysis

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"LiqFlow/internal/domain/models"
	applogger "LiqFlow/pkg/logger"
)

// Config holds the flow-condition thresholds, in percent change.
type Config struct {
	// TGADrainPct marks Treasury General Account drainage (cash leaving the
	// TGA injects liquidity) when its change falls below this.
	TGADrainPct float64 `yaml:"tga_drain_pct"`
	// RRPOutflowPct marks reverse-repo outflow when its change falls below
	// this.
	RRPOutflowPct float64 `yaml:"rrp_outflow_pct"`
	// AuctionHeavyPct and AuctionLightPct bound the auction-activity buckets.
	AuctionHeavyPct float64 `yaml:"auction_heavy_pct"`
	AuctionLightPct float64 `yaml:"auction_light_pct"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		TGADrainPct:     -1.0,
		RRPOutflowPct:   -2.0,
		AuctionHeavyPct: 10.0,
		AuctionLightPct: -10.0,
	}
}

// Analyzer computes conditional return statistics over liquidity flows,
// auction activity and liquidity quartiles.
type Analyzer struct {
	cfg Config
	l   *applogger.Logger
}

// NewAnalyzer creates a flow analyzer. Logger may be nil.
func NewAnalyzer(cfg Config, l *applogger.Logger) *Analyzer {
	return &Analyzer{cfg: cfg, l: l}
}

// FlowDynamics splits weekly returns by binary liquidity-flow conditions:
// TGA drainage, reverse-repo outflow, balance-sheet expansion, and the
// double-injection overlap of the first two.
func (a *Analyzer) FlowDynamics(p *models.Panel) (*models.FlowReport, error) {
	weekly, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColWeeklyReturn)
	}

	report := &models.FlowReport{}
	tga, okTGA := p.Column(models.ColTGA + "_pct_change")
	rrp, okRRP := p.Column(models.ColRRP + "_pct_change")
	walcl, okWALCL := p.Column(models.ColWALCL + "_pct_change")

	if okTGA {
		report.TGADrainage = splitByCondition("tga_drainage", weekly, tga, func(v float64) bool {
			return v < a.cfg.TGADrainPct
		})
	}
	if okRRP {
		report.RRPOutflow = splitByCondition("rrp_outflow", weekly, rrp, func(v float64) bool {
			return v < a.cfg.RRPOutflowPct
		})
	}
	if okWALCL {
		report.FedExpansion = splitByCondition("fed_expansion", weekly, walcl, func(v float64) bool {
			return v > 0
		})
	}
	if okTGA && okRRP {
		report.DoubleInjection = splitByPair("double_injection", weekly, tga, rrp, func(t, r float64) bool {
			return t < a.cfg.TGADrainPct && r < a.cfg.RRPOutflowPct
		})
	}

	if report.TGADrainage == nil && report.RRPOutflow == nil &&
		report.FedExpansion == nil && report.DoubleInjection == nil {
		return nil, fmt.Errorf("%w: no flow change columns present", models.ErrNoUsableData)
	}
	if a.l != nil {
		a.l.Debug("computed flow dynamics", applogger.String("symbol", p.Symbol()))
	}
	return report, nil
}

// AuctionImpact buckets rows by weekly auction-activity change and reports
// per-bucket weekly return statistics, heaviest issuance first.
func (a *Analyzer) AuctionImpact(p *models.Panel) ([]models.AuctionBucketStats, error) {
	weekly, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColWeeklyReturn)
	}
	auctions, ok := p.Column(models.ColAuctions)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColAuctions)
	}
	change, ok := p.Column(models.ColAuctions + "_pct_change")
	if !ok {
		return nil, fmt.Errorf("%w: %s_pct_change", models.ErrMissingColumn, models.ColAuctions)
	}

	buckets := []struct {
		name  string
		match func(float64) bool
	}{
		{"Heavy_Issuance", func(v float64) bool { return v > a.cfg.AuctionHeavyPct }},
		{"Normal", func(v float64) bool { return v >= a.cfg.AuctionLightPct && v <= a.cfg.AuctionHeavyPct }},
		{"Light_Issuance", func(v float64) bool { return v < a.cfg.AuctionLightPct }},
	}

	out := make([]models.AuctionBucketStats, 0, len(buckets))
	for _, b := range buckets {
		var rets, vals []float64
		for i := range change {
			if models.IsMissing(change[i]) || models.IsMissing(weekly[i]) || models.IsMissing(auctions[i]) {
				continue
			}
			if b.match(change[i]) {
				rets = append(rets, weekly[i])
				vals = append(vals, auctions[i])
			}
		}
		if len(rets) == 0 {
			continue
		}
		out = append(out, models.AuctionBucketStats{
			Bucket:       b.name,
			WeeklyReturn: groupStats(rets),
			MeanValue:    stat.Mean(vals, nil),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no auction observations", models.ErrNoUsableData)
	}
	return out, nil
}

// QuartileStats reports return statistics for each liquidity quartile,
// tightest first. Quartiles with no observations are omitted.
func (a *Analyzer) QuartileStats(p *models.Panel) ([]models.QuartileStats, error) {
	regime, ok := p.Column(models.ColLiqRegime)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColLiqRegime)
	}
	weekly, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColWeeklyReturn)
	}
	daily, _ := p.Column(models.ColDailyReturn)
	closeC, _ := p.Column(models.ColClose)

	out := make([]models.QuartileStats, 0, len(models.QuartileLabels))
	for code := range models.QuartileLabels {
		var rets, days []float64
		lastClose := models.Missing()
		for i := range regime {
			if models.IsMissing(regime[i]) || int(regime[i]) != code {
				continue
			}
			if !models.IsMissing(weekly[i]) {
				rets = append(rets, weekly[i])
			}
			if daily != nil && !models.IsMissing(daily[i]) {
				days = append(days, daily[i])
			}
			if closeC != nil && !models.IsMissing(closeC[i]) {
				lastClose = closeC[i]
			}
		}
		if len(rets) == 0 {
			continue
		}
		qs := models.QuartileStats{
			Quartile:     models.QuartileLabels[code],
			WeeklyReturn: groupStats(rets),
			LastClose:    lastClose,
		}
		if len(days) > 0 {
			qs.DailyReturn = groupStats(days)
		}
		out = append(out, qs)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no quartile assignments", models.ErrNoUsableData)
	}
	return out, nil
}

func splitByCondition(name string, weekly, signal []float64, match func(float64) bool) *models.FlowCondition {
	var active, inactive []float64
	for i := range signal {
		if models.IsMissing(signal[i]) || models.IsMissing(weekly[i]) {
			continue
		}
		if match(signal[i]) {
			active = append(active, weekly[i])
		} else {
			inactive = append(inactive, weekly[i])
		}
	}
	if len(active) == 0 && len(inactive) == 0 {
		return nil
	}
	return &models.FlowCondition{
		Name:     name,
		Active:   groupStats(active),
		Inactive: groupStats(inactive),
	}
}

func splitByPair(name string, weekly, x, y []float64, match func(x, y float64) bool) *models.FlowCondition {
	var active, inactive []float64
	for i := range x {
		if models.IsMissing(x[i]) || models.IsMissing(y[i]) || models.IsMissing(weekly[i]) {
			continue
		}
		if match(x[i], y[i]) {
			active = append(active, weekly[i])
		} else {
			inactive = append(inactive, weekly[i])
		}
	}
	if len(active) == 0 && len(inactive) == 0 {
		return nil
	}
	return &models.FlowCondition{
		Name:     name,
		Active:   groupStats(active),
		Inactive: groupStats(inactive),
	}
}

func groupStats(xs []float64) models.GroupStats {
	gs := models.GroupStats{Count: len(xs)}
	if len(xs) == 0 {
		return gs
	}
	gs.Mean = stat.Mean(xs, nil)
	if len(xs) > 1 {
		gs.Std = stat.StdDev(xs, nil)
	}
	return gs
}
