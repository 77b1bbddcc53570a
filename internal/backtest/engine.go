package backtest

import (
	"fmt"

	"LiqFlow/internal/domain/models"
	"LiqFlow/internal/prediction"
	applogger "LiqFlow/pkg/logger"
)

// Config controls the long/cash simulation.
type Config struct {
	// Threshold is the probability above which the strategy holds the asset.
	Threshold float64 `yaml:"threshold"`
}

// DefaultConfig returns the standard 0.5 decision boundary.
func DefaultConfig() Config {
	return Config{Threshold: 0.5}
}

// Engine replays a trained model over the held-out rows of its dataset as a
// long/cash strategy and compares it against buy-and-hold.
type Engine struct {
	cfg Config
	l   *applogger.Logger
}

// NewEngine creates a backtest engine. Logger may be nil.
func NewEngine(cfg Config, l *applogger.Logger) *Engine {
	if cfg.Threshold <= 0 || cfg.Threshold >= 1 {
		cfg.Threshold = 0.5
	}
	return &Engine{cfg: cfg, l: l}
}

// Run walks the held-out segment in date order. Each row's probability
// decides the posture for that row's forward weekly return: LONG earns the
// return, CASH earns zero. Both equity curves compound multiplicatively
// from 1.0; reported returns are the final curve values minus one, in
// percent, and alpha is their difference.
func (e *Engine) Run(model *prediction.TrainedModel, ds *prediction.Dataset) (*models.BacktestResult, error) {
	if model.Split >= len(ds.X) {
		return nil, fmt.Errorf("%w: no held-out rows to simulate", models.ErrInsufficientData)
	}

	res := &models.BacktestResult{
		Symbol:    ds.Symbol,
		Threshold: e.cfg.Threshold,
		Rows:      make([]models.BacktestRow, 0, len(ds.X)-model.Split),
	}
	buyHold, strategy := 1.0, 1.0
	for i := model.Split; i < len(ds.X); i++ {
		proba := model.Proba(ds.X[i])
		row := models.BacktestRow{
			Date:         ds.Dates[i],
			Probability:  proba,
			Signal:       models.SignalCash,
			WeeklyReturn: ds.Returns[i],
		}
		if proba > e.cfg.Threshold {
			row.Signal = models.SignalLong
			row.StrategyReturn = ds.Returns[i]
		}
		buyHold *= 1 + ds.Returns[i]/100
		strategy *= 1 + row.StrategyReturn/100
		row.CumulativeBuyHold = buyHold
		row.CumulativeStrategy = strategy
		res.Rows = append(res.Rows, row)
	}

	res.TotalReturn = (buyHold - 1) * 100
	res.StrategyReturn = (strategy - 1) * 100
	res.Alpha = res.StrategyReturn - res.TotalReturn

	if e.l != nil {
		e.l.Info("backtest complete",
			applogger.String("symbol", ds.Symbol),
			applogger.String("model", string(model.Kind)),
			applogger.Int("rows", len(res.Rows)),
			applogger.Float64("strategy_return", res.StrategyReturn),
			applogger.Float64("buy_hold_return", res.TotalReturn),
			applogger.Float64("alpha", res.Alpha),
		)
	}
	return res, nil
}
