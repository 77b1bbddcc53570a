package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"LiqFlow/internal/analysis"
	"LiqFlow/internal/backtest"
	"LiqFlow/internal/correlation"
	"LiqFlow/internal/domain/models"
	domrepo "LiqFlow/internal/domain/repository"
	"LiqFlow/internal/features"
	"LiqFlow/internal/prediction"
	applogger "LiqFlow/pkg/logger"
)

// PipelineConfig selects what a run covers.
type PipelineConfig struct {
	// Symbols restricts the run; empty means every symbol the source knows.
	Symbols []string `yaml:"symbols"`
	// Model is the classifier family used for the headline report and the
	// backtest. The comparison table always covers all families.
	Model models.ModelKind `yaml:"model"`
	// Compare enables the cross-model comparison table.
	Compare bool `yaml:"compare"`
}

// Pipeline orchestrates a full analysis run: load panels, engineer features,
// rank correlations, train and backtest, persist and publish. Symbols fail
// independently; one bad history never aborts the run.
type Pipeline struct {
	cfg        PipelineConfig
	source     domrepo.PanelSource
	store      domrepo.ResultStore
	publisher  domrepo.SignalPublisher
	metrics    domrepo.Metrics
	engineer   *features.Engineer
	corr       *correlation.Engine
	pred       *prediction.Engine
	backtester *backtest.Engine
	analyzer   *analysis.Analyzer
	l          *applogger.Logger
}

// NewPipeline wires the analysis stages together. Publisher and metrics may
// be nil when the deployment runs without Kafka or Prometheus.
func NewPipeline(
	cfg PipelineConfig,
	source domrepo.PanelSource,
	store domrepo.ResultStore,
	publisher domrepo.SignalPublisher,
	metrics domrepo.Metrics,
	engineer *features.Engineer,
	corr *correlation.Engine,
	pred *prediction.Engine,
	backtester *backtest.Engine,
	analyzer *analysis.Analyzer,
	l *applogger.Logger,
) *Pipeline {
	if cfg.Model == "" {
		cfg.Model = models.ModelRandomForest
	}
	return &Pipeline{
		cfg:        cfg,
		source:     source,
		store:      store,
		publisher:  publisher,
		metrics:    metrics,
		engineer:   engineer,
		corr:       corr,
		pred:       pred,
		backtester: backtester,
		analyzer:   analyzer,
		l:          l,
	}
}

// Run executes one full analysis pass and persists the outcome.
func (p *Pipeline) Run(ctx context.Context) (*models.RunOutcome, error) {
	start := time.Now()
	symbols := p.cfg.Symbols
	if len(symbols) == 0 {
		var err error
		symbols, err = p.source.Symbols(ctx)
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordError("list_symbols")
			}
			return nil, fmt.Errorf("list symbols: %w", err)
		}
	}

	run := &models.RunOutcome{
		RunID:     uuid.NewString(),
		StartedAt: start,
		Symbols:   make(map[string]*models.SymbolAnalysis, len(symbols)),
		Failures:  make(map[string]string),
	}
	p.l.Info("analysis run starting",
		applogger.String("run_id", run.RunID),
		applogger.Strings("symbols", symbols),
	)

	var signals []*models.SignalEvent
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sa, ev, err := p.analyzeSymbol(ctx, symbol)
		if err != nil {
			run.Failures[symbol] = err.Error()
			if p.metrics != nil {
				p.metrics.RecordSymbol(symbol, "failed")
			}
			p.l.Error("symbol analysis failed",
				applogger.String("run_id", run.RunID),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		run.Symbols[symbol] = sa
		if ev != nil {
			ev.RunID = run.RunID
			signals = append(signals, ev)
		}
		if p.metrics != nil {
			p.metrics.RecordSymbol(symbol, "ok")
		}
	}
	run.FinishedAt = time.Now()

	if len(run.Symbols) == 0 {
		if p.metrics != nil {
			p.metrics.RecordRun("failed", time.Since(start).Seconds())
		}
		return nil, fmt.Errorf("%w: all %d symbols failed", models.ErrNoUsableData, len(symbols))
	}

	if p.store != nil {
		if err := p.store.StoreRun(ctx, run); err != nil {
			if p.metrics != nil {
				p.metrics.RecordError("store_run")
			}
			return nil, fmt.Errorf("persist run %s: %w", run.RunID, err)
		}
	}
	if p.publisher != nil && len(signals) > 0 {
		if err := p.publisher.PublishBatch(ctx, signals); err != nil {
			// Results are already persisted; publish failure is non-fatal.
			if p.metrics != nil {
				p.metrics.RecordError("publish_signals")
			}
			p.l.Error("signal publish failed",
				applogger.String("run_id", run.RunID),
				applogger.Error(err),
			)
		} else if p.metrics != nil {
			for _, ev := range signals {
				p.metrics.RecordSignal(ev.Symbol, string(ev.Signal))
			}
		}
	}
	if p.metrics != nil {
		p.metrics.RecordRun("ok", time.Since(start).Seconds())
	}

	p.l.Info("analysis run complete",
		applogger.String("run_id", run.RunID),
		applogger.Int("symbols", len(run.Symbols)),
		applogger.Int("failures", len(run.Failures)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return run, nil
}

// analyzeSymbol runs the full stage sequence for one symbol. Stages degrade
// independently: a history too short to train still yields its correlation
// tables, and vice versa.
func (p *Pipeline) analyzeSymbol(ctx context.Context, symbol string) (*models.SymbolAnalysis, *models.SignalEvent, error) {
	panel, err := p.source.LoadPanel(ctx, symbol)
	if err != nil {
		return nil, nil, fmt.Errorf("load panel: %w", err)
	}

	panel, err = p.engineer.AddLagFeatures(panel)
	if err != nil {
		return nil, nil, fmt.Errorf("lag features: %w", err)
	}
	panel, err = p.engineer.AddVelocityFeatures(panel)
	if err != nil {
		return nil, nil, fmt.Errorf("velocity features: %w", err)
	}
	panel, err = p.engineer.AddReturnHorizons(panel)
	if err != nil {
		return nil, nil, fmt.Errorf("return horizons: %w", err)
	}
	if widened, err := p.engineer.IdentifyMarketRegime(panel); err != nil {
		p.warn(symbol, "market regime skipped", err)
	} else {
		panel = widened
	}
	if widened, err := p.engineer.AssignLiquidityQuartile(panel); err != nil {
		p.warn(symbol, "liquidity quartile skipped", err)
	} else {
		panel = widened
	}

	sa := &models.SymbolAnalysis{Symbol: symbol}

	if table, err := p.corr.PlainRanking(panel); err != nil {
		p.warn(symbol, "plain ranking skipped", err)
	} else {
		sa.Plain = &table
	}
	laggedFeats := p.engineer.LagVelocityFeatureColumns(panel)
	if table, err := p.corr.LaggedRanking(panel, laggedFeats); err != nil {
		p.warn(symbol, "lagged ranking skipped", err)
	} else {
		sa.LaggedMix = &table
	}
	velFeats := p.engineer.VelocityFeatureColumns(panel)
	if byRegime, err := p.corr.RankByRegime(panel, velFeats); err != nil {
		p.warn(symbol, "regime ranking skipped", err)
	} else {
		sa.ByRegime = byRegime
	}
	if byHorizon, err := p.corr.RankByHorizon(panel, velFeats, features.ReturnHorizonColumns()); err != nil {
		p.warn(symbol, "horizon ranking skipped", err)
	} else {
		sa.ByHorizon = byHorizon
	}
	if sig, err := p.corr.SignificanceTests(panel); err != nil {
		p.warn(symbol, "significance tests skipped", err)
	} else {
		sa.Significance = sig
	}

	if flows, err := p.analyzer.FlowDynamics(panel); err != nil {
		p.warn(symbol, "flow dynamics skipped", err)
	} else {
		sa.Flows = flows
	}
	if buckets, err := p.analyzer.AuctionImpact(panel); err != nil {
		p.warn(symbol, "auction impact skipped", err)
	} else {
		sa.AuctionImpact = buckets
	}
	if quartiles, err := p.analyzer.QuartileStats(panel); err != nil {
		p.warn(symbol, "quartile stats skipped", err)
	} else {
		sa.Quartiles = quartiles
	}

	ev := p.modelStages(ctx, symbol, panel, sa)

	if sa.Plain == nil && sa.Model == nil {
		return nil, nil, fmt.Errorf("%w: no stage produced a result", models.ErrNoUsableData)
	}
	return sa, ev, nil
}

// modelStages covers dataset preparation, training, comparison and backtest.
// Returns the latest-posture signal event when a backtest ran.
func (p *Pipeline) modelStages(ctx context.Context, symbol string, panel *models.Panel, sa *models.SymbolAnalysis) *models.SignalEvent {
	mlPanel, feats, err := p.engineer.EngineerMLFeatures(panel)
	if err != nil {
		p.warn(symbol, "ml features skipped", err)
		return nil
	}
	ds, err := p.pred.PrepareDataset(mlPanel, feats)
	if err != nil {
		p.warn(symbol, "dataset skipped", err)
		return nil
	}
	trained, report, err := p.pred.Train(p.cfg.Model, ds)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientData) {
			p.warn(symbol, "training skipped", err)
			return nil
		}
		p.warn(symbol, "training failed", err)
		return nil
	}
	sa.Model = report

	if p.cfg.Compare {
		if scores, err := p.pred.Compare(ds); err != nil {
			p.warn(symbol, "model comparison skipped", err)
		} else {
			sa.Comparison = scores
		}
	}

	bt, err := p.backtester.Run(trained, ds)
	if err != nil {
		p.warn(symbol, "backtest skipped", err)
		return nil
	}
	sa.Backtest = bt

	last := bt.Rows[len(bt.Rows)-1]
	return &models.SignalEvent{
		Symbol:      symbol,
		Date:        last.Date,
		Model:       trained.Kind,
		Probability: last.Probability,
		Signal:      last.Signal,
	}
}

func (p *Pipeline) warn(symbol, msg string, err error) {
	p.l.Warn(msg,
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
}
