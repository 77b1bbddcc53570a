package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"LiqFlow/internal/analysis"
	"LiqFlow/internal/backtest"
	"LiqFlow/internal/correlation"
	"LiqFlow/internal/domain/models"
	domrepo "LiqFlow/internal/domain/repository"
	"LiqFlow/internal/features"
	"LiqFlow/internal/prediction"
	applogger "LiqFlow/pkg/logger"
)

type fakeSource struct {
	panels map[string]*models.Panel
	errs   map[string]error
}

func (s *fakeSource) Symbols(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.panels)+len(s.errs))
	for sym := range s.panels {
		out = append(out, sym)
	}
	for sym := range s.errs {
		out = append(out, sym)
	}
	return out, nil
}

func (s *fakeSource) LoadPanel(ctx context.Context, symbol string) (*models.Panel, error) {
	if err, ok := s.errs[symbol]; ok {
		return nil, err
	}
	p, ok := s.panels[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return p, nil
}

func (s *fakeSource) Close() error { return nil }

type fakeStore struct {
	stored *models.RunOutcome
	latest *models.RunOutcome
	err    error
}

func (s *fakeStore) Init(ctx context.Context) error { return nil }

func (s *fakeStore) StoreRun(ctx context.Context, run *models.RunOutcome) error {
	if s.err != nil {
		return s.err
	}
	s.stored = run
	return nil
}

func (s *fakeStore) LatestRun(ctx context.Context) (*models.RunOutcome, error) {
	return s.latest, s.err
}

func (s *fakeStore) Health(ctx context.Context) error { return nil }
func (s *fakeStore) Close() error                     { return nil }

type fakePublisher struct {
	events []*models.SignalEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, ev *models.SignalEvent) error {
	return p.PublishBatch(ctx, []*models.SignalEvent{ev})
}

func (p *fakePublisher) PublishBatch(ctx context.Context, evs []*models.SignalEvent) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evs...)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// liquidityPanel builds a panel with enough history for the full stage
// sequence, including training and backtest.
func liquidityPanel(t *testing.T, n int) *models.Panel {
	t.Helper()
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	quotes := make([]models.Quote, n)
	for i := range quotes {
		price := 100 + float64(i) + 3*float64(i%4)
		quotes[i] = models.Quote{
			Date: base.AddDate(0, 0, i),
			Open: price, High: price + 1, Low: price - 1, Close: price,
			Volume: 1000,
		}
	}
	level := func(name string, f func(i int) float64) models.LevelSeries {
		points := make([]models.LevelPoint, n)
		for i := range points {
			points[i] = models.LevelPoint{Date: base.AddDate(0, 0, i), Value: f(i), PctChange: float64(i%5) - 2}
		}
		return models.LevelSeries{Name: name, Points: points}
	}
	p, err := models.BuildPanel("SPY", quotes,
		[]models.LevelSeries{
			level(models.ColWALCL, func(i int) float64 { return 7000 + float64(i) }),
			level(models.ColTGA, func(i int) float64 { return 700 + 10*float64(i%7) }),
			level(models.ColRRP, func(i int) float64 { return 300 + 5*float64(i%5) }),
			level(models.ColAuctions, func(i int) float64 { return 90 + float64(i%11) }),
		})
	if err != nil {
		t.Fatalf("build panel: %v", err)
	}
	return p
}

func newTestPipeline(cfg PipelineConfig, source *fakeSource, store *fakeStore, pub *fakePublisher, l *applogger.Logger) *Pipeline {
	engineer := features.NewEngineer(l)
	corr := correlation.NewEngine(l)
	pred := prediction.NewEngine(prediction.DefaultConfig(), l)
	backtester := backtest.NewEngine(backtest.DefaultConfig(), l)
	analyzer := analysis.NewAnalyzer(analysis.DefaultConfig(), l)
	var publisher domrepo.SignalPublisher
	if pub != nil {
		publisher = pub
	}
	return NewPipeline(cfg, source, store, publisher, nil, engineer, corr, pred, backtester, analyzer, l)
}

func TestRunAnalyzesSymbolsAndStores(t *testing.T) {
	l := testLogger(t)
	source := &fakeSource{panels: map[string]*models.Panel{"SPY": liquidityPanel(t, 130)}}
	store := &fakeStore{}
	pub := &fakePublisher{}

	pipe := newTestPipeline(PipelineConfig{Model: models.ModelLogistic}, source, store, pub, l)
	run, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if run.RunID == "" {
		t.Fatalf("run id missing")
	}
	sa, ok := run.Symbols["SPY"]
	if !ok {
		t.Fatalf("SPY analysis missing")
	}
	if sa.Plain == nil {
		t.Fatalf("plain ranking missing")
	}
	if sa.Model == nil {
		t.Fatalf("model report missing")
	}
	if sa.Backtest == nil {
		t.Fatalf("backtest missing")
	}
	if store.stored == nil || store.stored.RunID != run.RunID {
		t.Fatalf("run was not persisted")
	}
	if len(pub.events) != 1 || pub.events[0].Symbol != "SPY" {
		t.Fatalf("expected one published signal, got %v", pub.events)
	}
	if pub.events[0].RunID != run.RunID {
		t.Fatalf("signal not stamped with run id")
	}
}

func TestRunIsolatesSymbolFailures(t *testing.T) {
	l := testLogger(t)
	source := &fakeSource{
		panels: map[string]*models.Panel{"SPY": liquidityPanel(t, 130)},
		errs:   map[string]error{"QQQ": errors.New("feed down")},
	}
	store := &fakeStore{}

	pipe := newTestPipeline(PipelineConfig{Symbols: []string{"SPY", "QQQ"}, Model: models.ModelLogistic}, source, store, nil, l)
	run, err := pipe.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := run.Symbols["SPY"]; !ok {
		t.Fatalf("healthy symbol should survive")
	}
	if _, ok := run.Failures["QQQ"]; !ok {
		t.Fatalf("failed symbol should be recorded")
	}
}

func TestRunAllSymbolsFailed(t *testing.T) {
	l := testLogger(t)
	source := &fakeSource{errs: map[string]error{"QQQ": errors.New("feed down")}}
	pipe := newTestPipeline(PipelineConfig{}, source, &fakeStore{}, nil, l)
	_, err := pipe.Run(context.Background())
	if !errors.Is(err, models.ErrNoUsableData) {
		t.Fatalf("expected ErrNoUsableData, got %v", err)
	}
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	l := testLogger(t)
	source := &fakeSource{panels: map[string]*models.Panel{"SPY": liquidityPanel(t, 130)}}
	store := &fakeStore{err: errors.New("clickhouse down")}
	pipe := newTestPipeline(PipelineConfig{Model: models.ModelLogistic}, source, store, nil, l)
	if _, err := pipe.Run(context.Background()); err == nil {
		t.Fatalf("expected store failure to abort the run")
	}
}

func TestRunPublishFailureIsNotFatal(t *testing.T) {
	l := testLogger(t)
	source := &fakeSource{panels: map[string]*models.Panel{"SPY": liquidityPanel(t, 130)}}
	pub := &fakePublisher{err: errors.New("broker down")}
	pipe := newTestPipeline(PipelineConfig{Model: models.ModelLogistic}, source, &fakeStore{}, pub, l)
	if _, err := pipe.Run(context.Background()); err != nil {
		t.Fatalf("publish failure must not abort the run: %v", err)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	l := testLogger(t)
	source := &fakeSource{panels: map[string]*models.Panel{"SPY": liquidityPanel(t, 130)}}
	pipe := newTestPipeline(PipelineConfig{}, source, &fakeStore{}, nil, l)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := pipe.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
