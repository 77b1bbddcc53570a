package repository

import (
	"context"

	"LiqFlow/internal/domain/models"
)

// PanelSource loads per-symbol panels of market quotes merged with Fed
// liquidity level series.
type PanelSource interface {
	Symbols(ctx context.Context) ([]string, error)
	LoadPanel(ctx context.Context, symbol string) (*models.Panel, error)
	Close() error
}

// ResultStore persists analysis runs and serves the latest one back.
type ResultStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	StoreRun(ctx context.Context, run *models.RunOutcome) error
	LatestRun(ctx context.Context) (*models.RunOutcome, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// SignalPublisher emits fresh posture signals produced by a run.
type SignalPublisher interface {
	Publish(ctx context.Context, ev *models.SignalEvent) error
	PublishBatch(ctx context.Context, evs []*models.SignalEvent) error
	Close() error
}

// Metrics records run-level operational counters.
type Metrics interface {
	RecordRun(status string, seconds float64)
	RecordSymbol(symbol, status string)
	RecordSignal(symbol string, signal string)
	RecordError(kind string)
}
