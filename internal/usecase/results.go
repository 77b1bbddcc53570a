package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"LiqFlow/internal/domain/models"
	domrepo "LiqFlow/internal/domain/repository"
	pkgcache "LiqFlow/pkg/cache"
	applogger "LiqFlow/pkg/logger"
)

// ErrSymbolNotFound is returned when the latest run has no result for the
// requested symbol.
var ErrSymbolNotFound = errors.New("symbol not in latest run")

// ErrNoRuns is returned when no run has completed yet.
var ErrNoRuns = errors.New("no completed runs")

var latestRunKey = pkgcache.GenerateKey("run", "latest")

// ResultsView serves the latest run's per-symbol results, with a short-lived
// cache in front of the store so API reads do not hammer ClickHouse.
type ResultsView struct {
	store domrepo.ResultStore
	cache pkgcache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

// NewResultsView creates a results view. Cache may be nil to read through.
func NewResultsView(store domrepo.ResultStore, cache pkgcache.Service, ttl time.Duration, l *applogger.Logger) *ResultsView {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ResultsView{store: store, cache: cache, ttl: ttl, l: l}
}

// Latest returns the most recent run outcome.
func (v *ResultsView) Latest(ctx context.Context) (*models.RunOutcome, error) {
	if v.cache != nil {
		var cached models.RunOutcome
		if err := v.cache.Get(ctx, latestRunKey, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, pkgcache.ErrCacheMiss) && v.l != nil {
			v.l.Warn("results cache read failed", applogger.Error(err))
		}
	}

	if v.store == nil {
		return nil, ErrNoRuns
	}
	run, err := v.store.LatestRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	if run == nil {
		return nil, ErrNoRuns
	}
	if v.cache != nil {
		if err := v.cache.Set(ctx, latestRunKey, run, v.ttl); err != nil && v.l != nil {
			v.l.Warn("results cache write failed", applogger.Error(err))
		}
	}
	return run, nil
}

// Symbol returns the latest analysis for one symbol.
func (v *ResultsView) Symbol(ctx context.Context, symbol string) (*models.SymbolAnalysis, error) {
	run, err := v.Latest(ctx)
	if err != nil {
		return nil, err
	}
	sa, ok := run.Symbols[symbol]
	if !ok {
		if reason, failed := run.Failures[symbol]; failed {
			return nil, fmt.Errorf("%w: %s failed: %s", ErrSymbolNotFound, symbol, reason)
		}
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	return sa, nil
}

// Invalidate drops the cached run, called after a fresh run is stored.
func (v *ResultsView) Invalidate(ctx context.Context) {
	if v.cache == nil {
		return
	}
	if err := v.cache.Delete(ctx, latestRunKey); err != nil && v.l != nil {
		v.l.Warn("results cache invalidate failed", applogger.Error(err))
	}
}
