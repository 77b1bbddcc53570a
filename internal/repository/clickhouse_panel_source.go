package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"LiqFlow/internal/domain/models"
	pkgch "LiqFlow/pkg/clickhouse"
	applogger "LiqFlow/pkg/logger"
)

// CHPanelSource implements PanelSource on the ingestion tables the data
// collaborator writes into ClickHouse.
type CHPanelSource struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHPanelSource creates a ClickHouse panel source.
func NewCHPanelSource(ch *pkgch.Client) *CHPanelSource {
	return &CHPanelSource{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHPanelSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHPanelSource) Symbols(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT symbol FROM liqflow.market_quotes ORDER BY symbol`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

func (s *CHPanelSource) LoadPanel(ctx context.Context, symbol string) (*models.Panel, error) {
	start := time.Now()
	quotes, err := s.loadQuotes(ctx, symbol)
	if err != nil {
		return nil, err
	}
	levels, err := s.loadLevels(ctx)
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Info("clickhouse load_panel ok",
			applogger.String("symbol", symbol),
			applogger.Int("quotes", len(quotes)),
			applogger.Int("level_series", len(levels)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return models.BuildPanel(symbol, quotes, levels)
}

func (s *CHPanelSource) Close() error {
	return nil // pool managed by pkg
}

func (s *CHPanelSource) loadQuotes(ctx context.Context, symbol string) ([]models.Quote, error) {
	const q = `
        SELECT date, open, high, low, close, volume
        FROM liqflow.market_quotes
        WHERE symbol = ?
        ORDER BY date ASC
    `
	rows, err := s.db.QueryContext(ctx, q, symbol)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_quotes query error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("load quotes: %w", err)
	}
	defer rows.Close()

	out := make([]models.Quote, 0, 1024)
	for rows.Next() {
		var qt models.Quote
		if err := rows.Scan(&qt.Date, &qt.Open, &qt.High, &qt.Low, &qt.Close, &qt.Volume); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		out = append(out, qt)
	}
	return out, rows.Err()
}

func (s *CHPanelSource) loadLevels(ctx context.Context) ([]models.LevelSeries, error) {
	const q = `
        SELECT metric, date, value, pct_change
        FROM liqflow.liquidity_levels
        ORDER BY metric, date ASC
    `
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse load_levels query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("load levels: %w", err)
	}
	defer rows.Close()

	var out []models.LevelSeries
	var cur *models.LevelSeries
	for rows.Next() {
		var metric string
		var pt models.LevelPoint
		var pct sql.NullFloat64
		if err := rows.Scan(&metric, &pt.Date, &pt.Value, &pct); err != nil {
			return nil, fmt.Errorf("scan level: %w", err)
		}
		if pct.Valid {
			pt.PctChange = pct.Float64
		} else {
			pt.PctChange = models.Missing()
		}
		if cur == nil || cur.Name != metric {
			out = append(out, models.LevelSeries{Name: metric})
			cur = &out[len(out)-1]
		}
		cur.Points = append(cur.Points, pt)
	}
	return out, rows.Err()
}
