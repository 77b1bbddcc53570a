package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"LiqFlow/internal/domain/models"
	pkgch "LiqFlow/pkg/clickhouse"
	applogger "LiqFlow/pkg/logger"
)

// CHResultStore implements ResultStore backed by ClickHouse. The full run
// outcome is stored as a JSON payload for replay, with backtest rows and
// signals denormalized into their own tables for ad-hoc queries.
type CHResultStore struct {
	db *sql.DB
	l  *applogger.Logger
}

// NewCHResultStore creates a ClickHouse result store.
func NewCHResultStore(ch *pkgch.Client) *CHResultStore {
	return &CHResultStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHResultStore) SetLogger(l *applogger.Logger) { s.l = l }

var resultSchema = []string{
	`CREATE DATABASE IF NOT EXISTS liqflow`,
	`CREATE TABLE IF NOT EXISTS liqflow.analysis_runs (
        run_id      String,
        started_at  DateTime64(3),
        finished_at DateTime64(3),
        symbols     UInt32,
        failures    UInt32,
        payload     String
    ) ENGINE = MergeTree()
    ORDER BY (finished_at, run_id)`,
	`CREATE TABLE IF NOT EXISTS liqflow.backtest_rows (
        run_id          String,
        symbol          String,
        date            DateTime,
        probability     Float64,
        signal          LowCardinality(String),
        weekly_return   Float64,
        strategy_return Float64,
        cum_buy_hold    Float64,
        cum_strategy    Float64
    ) ENGINE = MergeTree()
    ORDER BY (symbol, date, run_id)`,
	`CREATE TABLE IF NOT EXISTS liqflow.signals (
        run_id      String,
        symbol      String,
        date        DateTime,
        model       LowCardinality(String),
        probability Float64,
        signal      LowCardinality(String)
    ) ENGINE = MergeTree()
    ORDER BY (symbol, date, run_id)`,
}

func (s *CHResultStore) Init(ctx context.Context) error {
	for _, stmt := range resultSchema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init result schema: %w", err)
		}
	}
	return nil
}

func (s *CHResultStore) StoreRun(ctx context.Context, run *models.RunOutcome) error {
	start := time.Now()
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	const q = `INSERT INTO liqflow.analysis_runs
        (run_id, started_at, finished_at, symbols, failures, payload)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		run.RunID, run.StartedAt, run.FinishedAt,
		uint32(len(run.Symbols)), uint32(len(run.Failures)), string(payload),
	); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_run insert error",
				applogger.String("run_id", run.RunID),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store run: %w", err)
	}

	for symbol, sa := range run.Symbols {
		if sa.Backtest == nil {
			continue
		}
		if err := s.storeBacktestRows(ctx, run.RunID, symbol, sa.Backtest.Rows); err != nil {
			return err
		}
		if err := s.storeLatestSignal(ctx, run.RunID, symbol, sa); err != nil {
			return err
		}
	}

	if s.l != nil {
		s.l.Info("clickhouse store_run ok",
			applogger.String("run_id", run.RunID),
			applogger.Int("symbols", len(run.Symbols)),
			applogger.Int("failures", len(run.Failures)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHResultStore) storeBacktestRows(ctx context.Context, runID, symbol string, rows []models.BacktestRow) error {
	if len(rows) == 0 {
		return nil
	}
	// Chunked multi-row VALUES inserts to keep round-trips down.
	const chunkSize = 2000
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, r := range rows[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				runID, symbol, r.Date,
				r.Probability, string(r.Signal),
				r.WeeklyReturn, r.StrategyReturn,
				r.CumulativeBuyHold, r.CumulativeStrategy,
			)
		}
		q := fmt.Sprintf(`INSERT INTO liqflow.backtest_rows
            (run_id, symbol, date, probability, signal, weekly_return, strategy_return, cum_buy_hold, cum_strategy)
            VALUES %s`, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store backtest rows: %w", err)
		}
	}
	return nil
}

// storeLatestSignal records the symbol's closing posture, the same event the
// Kafka publisher emits, so signals stay queryable without a consumer.
func (s *CHResultStore) storeLatestSignal(ctx context.Context, runID, symbol string, sa *models.SymbolAnalysis) error {
	if sa.Backtest == nil || len(sa.Backtest.Rows) == 0 || sa.Model == nil {
		return nil
	}
	last := sa.Backtest.Rows[len(sa.Backtest.Rows)-1]
	const q = `INSERT INTO liqflow.signals
        (run_id, symbol, date, model, probability, signal)
        VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		runID, symbol, last.Date,
		string(sa.Model.Kind), last.Probability, string(last.Signal),
	); err != nil {
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

func (s *CHResultStore) LatestRun(ctx context.Context) (*models.RunOutcome, error) {
	const q = `SELECT payload FROM liqflow.analysis_runs ORDER BY finished_at DESC LIMIT 1`
	var payload string
	if err := s.db.QueryRowContext(ctx, q).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	var run models.RunOutcome
	if err := json.Unmarshal([]byte(payload), &run); err != nil {
		return nil, fmt.Errorf("unmarshal run payload: %w", err)
	}
	return &run, nil
}

func (s *CHResultStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHResultStore) Close() error {
	return nil // pool managed by pkg client
}
