package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"LiqFlow/internal/domain/models"
	applogger "LiqFlow/pkg/logger"
	"LiqFlow/pkg/util"
)

// CSVPanelSource implements PanelSource from a directory of flat files, the
// layout produced by the data collaborator's export:
//
//	<dir>/quotes/<SYMBOL>.csv   date,open,high,low,close,volume
//	<dir>/levels/<metric>.csv   date,value[,pct_change]
//
// Level file basenames are the level column identifiers (tga_value.csv and
// so on). Levels are shared across symbols and read once per LoadPanel.
type CSVPanelSource struct {
	dir string
	l   *applogger.Logger
}

// NewCSVPanelSource creates a CSV panel source rooted at dir.
func NewCSVPanelSource(dir string, l *applogger.Logger) *CSVPanelSource {
	return &CSVPanelSource{dir: dir, l: l}
}

func (s *CSVPanelSource) Symbols(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "quotes"))
	if err != nil {
		return nil, fmt.Errorf("list quote files: %w", err)
	}
	symbols := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".csv"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *CSVPanelSource) LoadPanel(ctx context.Context, symbol string) (*models.Panel, error) {
	quotes, err := s.readQuotes(symbol)
	if err != nil {
		return nil, err
	}
	levels, err := s.readLevels()
	if err != nil {
		return nil, err
	}
	if s.l != nil {
		s.l.Info("loaded panel inputs",
			applogger.String("symbol", symbol),
			applogger.Int("quotes", len(quotes)),
			applogger.Int("level_series", len(levels)),
		)
	}
	return models.BuildPanel(symbol, quotes, levels)
}

func (s *CSVPanelSource) Close() error { return nil }

func (s *CSVPanelSource) readQuotes(symbol string) ([]models.Quote, error) {
	path := filepath.Join(s.dir, "quotes", symbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open quotes for %s: %w", symbol, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var quotes []models.Quote
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(rec[0], "date") {
				continue // header
			}
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("read %s: want 6 fields, got %d", path, len(rec))
		}
		date, err := parseDate(rec[0])
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("read %s: field %d: %w", path, i+1, err)
			}
		}
		quotes = append(quotes, models.Quote{
			Date: date,
			Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3],
			Volume: vals[4],
		})
	}
	return quotes, nil
}

func (s *CSVPanelSource) readLevels() ([]models.LevelSeries, error) {
	dir := filepath.Join(s.dir, "levels")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // market-only panel
		}
		return nil, fmt.Errorf("list level files: %w", err)
	}

	out := make([]models.LevelSeries, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		series, err := s.readLevelFile(filepath.Join(dir, name), strings.TrimSuffix(name, ".csv"))
		if err != nil {
			return nil, err
		}
		out = append(out, series)
	}
	return out, nil
}

func (s *CSVPanelSource) readLevelFile(path, metric string) (models.LevelSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.LevelSeries{}, fmt.Errorf("open level file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	series := models.LevelSeries{Name: metric}
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.LevelSeries{}, fmt.Errorf("read %s: %w", path, err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(rec[0], "date") {
				continue
			}
		}
		if len(rec) < 2 {
			return models.LevelSeries{}, fmt.Errorf("read %s: want 2+ fields, got %d", path, len(rec))
		}
		date, err := parseDate(rec[0])
		if err != nil {
			return models.LevelSeries{}, fmt.Errorf("read %s: %w", path, err)
		}
		value, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return models.LevelSeries{}, fmt.Errorf("read %s: value: %w", path, err)
		}
		pt := models.LevelPoint{Date: date, Value: value, PctChange: models.Missing()}
		if len(rec) >= 3 && rec[2] != "" {
			if pc, err := strconv.ParseFloat(rec[2], 64); err == nil {
				pt.PctChange = pc
			}
		}
		series.Points = append(series.Points, pt)
	}
	return series, nil
}

func parseDate(s string) (time.Time, error) {
	t, ok := util.ParseTime(strings.TrimSpace(s))
	if !ok {
		return time.Time{}, fmt.Errorf("parse date %q", s)
	}
	return t, nil
}
