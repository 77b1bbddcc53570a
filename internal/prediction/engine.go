package prediction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"LiqFlow/internal/domain/models"
	applogger "LiqFlow/pkg/logger"
)

// Config controls dataset preparation and walk-forward training.
type Config struct {
	// TrainRatio is the chronological share of rows used for fitting.
	TrainRatio float64 `yaml:"train_ratio"`
	// MinTrainRows rejects symbols whose history cannot support a fit.
	MinTrainRows int `yaml:"min_train_rows"`
	// SparseFloor drops feature columns observed on fewer than this share
	// of rows before row filtering.
	SparseFloor float64 `yaml:"sparse_floor"`
	Seed        int64   `yaml:"seed"`
}

// DefaultConfig returns the standard training configuration.
func DefaultConfig() Config {
	return Config{
		TrainRatio:   0.70,
		MinTrainRows: 50,
		SparseFloor:  0.70,
		Seed:         42,
	}
}

// Classifier is the contract shared by the model families.
type Classifier interface {
	Fit(X [][]float64, y []float64)
	PredictProba(x []float64) float64
	FeatureImportances() []float64
}

// Dataset is a fully dense design matrix extracted from a panel, row-aligned
// with its dates and forward weekly returns so the backtest can replay the
// held-out segment.
type Dataset struct {
	Symbol   string
	Features []string
	X        [][]float64
	Y        []float64
	Dates    []time.Time
	Returns  []float64
}

// TrainedModel is a fitted classifier plus the scaler and chronological split
// it was fitted under.
type TrainedModel struct {
	Kind     models.ModelKind
	Split    int
	scaler   *StandardScaler
	model    Classifier
	features []string
}

// Proba returns the positive-class probability for one raw (unscaled) row.
func (m *TrainedModel) Proba(row []float64) float64 {
	return m.model.PredictProba(m.scaler.TransformRow(row))
}

// Engine prepares datasets and runs walk-forward training.
type Engine struct {
	cfg Config
	l   *applogger.Logger
}

// NewEngine creates a prediction engine. Logger may be nil.
func NewEngine(cfg Config, l *applogger.Logger) *Engine {
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = 0.70
	}
	return &Engine{cfg: cfg, l: l}
}

// PrepareDataset extracts a dense matrix from the panel. Features observed on
// fewer than SparseFloor of the rows are dropped first; rows missing any
// surviving feature, the target, or the weekly return are dropped second.
func (e *Engine) PrepareDataset(p *models.Panel, feats []string) (*Dataset, error) {
	n := p.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty panel", models.ErrInsufficientData)
	}

	kept := make([]string, 0, len(feats))
	cols := make([][]float64, 0, len(feats))
	for _, name := range feats {
		col, ok := p.Column(name)
		if !ok {
			continue
		}
		obs := 0
		for _, v := range col {
			if !models.IsMissing(v) {
				obs++
			}
		}
		if float64(obs)/float64(n) < e.cfg.SparseFloor {
			if e.l != nil {
				e.l.Debug("dropping sparse feature",
					applogger.String("symbol", p.Symbol()),
					applogger.String("feature", name),
					applogger.Int("observed", obs),
				)
			}
			continue
		}
		kept = append(kept, name)
		cols = append(cols, col)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: all features sparse", models.ErrNoUsableData)
	}

	target, ok := p.Column(models.ColTargetUp)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColTargetUp)
	}
	weekly, ok := p.Column(models.ColWeeklyReturn)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrMissingColumn, models.ColWeeklyReturn)
	}

	dates := p.Dates()
	ds := &Dataset{Symbol: p.Symbol(), Features: kept}
	for i := 0; i < n; i++ {
		if models.IsMissing(target[i]) || models.IsMissing(weekly[i]) {
			continue
		}
		row := make([]float64, len(cols))
		complete := true
		for j, col := range cols {
			if models.IsMissing(col[i]) {
				complete = false
				break
			}
			row[j] = col[i]
		}
		if !complete {
			continue
		}
		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, target[i])
		ds.Dates = append(ds.Dates, dates[i])
		ds.Returns = append(ds.Returns, weekly[i])
	}
	if len(ds.X) == 0 {
		return nil, fmt.Errorf("%w: no complete rows", models.ErrNoUsableData)
	}
	return ds, nil
}

// Train fits one classifier on the chronological head of the dataset and
// evaluates it on the tail. The scaler is fitted on training rows only.
func (e *Engine) Train(kind models.ModelKind, ds *Dataset) (*TrainedModel, *models.ModelReport, error) {
	split := int(math.Floor(float64(len(ds.X)) * e.cfg.TrainRatio))
	if split < e.cfg.MinTrainRows {
		return nil, nil, fmt.Errorf("%w: %d training rows, need %d",
			models.ErrInsufficientData, split, e.cfg.MinTrainRows)
	}
	if split >= len(ds.X) {
		return nil, nil, fmt.Errorf("%w: no held-out rows", models.ErrInsufficientData)
	}

	scaler := &StandardScaler{}
	trainX, err := scaler.FitTransform(ds.X[:split])
	if err != nil {
		return nil, nil, err
	}
	testX, err := scaler.Transform(ds.X[split:])
	if err != nil {
		return nil, nil, err
	}

	model, err := newClassifier(kind, e.cfg.Seed)
	if err != nil {
		return nil, nil, err
	}

	start := time.Now()
	model.Fit(trainX, ds.Y[:split])
	if e.l != nil {
		e.l.Info("trained model",
			applogger.String("symbol", ds.Symbol),
			applogger.String("kind", string(kind)),
			applogger.Int("train_rows", split),
			applogger.Int("test_rows", len(ds.X)-split),
			applogger.Duration("took", time.Since(start)),
		)
	}

	eval := evaluate(model, testX, ds.Y[split:])
	report := &models.ModelReport{
		Symbol:     ds.Symbol,
		Kind:       kind,
		Features:   ds.Features,
		TrainRows:  split,
		TestRows:   len(ds.X) - split,
		Evaluation: eval,
		Importance: rankImportances(ds.Features, model.FeatureImportances()),
	}
	trained := &TrainedModel{
		Kind:     kind,
		Split:    split,
		scaler:   scaler,
		model:    model,
		features: ds.Features,
	}
	return trained, report, nil
}

// Compare trains every model family on the same split and returns their
// held-out scores in accuracy order.
func (e *Engine) Compare(ds *Dataset) ([]models.ModelScore, error) {
	kinds := []models.ModelKind{models.ModelRandomForest, models.ModelGradientBoosting, models.ModelLogistic}
	scores := make([]models.ModelScore, 0, len(kinds))
	for _, kind := range kinds {
		_, report, err := e.Train(kind, ds)
		if err != nil {
			return nil, err
		}
		scores = append(scores, models.ModelScore{Kind: kind, Evaluation: report.Evaluation})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Evaluation.Accuracy > scores[j].Evaluation.Accuracy
	})
	return scores, nil
}

func newClassifier(kind models.ModelKind, seed int64) (Classifier, error) {
	switch kind {
	case models.ModelRandomForest:
		return NewRandomForest(seed), nil
	case models.ModelGradientBoosting:
		return NewGradientBoosting(seed), nil
	case models.ModelLogistic:
		return NewLogisticRegression(), nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
}

// evaluate scores a fitted classifier at the 0.5 decision boundary.
func evaluate(model Classifier, X [][]float64, y []float64) models.Evaluation {
	var tp, fp, tn, fn float64
	for i, row := range X {
		pred := model.PredictProba(row) > 0.5
		actual := y[i] > 0.5
		switch {
		case pred && actual:
			tp++
		case pred && !actual:
			fp++
		case !pred && actual:
			fn++
		default:
			tn++
		}
	}
	total := tp + fp + tn + fn
	ev := models.Evaluation{}
	if total > 0 {
		ev.Accuracy = (tp + tn) / total
	}
	if tp+fp > 0 {
		ev.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		ev.Recall = tp / (tp + fn)
	}
	if ev.Precision+ev.Recall > 0 {
		ev.F1 = 2 * ev.Precision * ev.Recall / (ev.Precision + ev.Recall)
	}
	return ev
}

func rankImportances(feats []string, imps []float64) []models.FeatureImportance {
	if len(imps) != len(feats) {
		return nil
	}
	out := make([]models.FeatureImportance, len(feats))
	for j, name := range feats {
		out[j] = models.FeatureImportance{Feature: name, Importance: imps[j]}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Importance > out[j].Importance })
	return out
}
