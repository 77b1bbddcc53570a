package prediction

// LogisticRegression is the linear baseline, fit by full-batch gradient
// descent on the log loss. Inputs are expected standardized, so a plain
// learning rate converges without per-feature scaling tricks.
type LogisticRegression struct {
	Iterations   int
	LearningRate float64

	weights []float64
	bias    float64
}

// NewLogisticRegression returns a baseline model with default settings.
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{
		Iterations:   500,
		LearningRate: 0.1,
	}
}

// Fit runs gradient descent from zero weights.
func (l *LogisticRegression) Fit(X [][]float64, y []float64) {
	d := len(X[0])
	n := float64(len(X))
	l.weights = make([]float64, d)
	l.bias = 0

	grad := make([]float64, d)
	for iter := 0; iter < l.Iterations; iter++ {
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, row := range X {
			err := sigmoid(l.score(row)) - y[i]
			for j, v := range row {
				grad[j] += err * v
			}
			gradBias += err
		}
		for j := range l.weights {
			l.weights[j] -= l.LearningRate * grad[j] / n
		}
		l.bias -= l.LearningRate * gradBias / n
	}
}

// PredictProba returns the positive-class probability for x.
func (l *LogisticRegression) PredictProba(x []float64) float64 {
	return sigmoid(l.score(x))
}

// FeatureImportances returns absolute coefficient magnitudes, normalized.
// Comparable across features because inputs are standardized.
func (l *LogisticRegression) FeatureImportances() []float64 {
	imp := make([]float64, len(l.weights))
	for j, w := range l.weights {
		if w < 0 {
			w = -w
		}
		imp[j] = w
	}
	normalizeImportances(imp)
	return imp
}

func (l *LogisticRegression) score(x []float64) float64 {
	s := l.bias
	for j, v := range x {
		s += l.weights[j] * v
	}
	return s
}
