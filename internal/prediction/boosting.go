package prediction

import (
	"math"
	"math/rand"
)

// GradientBoosting fits an additive model of shallow regression trees on the
// log-loss gradient. Each stage fits pseudo-residuals and then replaces leaf
// means with a single Newton step, the standard binomial-deviance update.
type GradientBoosting struct {
	NumStages       int
	MaxDepth        int
	LearningRate    float64
	MinSamplesSplit int
	Seed            int64

	basePrediction float64
	trees          []*regressionTree
	numFeature     int
}

// NewGradientBoosting returns a booster with the default stage shape.
func NewGradientBoosting(seed int64) *GradientBoosting {
	return &GradientBoosting{
		NumStages:       200,
		MaxDepth:        5,
		LearningRate:    0.05,
		MinSamplesSplit: 2,
		Seed:            seed,
	}
}

// Fit trains the stages sequentially. The raw score F starts at the log-odds
// of the positive rate and accumulates shrunken tree outputs.
func (g *GradientBoosting) Fit(X [][]float64, y []float64) {
	g.numFeature = len(X[0])
	n := len(X)

	var pos float64
	for _, v := range y {
		pos += v
	}
	rate := pos / float64(n)
	// clamp so a degenerate single-class target still has a finite prior
	const eps = 1e-10
	rate = math.Min(math.Max(rate, eps), 1-eps)
	g.basePrediction = math.Log(rate / (1 - rate))

	score := make([]float64, n)
	for i := range score {
		score[i] = g.basePrediction
	}

	rng := rand.New(rand.NewSource(g.Seed))
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	residual := make([]float64, n)

	g.trees = make([]*regressionTree, 0, g.NumStages)
	for stage := 0; stage < g.NumStages; stage++ {
		for i := range residual {
			residual[i] = y[i] - sigmoid(score[i])
		}

		tree := newRegressionTree(g.MaxDepth, g.MinSamplesSplit, 0)
		tree.fit(X, residual, idx, rng)
		g.newtonLeafValues(tree, X, residual, idx)

		for i := range score {
			score[i] += g.LearningRate * tree.predict(X[i])
		}
		g.trees = append(g.trees, tree)
	}
}

// newtonLeafValues overwrites each leaf's mean with sum(r) / sum(p(1-p)),
// where p is recovered from the residual r = y - p.
func (g *GradientBoosting) newtonLeafValues(tree *regressionTree, X [][]float64, residual []float64, idx []int) {
	num := map[*treeNode]float64{}
	den := map[*treeNode]float64{}
	for _, i := range idx {
		leaf := tree.leafFor(X[i])
		r := residual[i]
		// residual table is exact here: p = y - r, and y is 0 or 1
		var p float64
		if r > 0 {
			p = 1 - r
		} else {
			p = -r
		}
		num[leaf] += r
		den[leaf] += p * (1 - p)
	}
	for leaf, d := range den {
		if d > 1e-12 {
			leaf.value = num[leaf] / d
		}
	}
}

// PredictProba returns sigmoid of the accumulated raw score.
func (g *GradientBoosting) PredictProba(x []float64) float64 {
	score := g.basePrediction
	for _, t := range g.trees {
		score += g.LearningRate * t.predict(x)
	}
	return sigmoid(score)
}

// FeatureImportances sums impurity reductions across stages, normalized.
func (g *GradientBoosting) FeatureImportances() []float64 {
	imp := make([]float64, g.numFeature)
	for _, t := range g.trees {
		for j, v := range t.importances {
			imp[j] += v
		}
	}
	normalizeImportances(imp)
	return imp
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}
