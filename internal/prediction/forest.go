package prediction

import (
	"math"
	"math/rand"
	"sync"
)

// RandomForest is a bagged ensemble of regression trees over {0,1} targets.
// PredictProba averages the per-tree leaf means.
type RandomForest struct {
	NumTrees        int
	MaxDepth        int
	MinSamplesSplit int
	Seed            int64

	trees      []*regressionTree
	numFeature int
}

// NewRandomForest returns a forest with the default ensemble shape.
func NewRandomForest(seed int64) *RandomForest {
	return &RandomForest{
		NumTrees:        200,
		MaxDepth:        10,
		MinSamplesSplit: 50,
		Seed:            seed,
	}
}

// Fit trains the ensemble. Trees are grown in parallel; each tree draws its
// bootstrap sample and feature subsets from its own rng seeded by Seed and the
// tree index, so results do not depend on scheduling.
func (f *RandomForest) Fit(X [][]float64, y []float64) {
	f.numFeature = len(X[0])
	maxFeatures := int(math.Sqrt(float64(f.numFeature)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	f.trees = make([]*regressionTree, f.NumTrees)

	var wg sync.WaitGroup
	for ti := 0; ti < f.NumTrees; ti++ {
		wg.Add(1)
		go func(ti int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(f.Seed + int64(ti)))
			idx := make([]int, len(X))
			for i := range idx {
				idx[i] = rng.Intn(len(X))
			}
			tree := newRegressionTree(f.MaxDepth, f.MinSamplesSplit, maxFeatures)
			tree.fit(X, y, idx, rng)
			f.trees[ti] = tree
		}(ti)
	}
	wg.Wait()
}

// PredictProba returns the mean leaf value across trees, the estimated
// probability of the positive class.
func (f *RandomForest) PredictProba(x []float64) float64 {
	var sum float64
	for _, t := range f.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(f.trees))
}

// FeatureImportances returns per-feature impurity reductions summed over the
// ensemble and normalized to sum to one.
func (f *RandomForest) FeatureImportances() []float64 {
	imp := make([]float64, f.numFeature)
	for _, t := range f.trees {
		for j, v := range t.importances {
			imp[j] += v
		}
	}
	normalizeImportances(imp)
	return imp
}

func normalizeImportances(imp []float64) {
	var total float64
	for _, v := range imp {
		total += v
	}
	if total == 0 {
		return
	}
	for j := range imp {
		imp[j] /= total
	}
}
