package prediction

import (
	"math/rand"
	"sort"
)

// regressionTree is a CART tree fitting float targets with variance-reduction
// splits. Binary classification rides on it directly: with {0,1} targets the
// leaf mean is the class-1 probability and variance reduction coincides with
// the Gini criterion.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
	leaf      bool
}

type regressionTree struct {
	root            *treeNode
	maxDepth        int
	minSamplesSplit int
	// maxFeatures limits the candidate features per split; 0 means all.
	maxFeatures int
	importances []float64
}

func newRegressionTree(maxDepth, minSamplesSplit, maxFeatures int) *regressionTree {
	if minSamplesSplit < 2 {
		minSamplesSplit = 2
	}
	return &regressionTree{
		maxDepth:        maxDepth,
		minSamplesSplit: minSamplesSplit,
		maxFeatures:     maxFeatures,
	}
}

// fit grows the tree on the sample rows idx of X/y. The rng drives feature
// subsampling only; with a fixed seed the grown tree is identical run to run.
func (t *regressionTree) fit(X [][]float64, y []float64, idx []int, rng *rand.Rand) {
	t.importances = make([]float64, len(X[0]))
	rows := make([]int, len(idx))
	copy(rows, idx)
	t.root = t.grow(X, y, rows, 0, rng)
}

func (t *regressionTree) grow(X [][]float64, y []float64, rows []int, depth int, rng *rand.Rand) *treeNode {
	mean, sse := meanSSE(y, rows)
	node := &treeNode{value: mean, leaf: true}
	if depth >= t.maxDepth || len(rows) < t.minSamplesSplit || sse == 0 {
		return node
	}

	feat, thr, gain, ok := t.bestSplit(X, y, rows, sse, rng)
	if !ok {
		return node
	}

	var left, right []int
	for _, i := range rows {
		if X[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return node
	}

	t.importances[feat] += gain
	node.leaf = false
	node.feature = feat
	node.threshold = thr
	node.left = t.grow(X, y, left, depth+1, rng)
	node.right = t.grow(X, y, right, depth+1, rng)
	return node
}

// bestSplit scans candidate features for the threshold with the largest SSE
// reduction. Candidate thresholds are midpoints between consecutive distinct
// sorted values.
func (t *regressionTree) bestSplit(X [][]float64, y []float64, rows []int, parentSSE float64, rng *rand.Rand) (feat int, thr, gain float64, ok bool) {
	d := len(X[0])
	candidates := make([]int, d)
	for j := range candidates {
		candidates[j] = j
	}
	if t.maxFeatures > 0 && t.maxFeatures < d {
		rng.Shuffle(d, func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })
		candidates = candidates[:t.maxFeatures]
		// keep evaluation order deterministic for a given shuffle
		sort.Ints(candidates)
	}

	type pair struct{ v, y float64 }
	best := -1.0
	pairs := make([]pair, len(rows))
	for _, j := range candidates {
		for k, i := range rows {
			pairs[k] = pair{v: X[i][j], y: y[i]}
		}
		sort.Slice(pairs, func(a, b int) bool { return pairs[a].v < pairs[b].v })

		var totalSum float64
		for _, pr := range pairs {
			totalSum += pr.y
		}
		totalSq := 0.0
		for _, pr := range pairs {
			totalSq += pr.y * pr.y
		}
		n := float64(len(pairs))

		var leftSum, leftSq float64
		for k := 0; k < len(pairs)-1; k++ {
			leftSum += pairs[k].y
			leftSq += pairs[k].y * pairs[k].y
			if pairs[k].v == pairs[k+1].v {
				continue
			}
			nl := float64(k + 1)
			nr := n - nl
			sseL := leftSq - leftSum*leftSum/nl
			rightSum := totalSum - leftSum
			sseR := (totalSq - leftSq) - rightSum*rightSum/nr
			g := parentSSE - (sseL + sseR)
			if g > best {
				best = g
				feat = j
				thr = (pairs[k].v + pairs[k+1].v) / 2
			}
		}
	}
	if best <= 0 {
		return 0, 0, 0, false
	}
	return feat, thr, best, true
}

// predict returns the leaf value for x.
func (t *regressionTree) predict(x []float64) float64 {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// leafFor returns the leaf node x lands in, for boosting's Newton updates.
func (t *regressionTree) leafFor(x []float64) *treeNode {
	node := t.root
	for !node.leaf {
		if x[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node
}

func meanSSE(y []float64, rows []int) (mean, sse float64) {
	if len(rows) == 0 {
		return 0, 0
	}
	var sum float64
	for _, i := range rows {
		sum += y[i]
	}
	mean = sum / float64(len(rows))
	for _, i := range rows {
		d := y[i] - mean
		sse += d * d
	}
	return mean, sse
}
