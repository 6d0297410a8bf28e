// pkg/predictor/forest.go
package predictor

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/citylab/incident-report/pkg/model"
)

// ForestOptions controls the random forest strategy. A zero
// FeaturesPerSplit asks for the default of one third of the predictors,
// rounded, with a floor of one.
type ForestOptions struct {
	Trees            int
	FeaturesPerSplit int
	MaxDepth         int
	MinSamplesSplit  int
	Seed             int64
}

// DefaultForestOptions returns the standard forest configuration
func DefaultForestOptions(seed int64) ForestOptions {
	return ForestOptions{
		Trees:            500,
		FeaturesPerSplit: 0,
		MaxDepth:         10,
		MinSamplesSplit:  2,
		Seed:             seed,
	}
}

// Forest is a regression forest grown on bootstrap samples of the
// training rows. Each split considers a random subset of the predictors
// and each prediction is the mean of the per-tree predictions.
type Forest struct {
	features Features
	opts     ForestOptions
	levels   map[string]int
	trees    []*treeNode
	fitted   bool
}

// NewForest creates an unfitted forest strategy for the given features
func NewForest(features Features, opts ForestOptions) *Forest {
	if opts.Trees <= 0 {
		opts.Trees = 500
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 10
	}
	if opts.MinSamplesSplit <= 0 {
		opts.MinSamplesSplit = 2
	}
	return &Forest{
		features: features,
		opts:     opts,
		levels:   features.levelIndexes(),
	}
}

// Name returns the strategy name
func (f *Forest) Name() string {
	return StrategyForest
}

// Fit grows the configured number of trees from the training rows
func (f *Forest) Fit(train *model.Table) error {
	if train == nil || train.NumRows() == 0 {
		return &model.InsufficientDataError{Reason: "training set is empty"}
	}
	if len(f.features.Levels) < 2 {
		return &model.InsufficientDataError{
			Reason: fmt.Sprintf("%s has %d level(s), need at least 2", f.features.CategoryColumn, len(f.features.Levels)),
		}
	}

	x, y, err := designRows(train, f.features, f.levels)
	if err != nil {
		return fmt.Errorf("failed to build design matrix: %w", err)
	}

	mtry := f.opts.FeaturesPerSplit
	if mtry <= 0 {
		mtry = defaultFeaturesPerSplit(len(x[0]))
	}
	if mtry > len(x[0]) {
		mtry = len(x[0])
	}

	// One seed per tree, drawn up front, so the forest comes out
	// identical no matter how the work is scheduled
	master := rand.New(rand.NewSource(f.opts.Seed))
	seeds := make([]int64, f.opts.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	f.trees = make([]*treeNode, f.opts.Trees)
	workers := workerCount(f.opts.Trees)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				f.trees[i] = fitSingleTree(x, y, f.opts, mtry, rand.New(rand.NewSource(seeds[i])))
			}
		}()
	}
	for i := 0; i < f.opts.Trees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	f.fitted = true
	return nil
}

// Predict returns the mean per-tree prediction for each row, in row order
func (f *Forest) Predict(rows *model.Table) ([]float64, error) {
	if !f.fitted {
		return nil, errors.New("forest model has not been fitted")
	}
	x, err := featureRows(rows, f.features, f.levels)
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction rows: %w", err)
	}
	predictions := make([]float64, len(x))
	for i, xi := range x {
		var sum float64
		for _, tree := range f.trees {
			sum += predictTree(tree, xi)
		}
		predictions[i] = sum / float64(len(f.trees))
	}
	return predictions, nil
}

// TreeCount returns the number of fitted trees, zero before Fit
func (f *Forest) TreeCount() int {
	return len(f.trees)
}

// treeNode is one node of a regression tree. A feature of -1 marks a
// leaf, whose value is the mean target of the rows that reached it.
type treeNode struct {
	feature   int
	threshold float64
	left      *treeNode
	right     *treeNode
	value     float64
}

// fitSingleTree draws a bootstrap sample and grows one tree from it
func fitSingleTree(x [][]float64, y []float64, opts ForestOptions, mtry int, rnd *rand.Rand) *treeNode {
	n := len(y)
	bootX := make([][]float64, n)
	bootY := make([]float64, n)
	for i := 0; i < n; i++ {
		j := rnd.Intn(n)
		bootX[i] = x[j]
		bootY[i] = y[j]
	}
	return buildTree(bootX, bootY, opts.MaxDepth, opts.MinSamplesSplit, mtry, rnd)
}

// buildTree recursively selects the split that minimises the total
// squared deviation of the two sides, searching midpoint thresholds of
// a random feature subset
func buildTree(x [][]float64, y []float64, depth, minSamples, mtry int, rnd *rand.Rand) *treeNode {
	if len(y) <= minSamples || depth == 0 {
		return &treeNode{feature: -1, value: stat.Mean(y, nil)}
	}

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.Inf(1)
	for _, feature := range randPermSubset(len(x[0]), mtry, rnd) {
		for _, threshold := range splitCandidates(x, feature) {
			leftY, rightY := partitionTargets(x, y, feature, threshold)
			if len(leftY) == 0 || len(rightY) == 0 {
				continue
			}
			score := sse(leftY) + sse(rightY)
			if score < bestScore {
				bestScore = score
				bestFeature = feature
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return &treeNode{feature: -1, value: stat.Mean(y, nil)}
	}

	leftX, leftY, rightX, rightY := partitionRows(x, y, bestFeature, bestThreshold)
	return &treeNode{
		feature:   bestFeature,
		threshold: bestThreshold,
		left:      buildTree(leftX, leftY, depth-1, minSamples, mtry, rnd),
		right:     buildTree(rightX, rightY, depth-1, minSamples, mtry, rnd),
	}
}

// predictTree walks one row down to a leaf
func predictTree(node *treeNode, xi []float64) float64 {
	for node.feature != -1 {
		if xi[node.feature] <= node.threshold {
			node = node.left
		} else {
			node = node.right
		}
	}
	return node.value
}

// randPermSubset picks n distinct feature indexes out of total
func randPermSubset(total, n int, rnd *rand.Rand) []int {
	if n > total {
		n = total
	}
	return rnd.Perm(total)[:n]
}

// splitCandidates returns the midpoints between consecutive distinct
// values of one feature
func splitCandidates(x [][]float64, feature int) []float64 {
	seen := make(map[float64]struct{}, len(x))
	values := make([]float64, 0, len(x))
	for _, xi := range x {
		v := xi[feature]
		if _, dup := seen[v]; !dup {
			seen[v] = struct{}{}
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return nil
	}
	sort.Float64s(values)
	midpoints := make([]float64, len(values)-1)
	for i := 0; i+1 < len(values); i++ {
		midpoints[i] = (values[i] + values[i+1]) / 2
	}
	return midpoints
}

func partitionTargets(x [][]float64, y []float64, feature int, threshold float64) ([]float64, []float64) {
	var left, right []float64
	for i, xi := range x {
		if xi[feature] <= threshold {
			left = append(left, y[i])
		} else {
			right = append(right, y[i])
		}
	}
	return left, right
}

func partitionRows(x [][]float64, y []float64, feature int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for i, xi := range x {
		if xi[feature] <= threshold {
			leftX = append(leftX, xi)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, xi)
			rightY = append(rightY, y[i])
		}
	}
	return leftX, leftY, rightX, rightY
}

// sse is the sum of squared deviations from the mean
func sse(ys []float64) float64 {
	if len(ys) == 0 {
		return 0
	}
	m := stat.Mean(ys, nil)
	var total float64
	for _, v := range ys {
		d := v - m
		total += d * d
	}
	return total
}

// defaultFeaturesPerSplit is one third of the predictor count, rounded,
// with a floor of one
func defaultFeaturesPerSplit(predictors int) int {
	n := int(math.Round(float64(predictors) / 3))
	if n < 1 {
		n = 1
	}
	return n
}

// workerCount bounds the tree-growing pool by the CPU count and the
// number of trees
func workerCount(trees int) int {
	workers := runtime.NumCPU()
	if workers > trees {
		workers = trees
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}
