// Package iforest implements the Isolation Forest algorithm for anomaly detection.
package iforest

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// IsolationForest implements unsupervised anomaly detection using isolation trees.
type IsolationForest struct {
	// Configuration
	nTrees        int
	sampleSize    int
	contamination float64
	threshold     float64
	maxDepth      int
	seed          int64
	rng           *rand.Rand

	// Trained model
	trees   []*node
	trained bool

	// c(n) for the fitted subsample size
	avgPathLength float64
}

// node is a node in an isolation tree.
type node struct {
	// Split parameters (for internal nodes)
	splitFeature int
	splitValue   float64

	left  *node
	right *node

	// Leaf information
	size int
}

// Option configures an IsolationForest.
type Option func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) Option {
	return func(f *IsolationForest) {
		f.nTrees = n
	}
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) Option {
	return func(f *IsolationForest) {
		f.sampleSize = n
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(f *IsolationForest) {
		f.contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(f *IsolationForest) {
		f.seed = seed
	}
}

// New creates a new IsolationForest with the given options.
func New(opts ...Option) *IsolationForest {
	f := &IsolationForest{
		nTrees:        100,
		sampleSize:    256,
		contamination: 0.1,
		threshold:     0.5,
		seed:          42,
	}

	for _, opt := range opts {
		opt(f)
	}

	f.rng = rand.New(rand.NewSource(f.seed))
	f.maxDepth = int(math.Ceil(math.Log2(float64(max(f.sampleSize, 2)))))

	return f
}

// Fit trains the forest on rows of equal width.
func (f *IsolationForest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return errors.New("empty training data")
	}
	if f.nTrees < 1 {
		return errors.New("forest needs at least one tree")
	}

	nSamples := len(data)
	nFeatures := len(data[0])
	sampleSize := min(f.sampleSize, nSamples)

	f.trees = make([]*node, f.nTrees)
	for i := range f.trees {
		// Sample without replacement
		indices := f.rng.Perm(nSamples)[:sampleSize]
		sample := make([][]float64, sampleSize)
		for j, idx := range indices {
			sample[j] = data[idx]
		}
		f.trees[i] = f.buildNode(sample, nFeatures, 0)
	}

	f.avgPathLength = averagePathLength(float64(sampleSize))
	f.trained = true

	if f.contamination > 0 {
		f.threshold = percentile(f.predict(data), 100*(1-f.contamination))
	}

	return nil
}

func (f *IsolationForest) buildNode(data [][]float64, nFeatures, depth int) *node {
	n := len(data)
	if depth >= f.maxDepth || n <= 1 {
		return &node{size: n}
	}

	feature := f.rng.Intn(nFeatures)

	minVal, maxVal := data[0][feature], data[0][feature]
	for _, row := range data[1:] {
		minVal = math.Min(minVal, row[feature])
		maxVal = math.Max(maxVal, row[feature])
	}
	if minVal == maxVal {
		return &node{size: n}
	}

	splitValue := minVal + f.rng.Float64()*(maxVal-minVal)

	var leftData, rightData [][]float64
	for _, row := range data {
		if row[feature] < splitValue {
			leftData = append(leftData, row)
		} else {
			rightData = append(rightData, row)
		}
	}

	return &node{
		splitFeature: feature,
		splitValue:   splitValue,
		left:         f.buildNode(leftData, nFeatures, depth+1),
		right:        f.buildNode(rightData, nFeatures, depth+1),
	}
}

// Predict returns anomaly scores in [0, 1]; higher is more anomalous.
func (f *IsolationForest) Predict(data [][]float64) ([]float64, error) {
	if !f.trained {
		return nil, errors.New("model not trained")
	}
	return f.predict(data), nil
}

func (f *IsolationForest) predict(data [][]float64) []float64 {
	scores := make([]float64, len(data))
	for i, sample := range data {
		scores[i] = f.score(sample)
	}
	return scores
}

// PredictOne returns the anomaly score for a single sample.
func (f *IsolationForest) PredictOne(sample []float64) (float64, error) {
	if !f.trained {
		return 0, errors.New("model not trained")
	}
	return f.score(sample), nil
}

// score is 2^(-E[h(x)] / c(n)).
func (f *IsolationForest) score(sample []float64) float64 {
	if f.avgPathLength == 0 {
		return 0.5
	}
	var total float64
	for _, tree := range f.trees {
		total += pathLength(sample, tree, 0)
	}
	return math.Pow(2, -(total/float64(len(f.trees)))/f.avgPathLength)
}

func pathLength(sample []float64, n *node, depth int) float64 {
	if n.left == nil && n.right == nil {
		return float64(depth) + averagePathLength(float64(n.size))
	}
	if sample[n.splitFeature] < n.splitValue {
		return pathLength(sample, n.left, depth+1)
	}
	return pathLength(sample, n.right, depth+1)
}

// averagePathLength is c(n) = 2H(n-1) - 2(n-1)/n, the mean unsuccessful
// search depth in a binary search tree of n items.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	const eulerGamma = 0.5772156649
	return 2*(math.Log(n-1)+eulerGamma) - 2*(n-1)/n
}

// Threshold returns the score above which the expected contamination share
// of the training rows lies; 0.5 before fitting.
func (f *IsolationForest) Threshold() float64 {
	return f.threshold
}

// percentile returns the p-th percentile (nearest rank below) of data.
func percentile(data []float64, p float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return sorted[int(float64(len(sorted)-1)*p/100)]
}
