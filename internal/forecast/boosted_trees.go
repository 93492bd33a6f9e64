package forecast

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/yourusername/totals-edge/internal/models"
)

// BoosterParams configures BoostedTrees
type BoosterParams struct {
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Subsample      float64 `json:"subsample"`
	Seed           int64   `json:"seed"`
}

// DefaultBoosterParams returns the parameters used when none are configured
func DefaultBoosterParams() BoosterParams {
	return BoosterParams{
		NEstimators:    100,
		LearningRate:   0.05,
		MaxDepth:       3,
		MinSamplesLeaf: 5,
		Subsample:      0.8,
		Seed:           42,
	}
}

// Validate checks parameter ranges
func (p BoosterParams) Validate() error {
	if p.NEstimators <= 0 {
		return fmt.Errorf("n_estimators must be positive, got %d", p.NEstimators)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1], got %f", p.LearningRate)
	}
	if p.MaxDepth <= 0 {
		return fmt.Errorf("max_depth must be positive, got %d", p.MaxDepth)
	}
	if p.MinSamplesLeaf <= 0 {
		return fmt.Errorf("min_samples_leaf must be positive, got %d", p.MinSamplesLeaf)
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		return fmt.Errorf("subsample must be in (0, 1], got %f", p.Subsample)
	}
	return nil
}

// BoostedTrees is a gradient-boosted ensemble of regression trees under squared loss.
type BoostedTrees struct {
	params    BoosterParams
	base      float64
	trees     []*treeNode
	gains     []float64
	nFeatures int
	fitted    bool
}

// NewBoostedTrees creates an unfitted booster
func NewBoostedTrees(params BoosterParams) *BoostedTrees {
	return &BoostedTrees{params: params}
}

// BoostedTreesFactory returns a RegressorFactory for the given parameters
func BoostedTreesFactory(params BoosterParams) RegressorFactory {
	return func() Regressor {
		return NewBoostedTrees(params)
	}
}

type treeNode struct {
	feature   int
	threshold float64
	value     float64
	left      *treeNode
	right     *treeNode
}

func (n *treeNode) leaf() bool {
	return n.left == nil
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Fit replaces any previous state with a booster trained on X, y.
func (b *BoostedTrees) Fit(X [][]float64, y []float64) error {
	if err := b.params.Validate(); err != nil {
		return err
	}
	if len(X) == 0 {
		return models.ErrEmptyDataset
	}
	if len(X) != len(y) {
		return fmt.Errorf("%w: %d rows vs %d targets", models.ErrLengthMismatch, len(X), len(y))
	}
	width := len(X[0])
	clean, err := sanitizeMatrix(X, width)
	if err != nil {
		return err
	}

	n := len(clean)
	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	residual := make([]float64, n)
	gains := make([]float64, width)
	trees := make([]*treeNode, 0, b.params.NEstimators)
	rng := rand.New(rand.NewSource(b.params.Seed))
	sampleSize := max(1, int(b.params.Subsample*float64(n)))

	builder := &treeBuilder{
		X:        clean,
		residual: residual,
		params:   b.params,
		gains:    gains,
	}

	for m := 0; m < b.params.NEstimators; m++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		rows := make([]int, 0, sampleSize)
		if sampleSize < n {
			rows = append(rows, rng.Perm(n)[:sampleSize]...)
			sort.Ints(rows)
		} else {
			for i := 0; i < n; i++ {
				rows = append(rows, i)
			}
		}

		tree := builder.build(rows, 0)
		trees = append(trees, tree)
		for i := range pred {
			pred[i] += b.params.LearningRate * tree.predict(clean[i])
		}
	}

	b.base = base
	b.trees = trees
	b.gains = gains
	b.nFeatures = width
	b.fitted = true
	return nil
}

// Predict returns the boosted prediction for each row of X
func (b *BoostedTrees) Predict(X [][]float64) ([]float64, error) {
	if !b.fitted {
		return nil, models.ErrModelNotReady
	}
	clean, err := sanitizeMatrix(X, b.nFeatures)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(clean))
	for i, x := range clean {
		v := b.base
		for _, tree := range b.trees {
			v += b.params.LearningRate * tree.predict(x)
		}
		out[i] = v
	}
	return out, nil
}

// FeatureImportances returns split gain per feature normalised to sum to 1.
// All zeros when no split was ever made.
func (b *BoostedTrees) FeatureImportances() []float64 {
	out := make([]float64, len(b.gains))
	total := 0.0
	for _, g := range b.gains {
		total += g
	}
	if total <= 0 {
		return out
	}
	for i, g := range b.gains {
		out[i] = g / total
	}
	return out
}

type treeBuilder struct {
	X        [][]float64
	residual []float64
	params   BoosterParams
	gains    []float64
}

type split struct {
	feature   int
	threshold float64
	gain      float64
	left      []int
	right     []int
}

func (tb *treeBuilder) build(rows []int, depth int) *treeNode {
	sum := 0.0
	for _, r := range rows {
		sum += tb.residual[r]
	}
	node := &treeNode{value: sum / float64(len(rows))}

	if depth >= tb.params.MaxDepth || len(rows) < 2*tb.params.MinSamplesLeaf {
		return node
	}

	best, ok := tb.bestSplit(rows, sum)
	if !ok {
		return node
	}

	tb.gains[best.feature] += best.gain
	node.feature = best.feature
	node.threshold = best.threshold
	node.left = tb.build(best.left, depth+1)
	node.right = tb.build(best.right, depth+1)
	return node
}

// bestSplit scans every feature for the squared-error-reducing split.
// Ties keep the earliest feature and the earliest position.
func (tb *treeBuilder) bestSplit(rows []int, total float64) (split, bool) {
	n := len(rows)
	minLeaf := tb.params.MinSamplesLeaf
	parent := total * total / float64(n)

	var best split
	found := false
	sorted := make([]int, n)

	for f := 0; f < len(tb.gains); f++ {
		copy(sorted, rows)
		sort.SliceStable(sorted, func(i, j int) bool {
			return tb.X[sorted[i]][f] < tb.X[sorted[j]][f]
		})

		left := 0.0
		for i := 1; i < n; i++ {
			left += tb.residual[sorted[i-1]]
			if i < minLeaf || n-i < minLeaf {
				continue
			}
			lo, hi := tb.X[sorted[i-1]][f], tb.X[sorted[i]][f]
			if lo == hi {
				continue
			}
			right := total - left
			gain := left*left/float64(i) + right*right/float64(n-i) - parent
			if gain > 1e-12 && (!found || gain > best.gain) {
				threshold := (lo + hi) / 2
				if threshold >= hi {
					threshold = lo
				}
				found = true
				best = split{feature: f, threshold: threshold, gain: gain}
			}
		}
	}
	if !found {
		return best, false
	}

	for _, r := range rows {
		if tb.X[r][best.feature] <= best.threshold {
			best.left = append(best.left, r)
		} else {
			best.right = append(best.right, r)
		}
	}
	return best, true
}
