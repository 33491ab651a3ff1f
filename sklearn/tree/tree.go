// Package tree implements a CART regression tree with squared-error splits
// found on quantized feature histograms.
package tree

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/qsarkit/core/model"
	"github.com/YuminosukeSato/qsarkit/metrics"
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

const modelName = "DecisionTreeRegressor"

// Node is one entry of the flattened tree. Leaves have Feature == -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	NSamples  int
	Impurity  float64
}

// Params holds the tree hyperparameters.
type Params struct {
	MaxDepth        int     // 0 means unlimited
	MinSamplesSplit int     // minimum samples to split an internal node
	MinSamplesLeaf  int     // minimum samples in each leaf
	MaxFeatures     float64 // fraction of features tried per split, (0, 1]
	MaxBins         int     // candidate thresholds per feature
	RandomState     uint64
}

// DefaultParams matches scikit-learn's DecisionTreeRegressor defaults.
func DefaultParams() Params {
	return Params{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     1.0,
		MaxBins:         DefaultMaxBins,
	}
}

// DecisionTreeRegressor is a CART regressor. All fields are exported for gob.
type DecisionTreeRegressor struct {
	State  *model.StateManager
	Params Params

	Nodes       []Node
	Importances []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree. 0 means unlimited.
func WithMaxDepth(depth int) Option {
	return func(t *DecisionTreeRegressor) { t.Params.MaxDepth = depth }
}

// WithMinSamplesSplit sets the minimum number of samples required to split.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.Params.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.Params.MinSamplesLeaf = n }
}

// WithMaxFeatures sets the fraction of features examined at each split.
func WithMaxFeatures(frac float64) Option {
	return func(t *DecisionTreeRegressor) { t.Params.MaxFeatures = frac }
}

// WithMaxBins sets the number of histogram bins per feature.
func WithMaxBins(n int) Option {
	return func(t *DecisionTreeRegressor) { t.Params.MaxBins = n }
}

// WithRandomState seeds feature subsampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.Params.RandomState = seed }
}

// NewDecisionTreeRegressor creates an unfitted tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{State: model.NewStateManager(), Params: DefaultParams()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Validate checks the hyperparameters.
func (p Params) Validate() error {
	switch {
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	case !(p.MaxFeatures > 0 && p.MaxFeatures <= 1):
		return errors.NewValidationError("max_features", "must be in (0, 1]", p.MaxFeatures)
	}
	return nil
}

// Fit builds the tree on X (n×d) and y (n×1).
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	yv, err := columnVector("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	return t.FitBinned(NewBinned(X, t.Params.MaxBins), yv, nil)
}

// FitBinned builds the tree on pre-quantized features. rows selects the
// training samples and may repeat indices (bootstrap); nil uses every row.
func (t *DecisionTreeRegressor) FitBinned(b *Binned, y []float64, rows []int) error {
	if err := t.Params.Validate(); err != nil {
		return err
	}
	if b.Rows != len(y) {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", b.Rows, len(y), 0)
	}
	if rows == nil {
		rows = make([]int, b.Rows)
		for i := range rows {
			rows[i] = i
		}
	}
	if len(rows) == 0 {
		return errors.NewDataError("DecisionTreeRegressor.Fit", "", 0, errors.ErrEmptyData)
	}

	bd := &builder{
		p:           t.Params,
		b:           b,
		y:           y,
		rng:         rand.New(rand.NewPCG(t.Params.RandomState, t.Params.RandomState^0x9e3779b97f4a7c15)),
		importances: make([]float64, b.Cols),
		features:    make([]int, b.Cols),
	}
	for f := range bd.features {
		bd.features[f] = f
	}
	bd.grow(append([]int(nil), rows...), 0)

	total := 0.0
	for _, v := range bd.importances {
		total += v
	}
	if total > 0 {
		for f := range bd.importances {
			bd.importances[f] /= total
		}
	}
	t.Nodes = bd.nodes
	t.Importances = bd.importances
	t.State.SetDimensions(b.Cols, len(rows))
	t.State.SetFitted()
	return nil
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	out, err := t.PredictVec(X)
	if err != nil {
		return nil, err
	}
	return mat.NewDense(len(out), 1, out), nil
}

// PredictVec returns predictions as a slice.
func (t *DecisionTreeRegressor) PredictVec(X mat.Matrix) ([]float64, error) {
	if err := t.State.RequireFitted(modelName, "Predict"); err != nil {
		return nil, err
	}
	if err := t.State.CheckFeatures("DecisionTreeRegressor.Predict", X); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = t.predictRow(X, i)
	}
	return out, nil
}

func (t *DecisionTreeRegressor) predictRow(X mat.Matrix, i int) float64 {
	n := 0
	for t.Nodes[n].Feature >= 0 {
		if X.At(i, t.Nodes[n].Feature) <= t.Nodes[n].Threshold {
			n = t.Nodes[n].Left
		} else {
			n = t.Nodes[n].Right
		}
	}
	return t.Nodes[n].Value
}

// Score returns R² of the predictions on X against y.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// IsFitted reports whether Fit has completed.
func (t *DecisionTreeRegressor) IsFitted() bool { return t.State.IsFitted() }

// Depth returns the depth of the fitted tree (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int {
	var walk func(n, d int) int
	walk = func(n, d int) int {
		if t.Nodes[n].Feature < 0 {
			return d
		}
		return max(walk(t.Nodes[n].Left, d+1), walk(t.Nodes[n].Right, d+1))
	}
	if len(t.Nodes) == 0 {
		return 0
	}
	return walk(0, 0)
}

// NumLeaves returns the number of leaves.
func (t *DecisionTreeRegressor) NumLeaves() int {
	n := 0
	for _, node := range t.Nodes {
		if node.Feature < 0 {
			n++
		}
	}
	return n
}

// GetParams returns the hyperparameters with scikit-learn names.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.Params.MaxDepth,
		"min_samples_split": t.Params.MinSamplesSplit,
		"min_samples_leaf":  t.Params.MinSamplesLeaf,
		"max_features":      t.Params.MaxFeatures,
		"max_bins":          t.Params.MaxBins,
		"random_state":      t.Params.RandomState,
	}
}

// SetParams updates hyperparameters and resets the fitted state.
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	p := t.Params
	if err := p.Set(params); err != nil {
		return err
	}
	t.Params = p
	t.State.Reset()
	return nil
}

// Set applies scikit-learn style parameters to p.
func (p *Params) Set(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "max_depth":
			p.MaxDepth, err = model.IntParam(k, v)
		case "min_samples_split":
			p.MinSamplesSplit, err = model.IntParam(k, v)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.IntParam(k, v)
		case "max_features":
			p.MaxFeatures, err = model.FloatParam(k, v)
		case "max_bins":
			p.MaxBins, err = model.IntParam(k, v)
		case "random_state":
			var seed int
			seed, err = model.IntParam(k, v)
			p.RandomState = uint64(seed)
		default:
			err = model.UnknownParam(modelName, k)
		}
		if err != nil {
			return err
		}
	}
	return p.Validate()
}

func columnVector(op string, X, y mat.Matrix) ([]float64, error) {
	rows, _ := X.Dims()
	yRows, yCols := y.Dims()
	if rows != yRows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if rows == 0 {
		return nil, errors.NewDataError(op, "", 0, errors.ErrEmptyData)
	}
	out := make([]float64, rows)
	for i := range out {
		out[i] = y.At(i, 0)
	}
	return out, nil
}

type builder struct {
	p           Params
	b           *Binned
	y           []float64
	rng         *rand.Rand
	nodes       []Node
	importances []float64
	features    []int

	cnt []int
	sum []float64
}

type split struct {
	feature int
	bin     int
	score   float64
}

// grow appends the subtree for rows and returns its node index.
func (bd *builder) grow(rows []int, depth int) int {
	n := len(rows)
	sum, sumSq := 0.0, 0.0
	for _, r := range rows {
		sum += bd.y[r]
		sumSq += bd.y[r] * bd.y[r]
	}
	mean := sum / float64(n)
	sse := math.Max(sumSq-sum*mean, 0)

	idx := len(bd.nodes)
	bd.nodes = append(bd.nodes, Node{Feature: -1, Value: mean, NSamples: n, Impurity: sse / float64(n)})

	if (bd.p.MaxDepth > 0 && depth >= bd.p.MaxDepth) ||
		n < bd.p.MinSamplesSplit || n < 2*bd.p.MinSamplesLeaf || sse <= 1e-12 {
		return idx
	}
	best, ok := bd.bestSplit(rows, sum)
	if !ok {
		return idx
	}

	codes := bd.b.Codes[best.feature]
	left := make([]int, 0, n)
	right := make([]int, 0, n)
	for _, r := range rows {
		if int(codes[r]) <= best.bin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	// score is sL²/nL + sR²/nR; the SSE reduction is score - sum²/n.
	bd.importances[best.feature] += best.score - sum*mean

	l := bd.grow(left, depth+1)
	r := bd.grow(right, depth+1)
	bd.nodes[idx].Feature = best.feature
	bd.nodes[idx].Threshold = bd.b.Thresholds[best.feature][best.bin]
	bd.nodes[idx].Left = l
	bd.nodes[idx].Right = r
	return idx
}

// bestSplit maximizes sL²/nL + sR²/nR, which minimizes the children's SSE.
// Ties keep the first candidate examined.
func (bd *builder) bestSplit(rows []int, total float64) (split, bool) {
	n := len(rows)
	baseline := total * total / float64(n)
	best := split{feature: -1, score: baseline + 1e-12*math.Max(1, math.Abs(baseline))}

	features := bd.features
	if k := int(math.Ceil(bd.p.MaxFeatures * float64(len(features)))); k < len(features) {
		for i := 0; i < k; i++ {
			j := i + bd.rng.IntN(len(features)-i)
			features[i], features[j] = features[j], features[i]
		}
		features = features[:max(k, 1)]
	}

	for _, f := range features {
		th := bd.b.Thresholds[f]
		nb := len(th) + 1
		if nb < 2 {
			continue
		}
		if cap(bd.cnt) < nb {
			bd.cnt = make([]int, nb)
			bd.sum = make([]float64, nb)
		}
		cnt, sum := bd.cnt[:nb], bd.sum[:nb]
		clear(cnt)
		clear(sum)
		codes := bd.b.Codes[f]
		for _, r := range rows {
			c := codes[r]
			cnt[c]++
			sum[c] += bd.y[r]
		}
		nl, sl := 0, 0.0
		for b := 0; b < nb-1; b++ {
			nl += cnt[b]
			sl += sum[b]
			nr := n - nl
			if nl < bd.p.MinSamplesLeaf {
				continue
			}
			if nr < bd.p.MinSamplesLeaf {
				break
			}
			if cnt[b] == 0 {
				continue
			}
			sr := total - sl
			score := sl*sl/float64(nl) + sr*sr/float64(nr)
			if score > best.score {
				best = split{feature: f, bin: b, score: score}
			}
		}
	}
	return best, best.feature >= 0
}
