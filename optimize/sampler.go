package optimize

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampler proposes the next parameter set from the trials finished so far.
type Sampler interface {
	Name() string
	Sample(space Space, history []Trial) (Params, error)
}

// RandomSampler draws every dimension independently and uniformly
// (log-uniformly for log dimensions).
type RandomSampler struct {
	rng *rand.Rand
}

// NewRandomSampler returns a seeded RandomSampler.
func NewRandomSampler(seed uint64) *RandomSampler {
	return &RandomSampler{rng: rand.New(rand.NewPCG(seed, seed))}
}

// Name implements Sampler.
func (s *RandomSampler) Name() string { return "random" }

// Sample implements Sampler.
func (s *RandomSampler) Sample(space Space, _ []Trial) (Params, error) {
	p := make(Params, len(space))
	for _, d := range space {
		p[d.Name] = s.sampleOne(d)
	}
	return p, nil
}

func (s *RandomSampler) sampleOne(d Dimension) interface{} {
	if d.Kind == KindCategorical {
		return d.Choices[s.rng.IntN(len(d.Choices))]
	}
	lo, hi := d.bounds()
	return d.fromInternal(lo + s.rng.Float64()*(hi-lo))
}

// TPESampler is a Tree-structured Parzen Estimator (Bergstra et al., 2011).
// Finished trials are split into the best Gamma fraction ("good") and the
// rest; for each dimension a Parzen density is fitted to both groups and the
// candidate maximising l(x)/g(x) among NCandidates draws from l is proposed.
// The first NStartup trials are random.
type TPESampler struct {
	NStartup    int
	NCandidates int
	Gamma       float64
	PriorWeight float64

	rng    *rand.Rand
	random *RandomSampler
}

// TPEOption configures a TPESampler.
type TPEOption func(*TPESampler)

// WithStartupTrials sets the number of random trials before TPE kicks in.
func WithStartupTrials(n int) TPEOption {
	return func(s *TPESampler) { s.NStartup = n }
}

// WithCandidates sets the number of draws scored per dimension.
func WithCandidates(n int) TPEOption {
	return func(s *TPESampler) { s.NCandidates = n }
}

// WithPriorWeight sets the weight of the prior component relative to one
// observation.
func WithPriorWeight(w float64) TPEOption {
	return func(s *TPESampler) { s.PriorWeight = w }
}

// WithGamma sets the fraction of trials treated as good.
func WithGamma(g float64) TPEOption {
	return func(s *TPESampler) { s.Gamma = g }
}

// NewTPESampler returns a seeded TPE sampler with Optuna-like defaults.
func NewTPESampler(seed uint64, opts ...TPEOption) *TPESampler {
	s := &TPESampler{
		NStartup:    10,
		NCandidates: 24,
		Gamma:       0.25,
		PriorWeight: 0.5,
		rng:         rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d)),
		random:      NewRandomSampler(seed),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Sampler.
func (s *TPESampler) Name() string { return "tpe" }

// Sample implements Sampler.
func (s *TPESampler) Sample(space Space, history []Trial) (Params, error) {
	done := make([]Trial, 0, len(history))
	for _, t := range history {
		if t.State == TrialComplete {
			done = append(done, t)
		}
	}
	if len(done) < max(s.NStartup, 2) {
		return s.random.Sample(space, nil)
	}

	// 高スコア順（同点は先に見つかった試行を優先）
	sort.SliceStable(done, func(i, j int) bool { return done[i].Score > done[j].Score })
	nGood := max(1, int(math.Ceil(s.Gamma*float64(len(done)))))

	p := make(Params, len(space))
	for _, d := range space {
		var good, bad []float64
		for k, t := range done {
			x, ok := d.toInternal(t.Params[d.Name])
			if !ok {
				continue
			}
			if k < nGood {
				good = append(good, x)
			} else {
				bad = append(bad, x)
			}
		}
		if d.Kind == KindCategorical {
			p[d.Name] = d.Choices[s.sampleCategorical(len(d.Choices), good, bad)]
			continue
		}
		p[d.Name] = d.fromInternal(s.sampleNumeric(d, good, bad))
	}
	return p, nil
}

func (s *TPESampler) sampleCategorical(k int, good, bad []float64) int {
	weights := func(obs []float64) []float64 {
		w := make([]float64, k)
		for i := range w {
			w[i] = 1
		}
		for _, x := range obs {
			w[int(x)]++
		}
		floats.Scale(1/floats.Sum(w), w)
		return w
	}
	l, g := weights(good), weights(bad)

	best, bestScore := 0, math.Inf(-1)
	for c := 0; c < s.NCandidates; c++ {
		i := pick(s.rng, l)
		if score := math.Log(l[i]) - math.Log(g[i]); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func (s *TPESampler) sampleNumeric(d Dimension, good, bad []float64) float64 {
	lo, hi := d.bounds()
	if hi <= lo {
		return lo
	}
	l := newParzen(good, lo, hi, s.PriorWeight)
	g := newParzen(bad, lo, hi, s.PriorWeight)

	best, bestScore := lo, math.Inf(-1)
	for c := 0; c < s.NCandidates; c++ {
		x := l.sample(s.rng)
		if score := l.logProb(x) - g.logProb(x); score > bestScore {
			best, bestScore = x, score
		}
	}
	return best
}

// parzen is a weighted mixture of normals truncated to [lo, hi]: one
// component per observation plus a broad prior centred on the interval.
// Bandwidths follow Optuna: the larger gap to a sorted neighbour, clipped to
// [width/min(100, n+1), width].
type parzen struct {
	lo, hi     float64
	components []distuv.Normal
	logW       []float64
}

func newParzen(obs []float64, lo, hi, priorWeight float64) *parzen {
	width := hi - lo
	mus := append([]float64(nil), obs...)
	sort.Float64s(mus)
	minSigma := width / math.Min(100, float64(len(obs)+1))
	if priorWeight <= 0 && len(obs) == 0 {
		priorWeight = 1
	}

	p := &parzen{lo: lo, hi: hi}
	weights := make([]float64, 0, len(mus)+1)
	for i, mu := range mus {
		left, right := mu-lo, hi-mu
		if i > 0 {
			left = mu - mus[i-1]
		}
		if i < len(mus)-1 {
			right = mus[i+1] - mu
		}
		sigma := math.Min(math.Max(math.Max(left, right), minSigma), width)
		p.components = append(p.components, distuv.Normal{Mu: mu, Sigma: sigma})
		weights = append(weights, 1)
	}
	p.components = append(p.components, distuv.Normal{Mu: lo + width/2, Sigma: width})
	weights = append(weights, priorWeight)

	total := floats.Sum(weights)
	p.logW = make([]float64, len(weights))
	for i, w := range weights {
		p.logW[i] = math.Log(w / total)
	}
	return p
}

func (p *parzen) sample(rng *rand.Rand) float64 {
	c := p.components[p.pick(rng)]
	for try := 0; try < 32; try++ {
		x := c.Mu + c.Sigma*rng.NormFloat64()
		if x >= p.lo && x <= p.hi {
			return x
		}
	}
	return math.Max(p.lo, math.Min(p.hi, c.Mu))
}

func (p *parzen) logProb(x float64) float64 {
	terms := make([]float64, len(p.components))
	for i, c := range p.components {
		// 区間外の質量で正規化（切断正規分布）
		mass := c.CDF(p.hi) - c.CDF(p.lo)
		terms[i] = p.logW[i] + c.LogProb(x) - math.Log(math.Max(mass, 1e-12))
	}
	return floats.LogSumExp(terms)
}

func (p *parzen) pick(rng *rand.Rand) int {
	u := rng.Float64()
	acc := 0.0
	for i, lw := range p.logW {
		acc += math.Exp(lw)
		if u < acc {
			return i
		}
	}
	return len(p.logW) - 1
}

func pick(rng *rand.Rand, w []float64) int {
	u := rng.Float64()
	acc := 0.0
	for i, v := range w {
		acc += v
		if u < acc {
			return i
		}
	}
	return len(w) - 1
}
