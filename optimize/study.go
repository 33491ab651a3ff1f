package optimize

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// TrialState is the outcome of a trial.
type TrialState int

const (
	TrialComplete TrialState = iota
	TrialFailed
)

func (s TrialState) String() string {
	if s == TrialComplete {
		return "complete"
	}
	return "failed"
}

// Trial is one evaluation of the objective.
type Trial struct {
	Number   int
	Params   Params
	Score    float64 // NaN for failed trials
	State    TrialState
	Err      string
	Duration time.Duration
}

// Study is the result of a search.
type Study struct {
	ID         string
	Name       string
	Sampler    string
	Trials     []Trial
	BestTrial  int // -1 while no trial has completed
	BestParams Params
	BestScore  float64
}

// Best returns the best completed trial.
func (s *Study) Best() (Trial, bool) {
	if s.BestTrial < 0 || s.BestTrial >= len(s.Trials) {
		return Trial{}, false
	}
	return s.Trials[s.BestTrial], true
}

// record appends t and updates the incumbent. Only a strictly greater score
// replaces it.
func (s *Study) record(t Trial) bool {
	s.Trials = append(s.Trials, t)
	if t.State != TrialComplete {
		return false
	}
	if s.BestTrial >= 0 && !(t.Score > s.BestScore) {
		return false
	}
	s.BestTrial = len(s.Trials) - 1
	s.BestParams = t.Params
	s.BestScore = t.Score
	return true
}

func newStudy(name, sampler string) *Study {
	return &Study{
		ID:        uuid.NewString(),
		Name:      name,
		Sampler:   sampler,
		BestTrial: -1,
		BestScore: math.Inf(-1),
	}
}

// Objective scores one parameter set. Higher is better.
type Objective func(ctx context.Context, params Params) (float64, error)

type options struct {
	name    string
	sampler Sampler
	storage Storage
	seed    uint64
	logger  log.Logger
}

// Option configures Optimize.
type Option func(*options)

// WithSampler replaces the default TPE sampler.
func WithSampler(s Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithStorage persists the study and every trial as it finishes.
func WithStorage(st Storage) Option {
	return func(o *options) { o.storage = st }
}

// WithStudyName names the study.
func WithStudyName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithSeed seeds the default sampler.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithLogger sets the logger used for trial progress.
func WithLogger(l log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Optimize evaluates objective nTrials times, one trial after another.
//
// A trial whose objective returns an error, panics, or yields a non-finite
// score is recorded as failed and the search continues. Cancelling ctx stops
// the search between trials; the partial study is returned with the error.
func Optimize(ctx context.Context, space Space, objective Objective, nTrials int, opts ...Option) (*Study, error) {
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if nTrials < 1 {
		return nil, errors.NewConfigError("n_trials", "must be >= 1", nTrials)
	}
	o := options{name: "study", seed: 42}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sampler == nil {
		o.sampler = NewTPESampler(o.seed)
	}
	if o.logger == nil {
		o.logger = log.GetLogger()
	}

	study := newStudy(o.name, o.sampler.Name())
	logger := o.logger.With(
		log.StudyKey, study.ID,
		log.OperationKey, log.OperationOptimize,
	)
	if o.storage != nil {
		if err := o.storage.CreateStudy(ctx, study); err != nil {
			return nil, err
		}
	}
	logger.Info("Study started", "name", o.name, "sampler", o.sampler.Name(), "n_trials", nTrials)

	for n := 0; n < nTrials; n++ {
		if err := ctx.Err(); err != nil {
			return study, errors.Wrapf(err, "optimization stopped after %d trials", n)
		}
		params, err := o.sampler.Sample(space, study.Trials)
		if err != nil {
			return study, errors.Wrapf(err, "sample trial %d", n)
		}

		start := time.Now()
		var score float64
		err = errors.SafeExecute("objective", func() error {
			var ferr error
			score, ferr = objective(ctx, params)
			return ferr
		})
		trial := Trial{Number: n, Params: params, Score: score, Duration: time.Since(start)}
		switch {
		case err != nil:
			trial.State, trial.Score, trial.Err = TrialFailed, math.NaN(), err.Error()
		case math.IsNaN(score) || math.IsInf(score, 0):
			trial.State, trial.Score, trial.Err = TrialFailed, math.NaN(), "non-finite score"
		}

		improved := study.record(trial)
		if o.storage != nil {
			if err := o.storage.AppendTrial(ctx, study.ID, trial); err != nil {
				return study, err
			}
		}
		if trial.State == TrialFailed {
			logger.Warn("Trial failed", log.TrialKey, n, "error", trial.Err)
			continue
		}
		logger.Info("Trial finished",
			log.TrialKey, n,
			log.ScoreKey, trial.Score,
			log.HyperParamsKey, map[string]interface{}(params),
			log.DurationMsKey, trial.Duration.Milliseconds(),
			"best", improved,
		)
	}

	best, ok := study.Best()
	if !ok {
		return study, errors.NewModelError("Optimize", "all trials failed",
			errors.Newf("%d of %d trials failed", len(study.Trials), nTrials))
	}
	logger.Info("Study finished",
		log.TrialKey, best.Number,
		log.ScoreKey, best.Score,
		log.HyperParamsKey, map[string]interface{}(best.Params),
	)
	return study, nil
}
