package qsar

import (
	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// State is the lifecycle state of a Model.
//
//	Unconfigured --Optimize/UseParams--> Optimizing --Evaluate--> Evaluated --FitAttached--> Fitted
//
// Optimizing is reached once hyperparameters are chosen; LoadModel returns a
// model in Fitted.
type State int

const (
	Unconfigured State = iota
	Optimizing
	Evaluated
	Fitted
)

func (s State) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Optimizing:
		return "optimizing"
	case Evaluated:
		return "evaluated"
	case Fitted:
		return "fitted"
	}
	return "unknown"
}

// require returns a StateError unless the model is in one of want.
func (m *Model) require(op string, want ...State) error {
	for _, s := range want {
		if m.state == s {
			return nil
		}
	}
	return errors.NewStateError(m.Name, m.state.String(), op)
}
