package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// Split marks the partition a record belongs to.
type Split uint8

const (
	SplitTrain Split = iota
	SplitTest
)

func (s Split) String() string {
	if s == SplitTest {
		return "test"
	}
	return "train"
}

// ParseSplit is the inverse of Split.String.
func ParseSplit(s string) (Split, error) {
	switch s {
	case "train":
		return SplitTrain, nil
	case "test":
		return SplitTest, nil
	}
	return 0, errors.NewValueError("parse split", "unknown split "+s)
}

// RandomSplit assigns a fixed fraction of records to the test partition by
// simple random sampling. The same seed always produces the same assignment.
type RandomSplit struct {
	TestFraction float64
	Seed         uint64
}

// Validate checks that the test fraction is in (0, 1).
func (s RandomSplit) Validate() error {
	if !(s.TestFraction > 0 && s.TestFraction < 1) {
		return errors.NewConfigError("split.holdout", "must be in (0, 1)", s.TestFraction)
	}
	return nil
}

// TestSize returns round(n * TestFraction).
func (s RandomSplit) TestSize(n int) int {
	return int(math.Round(float64(n) * s.TestFraction))
}

// Assign returns the partition of each of n records.
func (s RandomSplit) Assign(n int) []Split {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	r := rand.New(rand.NewPCG(s.Seed, s.Seed))
	r.Shuffle(len(indices), func(i, j int) {
		indices[i], indices[j] = indices[j], indices[i]
	})
	out := make([]Split, n)
	for _, idx := range indices[:s.TestSize(n)] {
		out[idx] = SplitTest
	}
	return out
}
