// Package optimize runs sequential hyperparameter searches.
//
// Optimize is a pure function of (search space, objective, trial budget):
// it asks a Sampler for the next parameter set given every finished trial,
// evaluates the objective, and returns the best parameters together with the
// full trial history. Higher scores are better. A later trial replaces the
// incumbent only with a strictly greater score, so ties go to the trial found
// first.
package optimize

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// Kind is the type of a search dimension.
type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindCategorical
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindCategorical:
		return "categorical"
	}
	return "unknown"
}

// Dimension is one named hyperparameter range.
type Dimension struct {
	Name    string
	Kind    Kind
	Low     float64
	High    float64
	Log     bool
	Choices []interface{}
}

// Int returns an integer dimension over [low, high].
func Int(name string, low, high int) Dimension {
	return Dimension{Name: name, Kind: KindInt, Low: float64(low), High: float64(high)}
}

// IntLog returns an integer dimension sampled uniformly in log space.
func IntLog(name string, low, high int) Dimension {
	d := Int(name, low, high)
	d.Log = true
	return d
}

// Float returns a continuous dimension over [low, high].
func Float(name string, low, high float64) Dimension {
	return Dimension{Name: name, Kind: KindFloat, Low: low, High: high}
}

// FloatLog returns a continuous dimension sampled uniformly in log space.
func FloatLog(name string, low, high float64) Dimension {
	d := Float(name, low, high)
	d.Log = true
	return d
}

// Categorical returns a dimension over a fixed list of values.
func Categorical(name string, choices ...interface{}) Dimension {
	return Dimension{Name: name, Kind: KindCategorical, Choices: choices}
}

// Validate reports out-of-range bounds as a ConfigError.
func (d Dimension) Validate() error {
	field := "search_space." + d.Name
	if d.Name == "" {
		return errors.NewConfigError("search_space", "dimension without a name", d)
	}
	switch d.Kind {
	case KindInt, KindFloat:
		if math.IsNaN(d.Low) || math.IsNaN(d.High) || math.IsInf(d.Low, 0) || math.IsInf(d.High, 0) {
			return errors.NewConfigError(field, "bounds must be finite", [2]float64{d.Low, d.High})
		}
		if d.Low > d.High {
			return errors.NewConfigError(field, "low must not exceed high", [2]float64{d.Low, d.High})
		}
		if d.Log && d.Low <= 0 {
			return errors.NewConfigError(field, "log scale requires low > 0", d.Low)
		}
		if d.Kind == KindInt && (d.Low != math.Trunc(d.Low) || d.High != math.Trunc(d.High)) {
			return errors.NewConfigError(field, "integer bounds required", [2]float64{d.Low, d.High})
		}
	case KindCategorical:
		if len(d.Choices) == 0 {
			return errors.NewConfigError(field, "no choices", nil)
		}
	default:
		return errors.NewConfigError(field, "unknown kind", int(d.Kind))
	}
	return nil
}

// toInternal maps a value to the space the samplers work in: log for log
// dimensions, the choice index for categoricals.
func (d Dimension) toInternal(v interface{}) (float64, bool) {
	if d.Kind == KindCategorical {
		for i, c := range d.Choices {
			if sameChoice(c, v) {
				return float64(i), true
			}
		}
		return 0, false
	}
	x, ok := number(v)
	if !ok {
		return 0, false
	}
	if d.Log {
		x = math.Log(x)
	}
	return x, true
}

// sameChoice compares choices, treating numbers decoded from JSON (float64)
// as equal to the ints they came from.
func sameChoice(a, b interface{}) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	return a == b
}

func number(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	}
	return 0, false
}

// bounds returns the internal interval. Integers are widened by half a step
// so the end points get the same mass as interior values.
func (d Dimension) bounds() (float64, float64) {
	lo, hi := d.Low, d.High
	if d.Kind == KindInt {
		lo, hi = lo-0.5, hi+0.5
	}
	if d.Log {
		return math.Log(lo), math.Log(hi)
	}
	return lo, hi
}

// fromInternal maps an internal value back to an int, float64 or choice.
func (d Dimension) fromInternal(x float64) interface{} {
	switch d.Kind {
	case KindCategorical:
		i := int(math.Round(x))
		return d.Choices[max(0, min(i, len(d.Choices)-1))]
	case KindInt:
		if d.Log {
			x = math.Exp(x)
		}
		return int(math.Max(d.Low, math.Min(d.High, math.Round(x))))
	}
	if d.Log {
		x = math.Exp(x)
	}
	return math.Max(d.Low, math.Min(d.High, x))
}

// Space is an ordered set of dimensions.
type Space []Dimension

// Validate checks every dimension and rejects duplicate names.
func (s Space) Validate() error {
	if len(s) == 0 {
		return errors.NewConfigError("search_space", "empty", nil)
	}
	seen := make(map[string]bool, len(s))
	for _, d := range s {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return errors.NewConfigError("search_space."+d.Name, "duplicate dimension", d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}

// Params is one sampled assignment, keyed by dimension name.
type Params map[string]interface{}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
