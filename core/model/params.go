package model

import (
	"math"

	"github.com/YuminosukeSato/qsarkit/pkg/errors"
)

// IntParam converts a hyperparameter value to int. Values decoded from JSON
// arrive as float64 and are accepted when integral.
func IntParam(name string, v interface{}) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int32:
		return int(x), nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, errors.NewValidationError(name, "must be an integer", v)
		}
		return int(x), nil
	}
	return 0, errors.NewValidationError(name, "must be an integer", v)
}

// FloatParam converts a hyperparameter value to float64.
func FloatParam(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, errors.NewValidationError(name, "must be a number", v)
}

// StringParam converts a hyperparameter value to string.
func StringParam(name string, v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", errors.NewValidationError(name, "must be a string", v)
}

// UnknownParam is returned by SetParams implementations for unsupported keys.
func UnknownParam(modelName, key string) error {
	return errors.NewValidationError(key, "unknown parameter for "+modelName, key)
}
