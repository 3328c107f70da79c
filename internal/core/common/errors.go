package common

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a matching failure. All kinds abort the run.
type ErrorKind int

const (
	// KindGeometry covers empty or degenerate geometry referenced by an edge.
	KindGeometry ErrorKind = iota
	// KindSchema covers a required annotation missing when a later step runs.
	KindSchema
	// KindConfig covers thresholds outside [0,1] and impossible components.
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindSchema:
		return "schema"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is checks against a KindError of the same kind.
var (
	ErrGeometry = errors.New("geometry error")
	ErrSchema   = errors.New("schema error")
	ErrConfig   = errors.New("config error")
)

// KindError wraps an error with its kind and the operation that raised it.
type KindError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *KindError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrGeometry) match any geometry-kind error.
func (e *KindError) Is(target error) bool {
	switch target {
	case ErrGeometry:
		return e.Kind == KindGeometry
	case ErrSchema:
		return e.Kind == KindSchema
	case ErrConfig:
		return e.Kind == KindConfig
	}
	return false
}

func newKindError(kind ErrorKind, op, format string, args ...interface{}) error {
	return &KindError{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func GeometryError(op, format string, args ...interface{}) error {
	return newKindError(KindGeometry, op, format, args...)
}

func SchemaError(op, format string, args ...interface{}) error {
	return newKindError(KindSchema, op, format, args...)
}

func ConfigError(op, format string, args ...interface{}) error {
	return newKindError(KindConfig, op, format, args...)
}

// KindOf reports the kind of the first KindError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var ke *KindError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return 0, false
}

// CheckThreshold rejects NaN and values outside [0,1].
func CheckThreshold(op, name string, v float64) error {
	if v != v || v < 0 || v > 1 {
		return ConfigError(op, "%s must be within [0,1], got %v", name, v)
	}
	return nil
}
