package annex

import (
	"errors"
	"fmt"

	"github.com/hupe1980/annex/engine"
)

var (
	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("annex: k must be positive")
	// ErrInvalidNumQueries is returned when the number of queries is not positive.
	ErrInvalidNumQueries = errors.New("annex: number of queries must be positive")
	// ErrReservedID is returned when an insert uses -1, which marks empty result slots.
	ErrReservedID = errors.New("annex: id -1 is reserved")
	// ErrClosed is returned by operations on a closed Index.
	ErrClosed = errors.New("annex: index is closed")
)

// ConfigurationError reports an unusable dimension, description, metric or
// search parameter. It is raised at construction and never retried.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigurationError struct {
	Reason string
	cause  error
}

func (e *ConfigurationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("annex: invalid configuration: %s: %v", e.Reason, e.cause)
	}
	return "annex: invalid configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

// TrainingError reports a rejected training call. The trained state is unchanged.
type TrainingError struct {
	Samples int
	cause   error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("annex: training on %d samples failed: %v", e.Samples, e.cause)
}

func (e *TrainingError) Unwrap() error { return e.cause }

// NotTrainedError reports an insert or search on an index that needs training first.
type NotTrainedError struct {
	Op    string
	cause error
}

func (e *NotTrainedError) Error() string {
	return fmt.Sprintf("annex: %s requires a trained index", e.Op)
}

func (e *NotTrainedError) Unwrap() error { return e.cause }

// DimensionMismatchError reports misaligned vectors or an id count that does
// not match the number of vectors. It is raised before the engine is called.
type DimensionMismatchError struct {
	What     string
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("annex: dimension mismatch: %s: expected %d, got %d", e.What, e.Expected, e.Actual)
}

// CorruptIndexError reports a stored index that cannot be used: unreadable,
// damaged, or not an id-mapped index.
type CorruptIndexError struct {
	Path  string
	cause error
}

func (e *CorruptIndexError) Error() string {
	return fmt.Sprintf("annex: corrupt index %q: %v", e.Path, e.cause)
}

func (e *CorruptIndexError) Unwrap() error { return e.cause }

// IOError reports a storage failure while probing for or writing an index.
type IOError struct {
	Op    string
	Path  string
	cause error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("annex: %s %q: %v", e.Op, e.Path, e.cause)
}

func (e *IOError) Unwrap() error { return e.cause }

// translateError maps engine errors to the package's error types.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, engine.ErrBadDescription),
		errors.Is(err, engine.ErrInvalidDimension),
		errors.Is(err, engine.ErrUnsupportedMetric),
		errors.Is(err, engine.ErrUnknownParameter):
		return &ConfigurationError{Reason: op, cause: err}
	case errors.Is(err, engine.ErrNotTrained):
		return &NotTrainedError{Op: op, cause: err}
	case errors.Is(err, engine.ErrTrainingFailed):
		return &TrainingError{cause: err}
	}

	return err
}

// loadError reports any failure to open or decode a stored index as unreadable.
// The cause stays wrapped, so a missing file still matches blobstore.ErrNotFound.
func loadError(path string, err error) error {
	if err == nil {
		return nil
	}
	return &CorruptIndexError{Path: path, cause: err}
}
