package catalog

import (
	"errors"
	"fmt"
)

// TransientError wraps a failure that is expected to succeed on retry:
// network faults, timeouts, rate-limit rejections. The matcher must report
// these distinctly from an Unmatched decision, otherwise a flaky upstream
// would get good candidates marked as having no match.
type TransientError struct {
	// Op names the external call that failed, e.g. "beerdb.lookup".
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// DataShapeError marks a single malformed upstream record. The offending
// record is skipped and logged; the cycle continues.
type DataShapeError struct {
	// Source names the upstream, e.g. "retailer".
	Source string
	// Detail describes what was malformed.
	Detail string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Source, e.Detail)
}

// BadShape builds a DataShapeError.
func BadShape(source, format string, args ...any) error {
	return &DataShapeError{Source: source, Detail: fmt.Sprintf(format, args...)}
}

// IsDataShape reports whether err is (or wraps) a DataShapeError.
func IsDataShape(err error) bool {
	var de *DataShapeError
	return errors.As(err, &de)
}

// ErrConsistency marks an invariant breach, e.g. two active links for one
// product. It is fatal to the cycle: nothing is committed and the prior
// state remains visible.
var ErrConsistency = errors.New("catalog consistency violation")

// Consistency wraps ErrConsistency with detail.
func Consistency(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConsistency, fmt.Sprintf(format, args...))
}

// ErrNotFound is returned by lookups for ids that do not resolve. It is a
// definitive answer, not a transient failure.
var ErrNotFound = errors.New("not found")
