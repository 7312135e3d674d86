package grib2grid

import (
	"errors"
	"fmt"
)

// Status codes returned across the bridge boundary.
// Codes other than StatusOK and StatusFatal are engine-defined; a
// *StatusError carrying any code is passed through unchanged.
const (
	StatusOK          = 0
	StatusFailure     = 1 // unclassified error
	StatusBadGrid     = 2 // malformed grid definition
	StatusUnsupported = 3 // template, earth shape or scan mode not handled
	StatusOutOfDomain = 4 // point cannot be projected
	StatusBadArgs     = 5 // inconsistent array lengths or empty reference arrays
	StatusFatal       = 9 // fatal engine condition recovered at the bridge
)

var (
	// ErrFatal matches every *FatalError.
	ErrFatal = errors.New("fatal engine condition")

	// ErrUnsupportedGrid marks grid definitions that parse but cannot be handled.
	ErrUnsupportedGrid = errors.New("unsupported grid")
)

// StatusError is an engine-reported failure with an explicit status code.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Code, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// statusErrorf builds a *StatusError from a format string.
func statusErrorf(code int, format string, args ...any) error {
	return &StatusError{Code: code, Err: fmt.Errorf(format, args...)}
}

// gridError classifies a ParseGridDefinition error.
func gridError(err error) error {
	if errors.Is(err, ErrUnsupportedGrid) {
		return &StatusError{Code: StatusUnsupported, Err: err}
	}
	return &StatusError{Code: StatusBadGrid, Err: err}
}

// FatalError is a fatal engine condition recovered at the bridge boundary.
type FatalError struct {
	Op     string // bridge operation, "ll2ij" or "sec3latlon"
	Reason any    // recovered panic value
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: fatal: %v", e.Op, e.Reason)
}

func (e *FatalError) Is(target error) bool { return target == ErrFatal }

// StatusCode maps an error returned by the bridge to its integer status.
func StatusCode(err error) int {
	if err == nil {
		return StatusOK
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return StatusFatal
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return StatusFailure
}

// fatalCondition is the panic value engines raise through fatalf.
type fatalCondition struct{ msg string }

func (f fatalCondition) String() string { return f.msg }

// fatalf aborts the current engine computation. The bridge recovers it.
func fatalf(format string, args ...any) {
	panic(fatalCondition{msg: fmt.Sprintf(format, args...)})
}
