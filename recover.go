package grib2grid

import "sync/atomic"

// guard scopes fatal-condition recovery to one bridge call frame.
// It is idle until armed and returns to idle when the call unwinds,
// whether or not a fatal condition was recovered.
type guard struct {
	armed *atomic.Int64
}

// armGuard marks one call as in flight on counter.
func armGuard(counter *atomic.Int64) guard {
	counter.Add(1)
	return guard{armed: counter}
}

// disarm releases the guard. It must be deferred.
func (g guard) disarm() {
	g.armed.Add(-1)
}

// asFatal converts a recovered panic value into a *FatalError.
// A nil value means nothing was recovered.
func asFatal(op string, r any) *FatalError {
	if r == nil {
		return nil
	}
	if fc, ok := r.(fatalCondition); ok {
		return &FatalError{Op: op, Reason: fc.msg}
	}
	return &FatalError{Op: op, Reason: r}
}
