package kron

import (
	"fmt"

	"github.com/pkg/errors"
)

// A MeasurementError is a failure that maps onto one of the
// diagnostic flags.
type MeasurementError struct {
	Flag Flags
	Msg  string
}

func (e *MeasurementError) Error() string {
	return fmt.Sprintf("%s: %s", e.Flag, e.Msg)
}

func newError(flag Flags, format string, args ...interface{}) error {
	return errors.WithStack(&MeasurementError{Flag: flag, Msg: fmt.Sprintf(format, args...)})
}

// FlagOf returns the flag an error should set; anything we don't
// recognise is a plain Failure.
func FlagOf(err error) Flags {
	if err == nil {
		return 0
	}
	var me *MeasurementError
	if errors.As(err, &me) {
		return me.Flag
	}
	return Failure
}
