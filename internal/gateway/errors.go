package gateway

import "errors"

// FatalError is returned by the loops when the process cannot continue, i.e.
// the concentrator counter can not be read or a signal can not be published.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return "fatal: " + e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err contains a FatalError
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
