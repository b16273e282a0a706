package errors

import "errors"

// As delegates to the standard library so callers of this package don't need
// both imports.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is delegates to the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
