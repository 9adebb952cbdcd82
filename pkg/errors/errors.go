// Package errors wraps github.com/go-errors/errors so SDK errors carry a stack
// trace while remaining compatible with the standard errors.Is/As helpers.
package errors

import (
	stderrors "errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// New returns an error with the given message and the caller's stack.
func New(msg string) error {
	return goerrors.Wrap(stderrors.New(msg), 1)
}

// Errorf formats an error like fmt.Errorf (including %w) and attaches a stack.
func Errorf(format string, args ...interface{}) error {
	return goerrors.Wrap(fmt.Errorf(format, args...), 1)
}

// Wrap annotates err with msg. A nil err yields nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(fmt.Errorf("%s: %w", msg, err), 1)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// ErrorStack returns the stack attached by this package, or the plain message
// when err carries no stack.
func ErrorStack(err error) string {
	var ge *goerrors.Error
	if stderrors.As(err, &ge) {
		return ge.ErrorStack()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Recover runs f and converts a panic into an error.
func Recover(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerrors.Wrap(r, 2)
		}
	}()
	f()
	return nil
}
