package services

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
)

// serviceError tags a message and an optional cause with one of the sentinel
// kinds above, so callers can match with errors.Is on either.
type serviceError struct {
	kind  error
	msg   string
	cause error
}

var _ error = (*serviceError)(nil)

func notFound(msg string) error {
	return &serviceError{kind: ErrNotFound, msg: msg}
}

func invalid(msg string) error {
	return &serviceError{kind: ErrValidation, msg: msg}
}

func invalidCause(msg string, cause error) error {
	return &serviceError{kind: ErrValidation, msg: msg, cause: cause}
}

func (err *serviceError) Error() string {
	if err == nil {
		return "(*serviceError)(nil)"
	}
	message := err.kind.Error() + ": " + err.msg
	if err.cause != nil {
		message += ": " + err.cause.Error()
	}
	return message
}

func (err *serviceError) Unwrap() []error {
	if err.cause == nil {
		return []error{err.kind}
	}
	return []error{err.kind, err.cause}
}
