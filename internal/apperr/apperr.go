// Package apperr defines the error kinds shared by the price services and the API layer.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The API layer maps kinds to HTTP status codes.
type Kind string

const (
	KindInvalidParameter Kind = "INVALID_PARAMETER"
	KindNoData           Kind = "NO_DATA"
	KindInsufficientData Kind = "INSUFFICIENT_DATA"
	KindUpstream         Kind = "UPSTREAM_ERROR"
	KindUnsupportedUnit  Kind = "UNSUPPORTED_UNIT"
	KindRateUnavailable  Kind = "RATE_UNAVAILABLE"
)

// Error carries a kind, a human readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	// Status is the upstream HTTP status, if the failure came from an HTTP response.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidParameter = &Error{Kind: KindInvalidParameter, Message: "invalid parameter"}
	ErrNoData           = &Error{Kind: KindNoData, Message: "no data available"}
	ErrInsufficientData = &Error{Kind: KindInsufficientData, Message: "insufficient data"}
	ErrUpstream         = &Error{Kind: KindUpstream, Message: "upstream error"}
	ErrUnsupportedUnit  = &Error{Kind: KindUnsupportedUnit, Message: "unsupported unit"}
	ErrRateUnavailable  = &Error{Kind: KindRateUnavailable, Message: "exchange rate unavailable"}
)

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Upstream builds an upstream failure that remembers the HTTP status.
func Upstream(status int, format string, args ...any) error {
	return &Error{Kind: KindUpstream, Status: status, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
