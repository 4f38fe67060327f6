package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned in response bodies. Stable contract, do not rename.
const (
	CodeUnauthenticated       = "unauthenticated"
	CodeForbidden             = "forbidden"
	CodeNotFound              = "not_found"
	CodeValidation            = "validation_error"
	CodeUpstreamUnavailable   = "upstream_unavailable"
	CodePreconditionFailed    = "precondition_failed"
	CodeInternalInconsistency = "internal_inconsistency"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Unauthenticated(err error) *Error {
	return New(http.StatusUnauthorized, CodeUnauthenticated, err)
}

func Forbidden(err error) *Error {
	return New(http.StatusForbidden, CodeForbidden, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Validation(err error) *Error {
	return New(http.StatusUnprocessableEntity, CodeValidation, err)
}

func UpstreamUnavailable(err error) *Error {
	return New(http.StatusBadGateway, CodeUpstreamUnavailable, err)
}

func PreconditionFailed(err error) *Error {
	return New(http.StatusPreconditionFailed, CodePreconditionFailed, err)
}

// InternalInconsistency marks a multi-step write that partially completed,
// e.g. a remote resource created but the local link not recorded. Surfaced
// with its own code so callers can tell it apart from "nothing happened".
func InternalInconsistency(code string, err error) *Error {
	if code == "" {
		code = CodeInternalInconsistency
	}
	return New(http.StatusInternalServerError, code, err)
}

// From extracts an *Error if err carries one.
func From(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
