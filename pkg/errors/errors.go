package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeSignature         Code = "SIGNATURE_INVALID"
	CodeReferenceNotFound Code = "REFERENCE_NOT_FOUND"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInsufficientStock Code = "INSUFFICIENT_STOCK"
	CodeStateConflict     Code = "STATE_CONFLICT"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered on the wire. ExposeMessage lets
// the caller's message replace PublicMessage.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	ExposeMessage  bool
}

const (
	retryable = 1 << iota
	detailsAllowed
	exposeMessage
)

func meta(status int, public string, flags int) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&detailsAllowed != 0,
		ExposeMessage:  flags&exposeMessage != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: meta(http.StatusBadRequest, "validation failed", detailsAllowed|exposeMessage),
	CodeSignature: meta(http.StatusBadRequest, "invalid signature", exposeMessage),
	// A referenced entity inside the request body is missing; reported against the offending field.
	CodeReferenceNotFound: meta(http.StatusBadRequest, "referenced resource not found", detailsAllowed|exposeMessage),
	CodeUnauthorized:      meta(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeForbidden:         meta(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:          meta(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:          meta(http.StatusConflict, "conflict detected", exposeMessage),
	CodeInsufficientStock: meta(http.StatusConflict, "insufficient stock", detailsAllowed|exposeMessage),
	CodeStateConflict:     meta(http.StatusUnprocessableEntity, "state transition disallowed", detailsAllowed|exposeMessage),
	CodeIdempotency:       meta(http.StatusConflict, "idempotency key reused", detailsAllowed|exposeMessage),
	CodeRateLimit:         meta(http.StatusTooManyRequests, "rate limit exceeded", exposeMessage),
	CodeInternal:          meta(http.StatusInternalServerError, "internal server error", retryable|exposeMessage),
	CodeDependency:        meta(http.StatusServiceUnavailable, "dependency unavailable", retryable|detailsAllowed),
}

func MetadataFor(code Code) Metadata {
	if m, ok := metadataByCode[code]; ok {
		return m
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

// Is matches another *Error by code, so errors.Is(err, New(CodeNotFound, ""))
// holds for any not-found error in the chain.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.code == t.code
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries a typed error with the supplied code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
