package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation        Code = "VALIDATION_ERROR"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConflict          Code = "CONFLICT"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeEmptyBasket       Code = "EMPTY_BASKET"
	CodeContactNotFound   Code = "CONTACT_NOT_FOUND"
	CodeTokenInvalid      Code = "TOKEN_INVALID"
	CodeFetch             Code = "FETCH_ERROR"
	CodeIdempotency       Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit         Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal          Code = "INTERNAL_ERROR"
	CodeDependency        Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// ClientFacing reports whether the typed message may replace PublicMessage.
	ClientFacing bool
}

func public(status int, message string) Metadata {
	return Metadata{HTTPStatus: status, PublicMessage: message, ClientFacing: true}
}

func (m Metadata) detailed() Metadata {
	m.DetailsAllowed = true
	return m
}

func (m Metadata) retryable() Metadata {
	m.Retryable = true
	return m
}

// Unauthenticated and wrong-role requests both answer 403; the marketplace
// clients never distinguish the two by status. Domain rejections stay 400.
var metadataByCode = map[Code]Metadata{
	CodeValidation:        public(http.StatusBadRequest, "validation failed").detailed(),
	CodeUnauthorized:      public(http.StatusForbidden, "authentication required"),
	CodeForbidden:         public(http.StatusForbidden, "access denied"),
	CodeNotFound:          public(http.StatusBadRequest, "resource not found"),
	CodeConflict:          public(http.StatusBadRequest, "conflict detected"),
	CodeInvalidTransition: public(http.StatusBadRequest, "order status transition not allowed").detailed(),
	CodeEmptyBasket:       public(http.StatusBadRequest, "basket is empty"),
	CodeContactNotFound:   public(http.StatusBadRequest, "contact not found"),
	CodeTokenInvalid:      public(http.StatusBadRequest, "token invalid or expired"),
	CodeFetch:             public(http.StatusBadRequest, "price list could not be fetched").detailed().retryable(),
	CodeIdempotency:       public(http.StatusConflict, "idempotency key reused").detailed(),
	CodeRateLimit:         public(http.StatusTooManyRequests, "rate limit exceeded"),
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
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
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given typed code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
