package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fatflowers/paygate/pkg/response"
)

// Kind classifies a failure for callers. Business failures travel inside
// structured results with one of these kinds; only persistence failures
// escape as plain errors.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindGatewayDeclined    Kind = "gateway_declined"
	KindGatewayUnreachable Kind = "gateway_unreachable"
	KindTokenNotFound      Kind = "token_not_found"
	KindTokenExpired       Kind = "token_expired"
	KindNotFound           Kind = "not_found"
	KindUnauthorized       Kind = "unauthorized"
	// KindConflictAlreadyTerminal is swallowed by idempotency checks and
	// never reaches an API caller.
	KindConflictAlreadyTerminal Kind = "conflict_already_terminal"
	KindInternal                Kind = "internal"
)

// Code maps the kind to the API envelope code.
func (k Kind) Code() response.APIResponseCode {
	switch k {
	case KindValidation, KindTokenExpired:
		return response.APIResponseCodeBadRequest
	case KindGatewayDeclined:
		return response.APIResponseCodePaymentFailed
	case KindGatewayUnreachable:
		return response.APIResponseCodeGatewayUnavailable
	case KindTokenNotFound, KindNotFound:
		return response.APIResponseCodeNotFound
	case KindUnauthorized:
		return response.APIResponseCodeUnauthorized
	}
	return response.APIResponseCodeError
}

// HTTPStatus is used by endpoints whose caller relies on the status line
// (webhook senders retry on anything but 2xx).
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindTokenExpired:
		return http.StatusBadRequest
	case KindTokenNotFound, KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindGatewayDeclined:
		return http.StatusPaymentRequired
	case KindGatewayUnreachable:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Is lets errors.Is(err, apperr.New(kind, "")) match on kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}
