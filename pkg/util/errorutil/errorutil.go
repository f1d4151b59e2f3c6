package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes of the enrollment pipeline.
const (
	CodeAuthorizationDenied = "AUTHORIZATION_DENIED"
	CodeExchangeFailed      = "EXCHANGE_FAILED"
	CodeClaimsDecode        = "CLAIMS_DECODE_ERROR"
	CodeProfileFetch        = "PROFILE_FETCH_ERROR"
	CodeSinkDelivery        = "SINK_DELIVERY_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewAuthorizationDenied reports a callback that carried no authorization code.
// It is the only expected, user-caused failure of the flow.
func NewAuthorizationDenied(reason string) error {
	var details map[string]any
	if reason != "" {
		details = map[string]any{"reason": reason}
	}
	return NewDomainError(CodeAuthorizationDenied, "authorization was not granted", http.StatusForbidden, details)
}

func NewExchangeFailed(err error) error {
	return &DomainError{
		Code:       CodeExchangeFailed,
		Message:    "authorization code exchange failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewClaimsDecodeError(err error) error {
	return &DomainError{
		Code:       CodeClaimsDecode,
		Message:    "access token claims could not be decoded",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func NewProfileFetchError(err error) error {
	return &DomainError{
		Code:       CodeProfileFetch,
		Message:    "profile query failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewSinkDeliveryError reports that at least one enabled sink failed. details maps
// each sink name to its outcome so partial persistence stays visible.
func NewSinkDeliveryError(err error, details map[string]any) error {
	return &DomainError{
		Code:       CodeSinkDelivery,
		Message:    "enrollment delivery failed",
		HTTPStatus: http.StatusInternalServerError,
		Details:    details,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := CodeInternal
		if fiberErr.Code == fiber.StatusNotFound {
			code = CodeNotFound
		}
		return &DomainError{Code: code, Message: fiberErr.Message, HTTPStatus: fiberErr.Code}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
