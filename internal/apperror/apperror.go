package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error so the HTTP layer can choose a status
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthenticated
	KindProfileNotFound
	KindAccountInactive
	KindMissingTenantContext
	KindForbidden
	KindNotFound
	KindPolicyDisabled
	KindInvalidInput
	KindUpstreamFailure
)

// Stable machine codes returned to clients
const (
	CodeTokenMissing          = "AUTH_TOKEN_MISSING"
	CodeTokenInvalid          = "AUTH_TOKEN_INVALID"
	CodeProfileNotFound       = "PROFILE_NOT_FOUND"
	CodeAccountInactive       = "ACCOUNT_INACTIVE"
	CodeClinicContextRequired = "CLINIC_CONTEXT_REQUIRED"
	CodeRoleNotAllowed        = "ROLE_NOT_ALLOWED"
	CodeTenantMismatch        = "TENANT_MISMATCH"
	CodeNotFound              = "NOT_FOUND"
	CodeEmergencyDisabled     = "EMERGENCY_EXCEPTION_DISABLED"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeUpstreamFailure       = "UPSTREAM_FAILURE"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is the typed error carried from services to handlers
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to an HTTP status code
func (e *Error) Status() int {
	return StatusOf(e.Kind)
}

// StatusOf maps a kind to an HTTP status code
func StatusOf(k Kind) int {
	switch k {
	case KindUnauthenticated, KindProfileNotFound:
		return http.StatusUnauthorized
	case KindAccountInactive, KindMissingTenantContext, KindForbidden, KindPolicyDisabled:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Unauthenticated(code, message string) *Error {
	return New(KindUnauthenticated, code, message)
}

func ProfileNotFound() *Error {
	return New(KindProfileNotFound, CodeProfileNotFound, "user profile not found")
}

func AccountInactive(message string) *Error {
	return New(KindAccountInactive, CodeAccountInactive, message)
}

func MissingTenantContext() *Error {
	return New(KindMissingTenantContext, CodeClinicContextRequired, "a clinic context is required for this operation")
}

func RoleNotAllowed(message string) *Error {
	return New(KindForbidden, CodeRoleNotAllowed, message)
}

func TenantMismatch() *Error {
	return New(KindForbidden, CodeTenantMismatch, "resource belongs to another clinic")
}

func NotFound(message string) *Error {
	return New(KindNotFound, CodeNotFound, message)
}

func PolicyDisabled(message string) *Error {
	return New(KindPolicyDisabled, CodeEmergencyDisabled, message)
}

func InvalidInput(message string) *Error {
	return New(KindInvalidInput, CodeInvalidInput, message)
}

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstreamFailure, CodeUpstreamFailure, message, err)
}

// As extracts an *Error from err's chain
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or INTERNAL_ERROR for untyped errors
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}
