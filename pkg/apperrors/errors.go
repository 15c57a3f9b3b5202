// Package apperrors defines the error taxonomy shared by the control plane.
//
// Every failure that crosses a package boundary wraps one of the sentinel
// errors below so handlers can map it to a status code with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthenticated is returned when there is no valid session
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrInvalidCredentials is returned when login fails for any reason other than an inactive account
	ErrInvalidCredentials = errors.New("invalid email/username or password")

	// ErrAccountInactive is returned when the person exists but is disabled
	ErrAccountInactive = errors.New("account is inactive")

	// ErrForbidden is returned when the caller is authenticated but lacks a role or permission
	ErrForbidden = errors.New("access denied")

	// ErrNotFound is returned for unknown users, companies, roles and permissions
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned for duplicate emails, usernames, slugs and role names
	ErrConflict = errors.New("already exists")

	// ErrTenantUnavailable is returned when a company has no provisioned database
	ErrTenantUnavailable = errors.New("company database not found")

	// ErrProvisioningFailure is returned when a tenant database could not be created or seeded
	ErrProvisioningFailure = errors.New("tenant provisioning failed")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")
)

// Error carries a user-facing message on top of a sentinel kind.
type Error struct {
	Kind    error
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind with a message.
func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a kind.
func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Conflict names the colliding field.
func Conflict(field, message string) *Error {
	return &Error{Kind: ErrConflict, Message: message, Field: field}
}

// Validation names the offending field.
func Validation(field, message string) *Error {
	return &Error{Kind: ErrValidation, Message: message, Field: field}
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrAccountInactive):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrTenantUnavailable):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text that is safe to show to a client.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		if appErr.Message != "" {
			return appErr.Message
		}
		return appErr.Kind.Error()
	}
	for _, kind := range []error{
		ErrUnauthenticated, ErrInvalidCredentials, ErrAccountInactive, ErrForbidden,
		ErrNotFound, ErrConflict, ErrTenantUnavailable, ErrValidation,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal server error"
}

// FieldOf returns the field an error refers to, if any.
func FieldOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
