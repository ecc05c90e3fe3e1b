package apperror

import "net/http"

// Kind classifies a service-level failure. Services return *Error values;
// the HTTP layer is the only place they are converted to status codes.
type Kind int

const (
	// KindNotFound means the entity does not exist or is soft-deleted
	KindNotFound Kind = iota
	// KindValidation means the input fails schema, uniqueness, or a state precondition
	KindValidation
	// KindAuth means the credentials are missing or invalid
	KindAuth
	// KindAccessDenied means the principal is valid but not allowed (cross-tenant, inactive)
	KindAccessDenied
	// KindBusinessLogic means the requested state transition is forbidden
	KindBusinessLogic
	// KindExternal means a dependency (DB, HTTP target) is unavailable
	KindExternal
)

// Error is the tagged error value services raise
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to an HTTP status code
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindAccessDenied:
		return http.StatusForbidden
	case KindBusinessLogic:
		return http.StatusConflict
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NotFound builds a NotFound error
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Validation builds a Validation error
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Auth builds an Auth error
func Auth(message string) *Error {
	return &Error{Kind: KindAuth, Message: message}
}

// AccessDenied builds an AccessDenied error
func AccessDenied(message string) *Error {
	return &Error{Kind: KindAccessDenied, Message: message}
}

// BusinessLogic builds a BusinessLogic error
func BusinessLogic(message string) *Error {
	return &Error{Kind: KindBusinessLogic, Message: message}
}

// External wraps a dependency failure
func External(message string, err error) *Error {
	return &Error{Kind: KindExternal, Message: message, Err: err}
}
