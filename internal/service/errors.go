package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind clasifica los errores de dominio que se reportan al cliente.
type ErrorKind string

const (
	KindInvalidInput  ErrorKind = "invalid_input"
	KindConflict      ErrorKind = "conflict"
	KindNotFound      ErrorKind = "not_found"
	KindBadCredential ErrorKind = "bad_credential"
	KindInvalidOTP    ErrorKind = "invalid_otp"
	KindUnauthorized  ErrorKind = "unauthorized"
	KindSamePassword  ErrorKind = "same_password"
	KindRateLimited   ErrorKind = "rate_limited"
	KindInternal      ErrorKind = "internal"
)

// Error es un error de dominio: Kind decide el transporte, Message es lo que ve el cliente.
type Error struct {
	Kind    ErrorKind
	Field   string
	Message string
	// RetryAfter solo se usa con KindRateLimited.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s(%s): %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsError extrae un *Error; cualquier otro error se considera interno.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf devuelve la clase del error, KindInternal para errores no de dominio.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return KindInternal
}

var (
	errInternal     = &Error{Kind: KindInternal, Message: "Something went wrong on our side."}
	errUnauthorized = &Error{Kind: KindUnauthorized, Message: "You are not authorized."}
)

func rateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: "Too many attempts, try again later.", RetryAfter: retryAfter}
}

func invalidInput(field, message string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: message}
}

func conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

func userNotFound(id int64) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("The user with id '%d' does not exists", id)}
}

var (
	errInvalidUsername  = invalidInput("username", "The username is invalid.")
	errInvalidEmail     = invalidInput("email", "The email address is invalid.")
	errInvalidFirstName = invalidInput("firstName", "The first name is invalid.")
	errInvalidLastName  = invalidInput("lastName", "The last name is invalid.")
	errInvalidPassword  = invalidInput("password", "The password must contain at least one letter, one number and one special character.")
	errUsernameInUse    = conflict("username", "The username is already in use.")
	errEmailInUse       = conflict("email", "The email is already in use.")
	errUnknownAccount   = &Error{Kind: KindNotFound, Message: "Invalid username or email address."}
	errBadCredential    = &Error{Kind: KindBadCredential, Message: "Invalid account password."}
	errInvalidOTP       = &Error{Kind: KindInvalidOTP, Message: "Invalid verification token."}
	errSamePassword     = &Error{Kind: KindSamePassword, Field: "password", Message: "You can not set your new password as old password."}
)
