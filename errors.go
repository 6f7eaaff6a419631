package tours

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// Client facing messages
const (
	MsgMissingCredentials   = "Please provide email and password"
	MsgIncorrectCredentials = "Incorrect email or password"
	MsgNotLoggedIn          = "You are not logged in! Please log in to get access."
	MsgUserNoLongerExists   = "The user belonging to this token does no longer exist!"
	MsgPasswordChanged      = "User recently changed password! Please log in again."
	MsgForbidden            = "You do not have permission to perform this action."
	MsgNoUserWithEmail      = "There is no user with email address."
	MsgTokenSent            = "Token sent to email!"
	MsgEmailFailed          = "There was an error sending the email. Try again later!"
	MsgResetTokenInvalid    = "Token is invalid or has expired"
	MsgWrongCurrentPassword = "Your current password is wrong."
	MsgNotPasswordRoute     = "This route is not for password update. Please use /updateMyPassword."
	MsgUseSignup            = "This route not defined! Please use /signup instead."
	MsgInvalidToken         = "Invalid token. Please log in again!"
	MsgExpiredToken         = "Your token has expired! Please log in again"
	MsgGenericFailure       = "Something went very wrong!"
	MsgTourNotFound         = "Could not find the tour."
)

const (
	TextCodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	TextCodeEmailDelivery      = "EMAIL_DELIVERY_FAILED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeTokenMalformed     = "TOKEN_MALFORMED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeUnauthorized       = "UNAUTHORIZED"
)

const operationalKey = "operational"

var (
	// ErrNoEmptyString is returned when hashing an empty password
	ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
				WithCode(errors.CodeBadRequest).
				WithTextCode(TextCodeEmptyPassword)

	// ErrMismatchedHashAndPassword is returned when a password does not match its hash
	ErrMismatchedHashAndPassword = errors.New("password does not match hash", errors.CategoryAuth).
					WithCode(errors.CodeUnauthorized).
					WithTextCode(TextCodeInvalidCredentials)
)

// NewAppError creates an operational error: an expected failure whose
// message is safe to return to the client in every environment.
func NewAppError(message string, code int) *errors.Error {
	return errors.New(message, categoryForStatus(code)).
		WithCode(code).
		WithMetadata(map[string]any{operationalKey: true})
}

func categoryForStatus(code int) errors.Category {
	switch code {
	case http.StatusBadRequest:
		return errors.CategoryBadInput
	case http.StatusUnauthorized:
		return errors.CategoryAuth
	case http.StatusForbidden:
		return errors.CategoryAuthz
	case http.StatusNotFound:
		return errors.CategoryNotFound
	case http.StatusConflict:
		return errors.CategoryConflict
	case http.StatusUnprocessableEntity:
		return errors.CategoryValidation
	case http.StatusTooManyRequests:
		return errors.CategoryRateLimit
	}
	if code >= 400 && code < 500 {
		return errors.CategoryBadInput
	}
	return errors.CategoryInternal
}

// IsOperational reports whether err describes an expected failure.
// Internal, operation and external failures count only when explicitly
// marked through NewAppError. Anything that is not a rich error is a defect.
func IsOperational(err error) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}

	if marked, ok := richErr.Metadata[operationalKey].(bool); ok {
		return marked
	}

	switch richErr.Category {
	case errors.CategoryInternal, errors.CategoryOperation, errors.CategoryExternal:
		return false
	}
	return true
}

// StatusClass returns "fail" for client errors and "error" otherwise
func StatusClass(code int) string {
	if code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}

// StatusCode resolves the HTTP status for err
func StatusCode(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code != 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput, errors.CategoryConflict:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newTokenExpiredError(src error) *errors.Error {
	return errors.Wrap(src, errors.CategoryAuth, "token has expired").
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeTokenExpired)
}

func newTokenMalformedError(src error) *errors.Error {
	return errors.Wrap(src, errors.CategoryAuth, "token is malformed or has an invalid signature").
		WithCode(errors.CodeUnauthorized).
		WithTextCode(TextCodeTokenMalformed)
}
