package membership

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeApplicationNotFound   = "APPLICATION_NOT_FOUND"
	TextCodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	TextCodeValidationFailed      = "VALIDATION_FAILED"
	TextCodeInvalidStatus         = "INVALID_MEMBERSHIP_STATUS"
	TextCodePasswordTooShort      = "PASSWORD_TOO_SHORT"
	TextCodeInvalidToken          = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeDeliveryFailed        = "NOTIFICATION_DELIVERY_FAILED"
	TextCodeDuplicateAccount      = "DUPLICATE_ACCOUNT"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeSessionMissing        = "SESSION_MISSING"
	TextCodeSessionExpired        = "SESSION_EXPIRED"
	TextCodeSessionInvalid        = "SESSION_INVALID"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeHookRejected          = "TRANSITION_REJECTED"
	TextCodeStoreMisconfiguration = "STORE_MISCONFIGURED"
)

// ErrApplicationNotFound is returned when an application id does not resolve
var ErrApplicationNotFound = goerrors.New("membership application not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeApplicationNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAccountNotFound is returned when no account matches an id or email
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrInvalidStatus is returned for statuses outside pending, approved, blocked
var ErrInvalidStatus = goerrors.New("invalid membership status", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidStatus).
	WithCode(goerrors.CodeBadRequest)

// ErrPasswordTooShort is returned when a new password is under MinPasswordLength
var ErrPasswordTooShort = goerrors.New("password must be at least 6 characters", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooShort).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidOrExpiredToken covers missing, mismatched and expired tokens
// with one message so clients cannot tell them apart.
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired token", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrDuplicateAccount is returned by Accounts.Create on a unique violation
var ErrDuplicateAccount = goerrors.New("account already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateAccount).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials is returned by Login for every failure mode
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionMissing is returned when a request carries no bearer token
var ErrSessionMissing = goerrors.New("missing or malformed session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned for expired session tokens
var ErrSessionExpired = goerrors.New("session token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionInvalid is returned for tokens that fail signature or claim checks
var ErrSessionInvalid = goerrors.New("invalid session token", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the session role is not allowed
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// IsTextCode reports whether err is a go-errors error carrying code.
func IsTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsNotFound reports whether err is an application or account not found error.
func IsNotFound(err error) bool {
	return IsTextCode(err, TextCodeApplicationNotFound) ||
		IsTextCode(err, TextCodeAccountNotFound)
}

// IsDuplicateAccount reports whether err signals a unique violation on accounts.
func IsDuplicateAccount(err error) bool {
	return IsTextCode(err, TextCodeDuplicateAccount)
}
