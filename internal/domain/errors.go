package domain

import "errors"

// Sentinel errors surfaced by the signup flow. Handlers map these to
// machine-readable codes; raw error text never reaches a caller.
var (
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidEmail       = errors.New("email failed validation")
	ErrInvalidPassword    = errors.New("password does not meet requirements")
	ErrDomainTaken        = errors.New("domain already verified by another account")
	ErrClaimPending       = errors.New("domain has an active pending claim")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyVerified    = errors.New("signup already verified")
	ErrTokenExpired       = errors.New("verification token expired")
	ErrTokenInvalid       = errors.New("verification token invalid")
	ErrRateLimited        = errors.New("resend cooldown in effect")
	ErrMaxResends         = errors.New("resend limit reached")
	ErrIllegalTransition  = errors.New("illegal state transition")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Machine-readable reason codes returned at the API boundary.
const (
	CodeEmailRequired      = "EMAIL_REQUIRED"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeInvalidPassword    = "INVALID_PASSWORD"
	CodeDomainTaken        = "DOMAIN_TAKEN"
	CodePending            = "PENDING"
	CodePendingIDRequired  = "PENDING_ID_REQUIRED"
	CodeNotFound           = "NOT_FOUND"
	CodeAlreadyVerified    = "ALREADY_VERIFIED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeMaxResends         = "MAX_RESENDS_REACHED"
	CodeInternalError      = "INTERNAL_ERROR"
)
