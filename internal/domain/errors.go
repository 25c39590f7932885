package domain

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidCredentials hides whether the email, password, or account state failed.
	// The reason is to prevent account-enumeration side channels on the login paths.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated signals a missing, malformed, or unverifiable access token.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrUnauthorized signals a verified caller whose role is outside a route's allow-list.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionRevoked is returned when a refresh token's identifier has been removed
	// from the account's active-session set, including by a competing rotation.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrSessionExpired is returned when a session passed its stored deadline.
	ErrSessionExpired = errors.New("session expired")

	// ErrTokenExpired covers short-lived tokens and one-time artifacts past their deadline.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid covers signature failures and reset/verification tokens with no match.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrNoOTPIssued is returned when verification is attempted with no code outstanding,
	// including the replay of an already-consumed code.
	ErrNoOTPIssued = errors.New("no one-time code issued")

	// ErrOTPMismatch is returned when an outstanding, unexpired code does not match.
	ErrOTPMismatch = errors.New("one-time code mismatch")

	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("rate limited")

	// ErrDeliveryFailure marks a notification-channel fault. It is logged, never
	// surfaced as a request failure: the persisted artifact stays valid regardless.
	ErrDeliveryFailure = errors.New("delivery failure")
)
