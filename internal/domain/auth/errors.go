package auth

import "errors"

// Sentinel errors shared by the auth gateway and its adapters.
var (
	// ErrInvalidCredentials is returned when the auth service rejects the email/password pair.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrProfileNotFound is returned when the auth service knows the account
	// but the users table has no matching row.
	ErrProfileNotFound = errors.New("user profile not found")
	// ErrRateLimited is returned when the auth service throttles sign-in attempts.
	ErrRateLimited = errors.New("too many sign-in attempts")
	// ErrNetwork is returned on transport failures and timeouts.
	ErrNetwork = errors.New("backend unreachable")
	// ErrCacheCorrupt is returned when the cached profile cannot be decoded.
	ErrCacheCorrupt = errors.New("cached user profile is corrupt")
	// ErrSessionNotFound is returned when a backend session is unknown, expired or revoked.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAccountNotFound is returned when no account has the requested id.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUserExists is returned when an account with the same email already exists.
	ErrUserExists = errors.New("user already exists")
)
