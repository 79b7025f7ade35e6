package auth

import (
	"context"
)

// Backend is the hosted auth service (GoTrue-compatible).
// Implementations: supabase.AuthClient (prod), memory.AuthBackend (tests).
type Backend interface {
	// SignInWithPassword exchanges credentials for a session.
	// Returns ErrInvalidCredentials when rejected, ErrNetwork on transport failure.
	SignInWithPassword(ctx context.Context, email, password string) (*BackendSession, error)

	// SignOut revokes the current session, if any.
	SignOut(ctx context.Context) error

	// GetSession returns the current session, or nil when there is none.
	GetSession(ctx context.Context) (*BackendSession, error)
}

// SessionPersister is implemented by backends that can keep the next session
// in memory only. The gateway turns persistence off for sign-ins without
// "remember me" so a restart starts signed out.
type SessionPersister interface {
	PersistSession(persist bool)
}

// ProfileDirectory reads application profiles from the users table.
// Implementations: supabase.RestClient, postgres.Directory, sqlite.Directory, memory.Directory.
type ProfileDirectory interface {
	// GetProfile returns the profile with the given id.
	// Returns ErrProfileNotFound if there is no row.
	GetProfile(ctx context.Context, id string) (*User, error)
}
