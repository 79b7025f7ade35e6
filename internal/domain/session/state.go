// Package session holds the in-process identity state of the running client.
//
// The Store is the single writable copy of who is signed in. It is created
// explicitly at startup, passed to the components that need it, and torn
// down with Close when the process stops.
package session

import (
	"github.com/yazcar/yazcarfax/internal/domain/auth"
)

// State is an immutable view of the session at one point in time.
type State struct {
	// User is the signed-in profile, nil when signed out.
	User *auth.User
	// Token is the bearer token issued by the auth service.
	Token string
	// Session is the auth service's session object, opaque outside the backend adapter.
	Session *auth.BackendSession
}

// IsAuthenticated reports whether a user is signed in.
// It is derived from User so it can never disagree with it.
func (s State) IsAuthenticated() bool {
	return s.User != nil
}

// Role returns the signed-in user's role, or RoleUnknown when signed out.
func (s State) Role() auth.Role {
	if s.User == nil {
		return auth.RoleUnknown
	}
	return s.User.Role
}

// UserID returns the signed-in user's id, or "" when signed out.
func (s State) UserID() string {
	if s.User == nil {
		return ""
	}
	return s.User.ID
}

// equal compares two states by identity fields.
func (s State) equal(o State) bool {
	if s.Token != o.Token {
		return false
	}
	if (s.User == nil) != (o.User == nil) {
		return false
	}
	if s.User != nil && *s.User != *o.User {
		return false
	}
	if (s.Session == nil) != (o.Session == nil) {
		return false
	}
	return s.Session == nil || *s.Session == *o.Session
}

func (s State) clone() State {
	out := State{Token: s.Token}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Session != nil {
		sess := *s.Session
		out.Session = &sess
	}
	return out
}
