// Package auth contains the domain types and logic for YazCar authentication.
package auth

import (
	"strings"
	"time"
)

// Role represents the application role stored on a user profile.
type Role string

const (
	// RoleAdmin manages users, shops and service categories.
	RoleAdmin Role = "admin"
	// RoleShopOwner records service visits for the cars of a shop.
	RoleShopOwner Role = "shop_owner"
	// RoleCustomer reads the service history of owned cars.
	RoleCustomer Role = "customer"
	// RoleUnknown is any value outside the three known roles.
	RoleUnknown Role = ""
)

// ParseRole canonicalizes a stored role value.
// Matching is case-insensitive and "shop" is accepted as a legacy alias
// of "shop_owner". Unrecognized values return RoleUnknown and false.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, true
	case "shop_owner", "shop":
		return RoleShopOwner, true
	case "customer":
		return RoleCustomer, true
	default:
		return RoleUnknown, false
	}
}

// IsValid returns true if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleShopOwner, RoleCustomer:
		return true
	default:
		return false
	}
}

// String returns the canonical role name, or "unknown".
func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// UnmarshalText canonicalizes the role at the decoding boundary so the rest
// of the code base only ever compares against the Role constants.
// Unknown values decode to RoleUnknown rather than failing the whole record.
func (r *Role) UnmarshalText(text []byte) error {
	*r, _ = ParseRole(string(text))
	return nil
}

// MarshalText writes the canonical role name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r), nil
}

// User is the application profile stored in the users table.
type User struct {
	ID        string    `json:"id" yaml:"id"`
	Email     string    `json:"email" yaml:"email"`
	Name      string    `json:"name" yaml:"name"`
	Phone     string    `json:"phone" yaml:"phone"`
	Role      Role      `json:"role" yaml:"role"`
	ShopID    string    `json:"shop_id,omitempty" yaml:"shop_id,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Valid reports whether the profile carries the fields every consumer relies on.
func (u *User) Valid() bool {
	return u != nil && u.ID != ""
}

// BackendUser is the identity issued by the hosted auth service.
// It only identifies the account; role and profile live in the users table.
type BackendUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// BackendSession is the auth service's session object.
// It is opaque to everything except the backend adapter, which uses it for
// refresh and sign-out.
type BackendSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         BackendUser `json:"user"`
}

// IsExpired returns true if the access token is past its expiry.
// A zero ExpiresAt never expires.
func (s *BackendSession) IsExpired(now time.Time) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(s.ExpiresAt)
}
