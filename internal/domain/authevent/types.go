// Package authevent contains domain types for the sign-in event log.
package authevent

import (
	"strings"
	"time"
)

// Type constants for auth events.
const (
	TypeSignIn         = "access.sign_in"
	TypeSignInFailed   = "access.sign_in_failed"
	TypeSignInThrottle = "access.sign_in_throttled"
	TypeSignOut        = "access.sign_out"
	TypeTokenRefresh   = "access.token_refresh"
	TypeAccountCreate  = "user.create"
)

// Event is one auditable auth action handled by the dev backend.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `json:"timestamp"`
	// Type categorizes the event (access.*, user.*).
	Type string `json:"type"`
	// RequestID for correlation with the HTTP log.
	RequestID string `json:"request_id,omitempty"`

	UserID    string `json:"user_id,omitempty"`
	Email     string `json:"email,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	SourceIP  string `json:"source_ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// MaskEmail keeps the first character of the local part and the domain.
// "owner@example.com" becomes "o****@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "****"
	}
	return email[:1] + "****" + email[at:]
}
