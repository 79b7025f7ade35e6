// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the request-scoped logger.
type LoggerKey struct{}

// RequestIDKey is the context key type for the request id.
type RequestIDKey struct{}

// ClientIPKey is the context key type for the caller's address.
type ClientIPKey struct{}
