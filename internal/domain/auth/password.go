package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrUnknownHashType is returned when a stored password hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// argon2idParams defines OWASP minimum parameters for Argon2id.
// Memory: 46 MiB, Iterations: 1, Parallelism: 1
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashPassword returns an Argon2id hash of the password in PHC format.
// Format: $argon2id$v=19$m=47104,t=1,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is required")
	}
	return argon2id.CreateHash(password, argon2idParams)
}

// IsPasswordHash reports whether storedHash looks like a PHC Argon2id hash.
func IsPasswordHash(storedHash string) bool {
	return strings.HasPrefix(storedHash, "$argon2id$")
}

// VerifyPassword checks a password against a stored Argon2id hash.
// Returns (true, nil) on match, (false, nil) on mismatch and
// (false, ErrUnknownHashType) when storedHash is not an Argon2id hash.
func VerifyPassword(password, storedHash string) (bool, error) {
	if !IsPasswordHash(storedHash) {
		return false, ErrUnknownHashType
	}
	return safeArgon2idCompare(password, storedHash)
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic recovery.
// The underlying argon2 library panics on hashes with invalid parameters
// (t=0 rounds, p=0 parallelism), so VerifyPassword must never call it bare.
func safeArgon2idCompare(password, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(password, storedHash)
}
