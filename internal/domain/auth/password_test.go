package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "correct horse battery staple"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Errorf("HashPassword() = %q, want prefix $argon2id$", hash)
	}

	// Random salt: same input must not produce the same hash.
	hash2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() second call error = %v", err)
	}
	if hash == hash2 {
		t.Error("HashPassword() produced identical hashes - should use random salt")
	}
}

func TestHashPassword_Empty(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword(\"\") error = nil, want error")
	}
}

func TestVerifyPassword(t *testing.T) {
	password := "s3cret-pass"
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword() setup error = %v", err)
	}

	tests := []struct {
		name       string
		password   string
		storedHash string
		wantMatch  bool
		wantErr    error
	}{
		{
			name:       "correct password",
			password:   password,
			storedHash: hash,
			wantMatch:  true,
		},
		{
			name:       "wrong password",
			password:   "nope",
			storedHash: hash,
			wantMatch:  false,
		},
		{
			name:       "sha256 hashes are not accepted",
			password:   password,
			storedHash: "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			wantErr:    ErrUnknownHashType,
		},
		{
			name:       "empty stored hash",
			password:   password,
			storedHash: "",
			wantErr:    ErrUnknownHashType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, err := VerifyPassword(tt.password, tt.storedHash)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("VerifyPassword() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("VerifyPassword() unexpected error = %v", err)
			}
			if match != tt.wantMatch {
				t.Errorf("VerifyPassword() = %v, want %v", match, tt.wantMatch)
			}
		})
	}
}

func TestVerifyPassword_MalformedParamsDoNotPanic(t *testing.T) {
	// t=0 makes the argon2 library panic; VerifyPassword must turn it into an error.
	malformed := "$argon2id$v=19$m=47104,t=0,p=0$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"
	match, err := VerifyPassword("anything", malformed)
	if match {
		t.Error("VerifyPassword() = true for malformed hash")
	}
	if err == nil {
		t.Error("VerifyPassword() error = nil for malformed hash")
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in     string
		want   Role
		wantOK bool
	}{
		{"admin", RoleAdmin, true},
		{"ADMIN", RoleAdmin, true},
		{"shop_owner", RoleShopOwner, true},
		{"shop", RoleShopOwner, true},
		{" Shop ", RoleShopOwner, true},
		{"customer", RoleCustomer, true},
		{"CUSTOMER", RoleCustomer, true},
		{"mechanic", RoleUnknown, false},
		{"", RoleUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseRole(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestRole_IsValid(t *testing.T) {
	tests := []struct {
		role  Role
		valid bool
	}{
		{RoleAdmin, true},
		{RoleShopOwner, true},
		{RoleCustomer, true},
		{RoleUnknown, false},
		{Role("shop"), false},
		{Role("superuser"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			if got := tt.role.IsValid(); got != tt.valid {
				t.Errorf("Role(%q).IsValid() = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}
}
