package ratelimit

import (
	"strings"
	"testing"
)

func TestFormatKey(t *testing.T) {
	if got := FormatKey(KeyTypeIP, "10.0.0.1"); got != "ratelimit:ip:10.0.0.1" {
		t.Errorf("FormatKey() = %q", got)
	}
}

func TestEmailKey(t *testing.T) {
	a := EmailKey("Owner@Example.com")
	b := EmailKey("  owner@example.com ")
	if a != b {
		t.Errorf("EmailKey() not case/space insensitive: %q != %q", a, b)
	}
	if !strings.HasPrefix(a, "ratelimit:email:") {
		t.Errorf("EmailKey() = %q, want ratelimit:email: prefix", a)
	}
	if strings.Contains(a, "example") {
		t.Errorf("EmailKey() leaks the address: %q", a)
	}
	if a == EmailKey("other@example.com") {
		t.Error("EmailKey() collides for different addresses")
	}
}
