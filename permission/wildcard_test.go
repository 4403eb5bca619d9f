package permission

import (
	"errors"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		candidate string
		pattern   string
		want      bool
	}{
		{"user:read", "user:read", true},
		{"user:read", "user:write", false},
		{"admin:x", "admin:*", true},
		{"admin:users:delete", "admin:*", true},
		{"admin", "admin:*", false},
		{"user:x", "admin:*", false},
		{"anything:at:all", "*", true},
		{"user:read", "*:read", true},
		{"user:write", "*:read", false},
		{"user:x:read", "*:read", false},
		{"post:1:edit", "post:*:edit", true},
		{"post:1:2:edit", "post:*:edit", false},
		{"post:1:edit", "post:*:*", true},
		{"User:Read", "user:read", false},
		{"café:lire", "café:*", true},
		{"user", "user", true},
		{"user:read", "user", false},
	}

	for _, tc := range tests {
		t.Run(tc.candidate+"~"+tc.pattern, func(t *testing.T) {
			if got := Match(tc.candidate, tc.pattern); got != tc.want {
				t.Fatalf("Match(%q, %q) = %v, want %v", tc.candidate, tc.pattern, got, tc.want)
			}
		})
	}
}

func TestIsPattern(t *testing.T) {
	for name, want := range map[string]bool{
		"*":          true,
		"admin:*":    true,
		"*:read":     true,
		"a:*:b":      true,
		"user:read":  false,
		"user:re*ad": false,
	} {
		if got := IsPattern(name); got != want {
			t.Fatalf("IsPattern(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestValidateName(t *testing.T) {
	valid := []string{"user", "user:read", "org:team:member:invite"}
	for _, name := range valid {
		if err := ValidateName(name); err != nil {
			t.Fatalf("ValidateName(%q) = %v", name, err)
		}
	}

	invalid := []string{"", ":", "user:", ":read", "a::b", "user read", "user:*", "*", "tab\tname"}
	for _, name := range invalid {
		if err := ValidateName(name); !errors.Is(err, ErrMalformedPermission) {
			t.Fatalf("ValidateName(%q) = %v, want ErrMalformedPermission", name, err)
		}
	}

	if err := ValidatePattern("admin:*"); err != nil {
		t.Fatalf("ValidatePattern(admin:*) = %v", err)
	}
}

func BenchmarkMatchTrailingWildcard(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = Match("admin:users:delete", "admin:*")
	}
}
