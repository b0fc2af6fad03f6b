package authkit

import (
	"strings"
	"testing"
	"time"
)

func tokenTestUser() *User {
	return &User{
		ID:           "user-1",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$fakehashfakehashfakehash",
		Active:       false,
	}
}

func TestActivationTokenRoundTrip(t *testing.T) {
	gen := NewActivationTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()

	token := gen.Issue(user)
	if token == "" {
		t.Fatal("Issue returned empty token")
	}
	if !strings.Contains(token, "-") {
		t.Fatalf("token %q has no timestamp separator", token)
	}
	if !gen.Check(user, token) {
		t.Error("freshly issued token should validate")
	}
}

func TestActivationTokenSingleUse(t *testing.T) {
	gen := NewActivationTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()

	token := gen.Issue(user)
	if !gen.Check(user, token) {
		t.Fatal("token should validate before activation")
	}

	// Activation flips the flag the token was bound to
	user.Active = true
	if gen.Check(user, token) {
		t.Error("token should stop validating once the account is active")
	}
}

func TestActivationTokenExpiry(t *testing.T) {
	gen := NewActivationTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()

	issued := time.Now()
	gen.now = func() time.Time { return issued }
	token := gen.Issue(user)

	tests := []struct {
		name  string
		at    time.Time
		valid bool
	}{
		{"immediately", issued, true},
		{"just inside the window", issued.Add(24*time.Hour - time.Minute), true},
		{"just past the window", issued.Add(24*time.Hour + time.Minute), false},
		{"days later", issued.Add(72 * time.Hour), false},
		{"before issue (clock skew)", issued.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen.now = func() time.Time { return tt.at }
			if got := gen.Check(user, token); got != tt.valid {
				t.Errorf("Check at %s = %v, want %v", tt.name, got, tt.valid)
			}
		})
	}
}

func TestTokenRejectsMalformedInput(t *testing.T) {
	gen := NewActivationTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()
	valid := gen.Issue(user)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no separator", strings.ReplaceAll(valid, "-", "")},
		{"garbage timestamp", "!!!!-" + strings.SplitN(valid, "-", 2)[1]},
		{"truncated signature", valid[:len(valid)-10]},
		{"flipped signature byte", valid[:len(valid)-1] + "x"},
		{"negative timestamp", "-1-abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if gen.Check(user, tt.token) {
				t.Errorf("Check(%q) = true, want false", tt.token)
			}
		})
	}

	if gen.Check(nil, valid) {
		t.Error("Check with nil user should be false")
	}
}

func TestTokenBoundToUser(t *testing.T) {
	gen := NewActivationTokenGenerator("test-secret", 24*time.Hour)
	alice := tokenTestUser()
	bob := tokenTestUser()
	bob.ID = "user-2"

	token := gen.Issue(alice)
	if gen.Check(bob, token) {
		t.Error("alice's token should not validate for bob")
	}
}

func TestTokenBoundToSecret(t *testing.T) {
	gen := NewActivationTokenGenerator("secret-a", 24*time.Hour)
	other := NewActivationTokenGenerator("secret-b", 24*time.Hour)
	user := tokenTestUser()

	token := gen.Issue(user)
	if other.Check(user, token) {
		t.Error("token signed by one secret should not validate under another")
	}
}

func TestTokenFlavorsAreDistinct(t *testing.T) {
	activation := NewActivationTokenGenerator("test-secret", 24*time.Hour)
	reset := NewPasswordResetTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()

	if reset.Check(user, activation.Issue(user)) {
		t.Error("an activation token should never pass as a reset token")
	}
	if activation.Check(user, reset.Issue(user)) {
		t.Error("a reset token should never pass as an activation token")
	}
}

func TestResetTokenInvalidatedByPasswordChange(t *testing.T) {
	gen := NewPasswordResetTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()

	token := gen.Issue(user)
	if !gen.Check(user, token) {
		t.Fatal("token should validate before the password changes")
	}

	user.PasswordHash = "$2a$10$anotherhashanotherhash"
	if gen.Check(user, token) {
		t.Error("token should stop validating after a password change")
	}
}

func TestResetTokenInvalidatedByLogin(t *testing.T) {
	gen := NewPasswordResetTokenGenerator("test-secret", 24*time.Hour)
	user := tokenTestUser()

	token := gen.Issue(user)

	login := time.Now()
	user.LastLogin = &login
	if gen.Check(user, token) {
		t.Error("token should stop validating after the user logs in")
	}
}
