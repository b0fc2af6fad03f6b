package authkit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// TokenGenerator derives time-limited, single-use verification tokens from a
// user's identity and mutable state. Nothing is persisted: a token is an HMAC
// over the user id, a binding field and an issue timestamp. Because the
// binding field is chosen so that the consuming action mutates it (activation
// flips the active flag, a reset changes the password hash), every token
// invalidates itself the moment it is used. Expiry falls out of the embedded
// timestamp, so no revocation table or cleanup job is needed.
//
// Token format: "<issueUnixBase36>-<hex(hmac)[:40]>".
type TokenGenerator struct {
	secret  []byte
	ttl     time.Duration
	salt    string
	binding func(*User) string

	// now is swapped out in tests to move the clock
	now func() time.Time
}

// NewActivationTokenGenerator builds tokens bound to the active flag. A token
// issued while the account is inactive stops validating once activation flips
// the flag, so an activation link works exactly once.
func NewActivationTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	return &TokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		salt:   "authkit.activation",
		binding: func(u *User) string {
			return strconv.FormatBool(u.Active)
		},
		now: time.Now,
	}
}

// NewPasswordResetTokenGenerator builds tokens bound to the password hash and
// the last-login timestamp. Changing the password kills every outstanding
// reset token at once; so does logging in with the old password.
func NewPasswordResetTokenGenerator(secret string, ttl time.Duration) *TokenGenerator {
	return &TokenGenerator{
		secret: []byte(secret),
		ttl:    ttl,
		salt:   "authkit.password-reset",
		binding: func(u *User) string {
			login := int64(0)
			if u.LastLogin != nil {
				login = u.LastLogin.Unix()
			}
			return u.PasswordHash + "|" + strconv.FormatInt(login, 10)
		},
		now: time.Now,
	}
}

// Issue generates a token for the user's current state.
func (g *TokenGenerator) Issue(u *User) string {
	return g.tokenAt(u, g.now().Unix())
}

// Check reports whether token was issued for this user's *current* state
// within the expiry window. It returns false - never an error - on malformed
// input, expired timestamps and state mismatches; callers must not tell the
// user which one it was.
func (g *TokenGenerator) Check(u *User, token string) bool {
	if u == nil || token == "" {
		return false
	}
	tsPart, _, found := strings.Cut(token, "-")
	if !found {
		return false
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts <= 0 {
		return false
	}

	now := g.now().Unix()
	if ts > now || now-ts > int64(g.ttl.Seconds()) {
		return false
	}

	expected := g.tokenAt(u, ts)
	return hmac.Equal([]byte(expected), []byte(token))
}

func (g *TokenGenerator) tokenAt(u *User, issuedAt int64) string {
	ts := strconv.FormatInt(issuedAt, 36)
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(g.salt))
	mac.Write([]byte{0})
	mac.Write([]byte(u.ID))
	mac.Write([]byte{0})
	mac.Write([]byte(g.binding(u)))
	mac.Write([]byte{0})
	mac.Write([]byte(ts))
	sig := hex.EncodeToString(mac.Sum(nil))[:40]
	return ts + "-" + sig
}
