package authkit

import (
	"os"
	"strings"
	"time"
)

// Default lifetimes. All of these can be overridden per deployment via Config.
const (
	DefaultActivationTokenTTL = 24 * time.Hour
	DefaultResetTokenTTL      = 24 * time.Hour
	DefaultRememberMeDuration = 14 * 24 * time.Hour
	DefaultHTTPTimeout        = 10 * time.Second
)

// Config carries all process-wide secrets and policy knobs. It is injected
// into the components that need it at construction time so tests can run
// against fixed fixtures instead of ambient globals.
type Config struct {
	// SecretKey signs verification tokens and session JWTs
	SecretKey string

	// BaseURL is the absolute prefix for links embedded in emails,
	// e.g. "https://app.example.com"
	BaseURL string

	// Google OAuth2 credentials
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Lifetime of activation links sent on registration
	ActivationTokenTTL time.Duration

	// Lifetime of password reset links
	ResetTokenTTL time.Duration

	// Session lifetime when the user checks "remember me" at login.
	// Without it the session cookie expires when the browser closes.
	RememberMeDuration time.Duration

	// SessionIdleTimeout ends server-side sessions with no activity for
	// this long. Zero disables the idle cutoff.
	SessionIdleTimeout time.Duration

	// Timeout applied to outbound HTTP calls (token exchange, profile fetch)
	HTTPTimeout time.Duration
}

// EnsureDefaults fills in zero-valued fields with reasonable defaults.
func (c *Config) EnsureDefaults() *Config {
	if c.SecretKey == "" {
		c.SecretKey = strings.TrimSpace(os.Getenv("AUTHKIT_SECRET_KEY"))
		if c.SecretKey == "" {
			c.SecretKey = "MyTestAuthKitSecretKey123456"
		}
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080"
	}
	if c.ActivationTokenTTL <= 0 {
		c.ActivationTokenTTL = DefaultActivationTokenTTL
	}
	if c.ResetTokenTTL <= 0 {
		c.ResetTokenTTL = DefaultResetTokenTTL
	}
	if c.RememberMeDuration <= 0 {
		c.RememberMeDuration = DefaultRememberMeDuration
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	return c
}
