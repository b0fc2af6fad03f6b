// Package client provides a programmatic consumer for an authkit server:
// it logs in with password credentials, captures the issued session JWT,
// and exposes an http.Client that sends it as a bearer token, re-logging
// in when the token expires.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// RefreshThreshold is how close to expiry a token gets before the next
// request triggers a fresh login.
const RefreshThreshold = 5 * time.Minute

// Credential is an issued token with its expiry.
type Credential struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpiringSoon reports whether the token expires within the given window.
func (c *Credential) IsExpiringSoon(within time.Duration) bool {
	return time.Now().Add(within).After(c.ExpiresAt)
}

// CredentialsFunc supplies the identifier and password for a login. It is
// called on first use and again whenever the token needs renewing, so
// implementations can prompt or read from a keychain rather than holding
// the password in memory.
type CredentialsFunc func(ctx context.Context) (identifier, password string, err error)

// StaticCredentials returns a CredentialsFunc for a fixed pair.
func StaticCredentials(identifier, password string) CredentialsFunc {
	return func(ctx context.Context) (string, string, error) {
		return identifier, password, nil
	}
}

// CredentialCache persists issued tokens between processes, keyed by
// server URL. See the stores/fs subpackage for a file-backed one.
type CredentialCache interface {
	GetCredential(serverURL string) (*Credential, error)
	SetCredential(serverURL string, cred *Credential) error
	RemoveCredential(serverURL string) error
}

// AuthClient manages a login session against one authkit server.
type AuthClient struct {
	mu          sync.Mutex
	serverURL   string
	credentials CredentialsFunc
	cache       CredentialCache
	cred        *Credential

	loginPath     string
	tokenCookie   string
	tokenLifetime time.Duration

	httpClient    *http.Client
	baseTransport http.RoundTripper
}

// ClientOption configures an AuthClient.
type ClientOption func(*AuthClient)

// WithLoginPath overrides the login endpoint path.
func WithLoginPath(path string) ClientOption {
	return func(c *AuthClient) { c.loginPath = path }
}

// WithTokenCookieName overrides the cookie the token is read from.
func WithTokenCookieName(name string) ClientOption {
	return func(c *AuthClient) { c.tokenCookie = name }
}

// WithTransport sets the base transport requests go out on.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) { c.baseTransport = transport }
}

// WithCredentialCache persists tokens across processes. Cache failures are
// non-fatal; the client just logs in again.
func WithCredentialCache(cache CredentialCache) ClientOption {
	return func(c *AuthClient) { c.cache = cache }
}

// NewAuthClient builds a client for the given server. Credentials are not
// used until the first request or explicit Login.
func NewAuthClient(serverURL string, credentials CredentialsFunc, opts ...ClientOption) *AuthClient {
	if u, err := url.Parse(serverURL); err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}

	c := &AuthClient{
		serverURL:     serverURL,
		credentials:   credentials,
		loginPath:     "/auth/login",
		tokenCookie:   "AuthkitAuthToken",
		tokenLifetime: time.Hour,
		baseTransport: http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient = &http.Client{
		Transport: &authTransport{client: c, base: c.baseTransport},
	}
	return c
}

// ServerURL returns the server this client talks to.
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// HTTPClient returns an http.Client that authenticates every request.
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// Token returns a valid bearer token, logging in if there is none or the
// current one is about to expire.
func (c *AuthClient) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cred == nil && c.cache != nil {
		if cached, err := c.cache.GetCredential(c.serverURL); err == nil && cached != nil {
			c.cred = cached
		}
	}
	if c.cred != nil && !c.cred.IsExpiringSoon(RefreshThreshold) {
		return c.cred.Token, nil
	}
	if err := c.login(ctx); err != nil {
		return "", err
	}
	return c.cred.Token, nil
}

// Login authenticates immediately, replacing any held token.
func (c *AuthClient) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

// Logout drops the held token. The next request logs in again.
func (c *AuthClient) Logout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cred = nil
	if c.cache != nil {
		c.cache.RemoveCredential(c.serverURL)
	}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

// login is called with the mutex held.
func (c *AuthClient) login(ctx context.Context) error {
	identifier, password, err := c.credentials(ctx)
	if err != nil {
		return fmt.Errorf("client: obtaining credentials: %w", err)
	}

	body, err := json.Marshal(loginRequest{Identifier: identifier, Password: password})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+c.loginPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// The login endpoint answers with a redirect; the token rides on a
	// Set-Cookie either way, so redirects are not followed.
	plain := &http.Client{
		Transport:     c.baseTransport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error { return http.ErrUseLastResponse },
	}
	resp, err := plain.Do(req)
	if err != nil {
		return fmt.Errorf("client: login request: %w", err)
	}
	resp.Body.Close()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == c.tokenCookie && cookie.Value != "" {
			expires := cookie.Expires
			if expires.IsZero() {
				expires = time.Now().Add(c.tokenLifetime)
			}
			c.cred = &Credential{Token: cookie.Value, ExpiresAt: expires}
			if c.cache != nil {
				c.cache.SetCredential(c.serverURL, c.cred)
			}
			return nil
		}
	}
	return fmt.Errorf("client: login rejected (status %d)", resp.StatusCode)
}
