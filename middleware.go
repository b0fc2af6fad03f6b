package authkit

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexedwards/scs/v2"
)

type currentUserKey struct{}

// Middleware resolves the logged-in user for downstream handlers. The
// session is consulted first, then the JWT cookie or Authorization header,
// so both browser sessions and API clients work.
type Middleware struct {
	Session *scs.SessionManager

	// Where anonymous users get sent by RequireUser
	LoginURL string

	// Query parameter carrying the original URL through the login redirect
	CallbackURLParam string

	AuthTokenHeaderName string
	AuthTokenCookieName string

	// VerifyToken validates a JWT and returns the user id it was issued for
	VerifyToken func(tokenString string) (userID string, err error)
}

func (m *Middleware) ensureDefaults() {
	if m.CallbackURLParam == "" {
		m.CallbackURLParam = "callbackURL"
	}
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
	if m.AuthTokenCookieName == "" {
		m.AuthTokenCookieName = AuthTokenCookieName
	}
	if m.LoginURL == "" {
		m.LoginURL = "/auth/login"
	}
}

// CurrentUserID returns the id of the logged-in user, or "" when anonymous.
func (m *Middleware) CurrentUserID(r *http.Request) string {
	if v, ok := r.Context().Value(currentUserKey{}).(string); ok && v != "" {
		return v
	}

	if m.Session != nil {
		if id := m.Session.GetString(r.Context(), SessionKeyUserID); id != "" {
			return id
		}
	}

	if m.VerifyToken == nil {
		return ""
	}

	// Fall back to the auth token, header first then cookie
	tokens := r.Header.Values(m.AuthTokenHeaderName)
	for _, cookie := range r.CookiesNamed(m.AuthTokenCookieName) {
		if cookie.Value != "" {
			tokens = append(tokens, cookie.Value)
		}
	}
	for _, token := range tokens {
		token = strings.TrimPrefix(token, "Bearer ")
		if userID, err := m.VerifyToken(token); err == nil && userID != "" {
			return userID
		}
	}
	return ""
}

// ExtractUser loads the logged-in user id into the request context without
// requiring one to exist.
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.ensureDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, m.withUserID(r, m.CurrentUserID(r)))
	})
}

// RequireUser rejects anonymous requests: browsers get redirected to the
// login page with a callback back to the original URL, API clients get 401.
func (m *Middleware) RequireUser(next http.Handler) http.Handler {
	m.ensureDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := m.CurrentUserID(r)
		if userID == "" {
			if m.LoginURL != "" {
				encoded := strings.Replace(url.QueryEscape(r.URL.Path), "+", "%20", -1)
				http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", m.LoginURL, m.CallbackURLParam, encoded), http.StatusFound)
			} else {
				http.Error(w, "Login required", http.StatusUnauthorized)
			}
			return
		}
		next.ServeHTTP(w, m.withUserID(r, userID))
	})
}

func (m *Middleware) withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey{}, userID))
}
