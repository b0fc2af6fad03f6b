// Package oauth2 drives the three-legged authorization-code exchange with
// an external identity provider. It owns the two outbound HTTPS calls
// (token exchange, profile fetch) and reports their failures as typed
// errors; reconciling the returned profile with the local user store is the
// caller's job via the HandleUser callback.
package oauth2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Broker failures, surfaced to the OnError callback.
var (
	// ErrTokenExchange covers a failed exchange call as well as a
	// response with no access token
	ErrTokenExchange = errors.New("oauth2: token exchange failed")

	// ErrProfileFetch covers a failed or non-success profile fetch
	ErrProfileFetch = errors.New("oauth2: profile fetch failed")

	// ErrMissingEmail means the provider profile has no email, which is
	// the required reconciliation key
	ErrMissingEmail = errors.New("oauth2: provider did not return an email")
)

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// HandleUserFunc receives the provider profile after a successful flow.
type HandleUserFunc func(email, displayName string, w http.ResponseWriter, r *http.Request)

// ErrorFunc receives broker failures. The error is one of the sentinels
// above, possibly wrapped with detail.
type ErrorFunc func(err error, w http.ResponseWriter, r *http.Request)

// Google performs the authorization-code flow against Google.
type Google struct {
	Config oauth2.Config

	// UserInfoURL is overridable for tests
	UserInfoURL string

	// HTTPTimeout bounds each outbound call so a slow provider cannot
	// hang the request
	HTTPTimeout time.Duration

	HandleUser HandleUserFunc
	OnError    ErrorFunc
}

// NewGoogle builds a broker with the standard email+profile scopes. Empty
// arguments fall back to the usual environment variables.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	if clientID == "" {
		clientID = os.Getenv("OAUTH2_GOOGLE_CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("OAUTH2_GOOGLE_CLIENT_SECRET")
	}
	if redirectURL == "" {
		redirectURL = os.Getenv("OAUTH2_GOOGLE_CALLBACK_URL")
	}
	return &Google{
		Config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		UserInfoURL: defaultUserInfoURL,
		HTTPTimeout: 10 * time.Second,
	}
}

// HandleRedirect sends the user agent to the provider's authorize URL with
// a fresh state cookie.
func (g *Google) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	state := generateStateCookie(w)
	http.Redirect(w, r, g.Config.AuthCodeURL(state), http.StatusFound)
}

// userInfo is the subset of the provider profile we consume. Everything
// else is transient and never persisted.
type userInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleCallback processes the provider redirect: verifies state, exchanges
// the code, fetches the profile, and hands the identity to HandleUser. Every
// failure goes through OnError; nothing here hangs or panics the request.
func (g *Google) HandleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, _ := r.Cookie("oauthstate")
	if stateCookie == nil || r.FormValue("state") != stateCookie.Value {
		clearStateCookie(w)
		g.fail(fmt.Errorf("%w: state mismatch", ErrTokenExchange), w, r)
		return
	}
	clearStateCookie(w)

	ctx, cancel := context.WithTimeout(r.Context(), g.HTTPTimeout)
	defer cancel()

	code := r.FormValue("code")
	token, err := g.Config.Exchange(ctx, code)
	if err != nil {
		g.fail(fmt.Errorf("%w: %v", ErrTokenExchange, err), w, r)
		return
	}
	if token.AccessToken == "" {
		g.fail(fmt.Errorf("%w: empty access token", ErrTokenExchange), w, r)
		return
	}

	info, err := g.fetchUserInfo(ctx, token)
	if err != nil {
		g.fail(err, w, r)
		return
	}
	if info.Email == "" {
		g.fail(ErrMissingEmail, w, r)
		return
	}

	g.HandleUser(info.Email, info.Name, w, r)
}

func (g *Google) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	client := &http.Client{Timeout: g.HTTPTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProfileFetch, resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	return &info, nil
}

func (g *Google) fail(err error, w http.ResponseWriter, r *http.Request) {
	if g.OnError != nil {
		g.OnError(err, w, r)
		return
	}
	log.Println("oauth2 callback error: ", err)
	http.Error(w, "Authentication failed", http.StatusUnauthorized)
}
