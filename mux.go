package authkit

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	oauth2kit "github.com/roamly/authkit/oauth2"
)

// PageRenderer produces renderable content for a named template and a
// context map. Rendering is out of scope here; apps plug in whatever
// template engine they use. When nil, the handlers fall back to minimal
// built-in HTML forms, which is enough for development.
type PageRenderer interface {
	Render(w http.ResponseWriter, name string, data map[string]any) error
}

// Session variable and cookie names
const (
	SessionKeyUserID    = "loggedInUserId"
	AuthTokenCookieName = "AuthkitAuthToken"

	flashSuccessKey = "flash.success"
	flashErrorKey   = "flash.error"
)

// Auth wires the credential stores, token generators, email dispatch and
// session management into one HTTP surface.
type Auth struct {
	Config   Config
	Store    UserStore
	Email    EmailSender
	Renderer PageRenderer

	// Session manages server-side sessions via cookies. Lifetime is the
	// remember-me duration; cookies are non-persistent by default so a
	// plain login ends when the browser closes.
	Session *scs.SessionManager

	// Token generators for the two link flavors
	Activation *TokenGenerator
	Reset      *TokenGenerator

	// Google drives the authorization-code exchange. Nil disables
	// federated login.
	Google *oauth2kit.Google

	// Redirect targets
	HomeURL   string
	LoginURL  string
	ForgotURL string

	JWTIssuer string
}

// New builds an Auth with the standard wiring. Store and Email must be set
// by the caller before serving.
func New(cfg Config, store UserStore, email EmailSender) *Auth {
	cfg.EnsureDefaults()
	a := &Auth{
		Config:     cfg,
		Store:      store,
		Email:      email,
		Activation: NewActivationTokenGenerator(cfg.SecretKey, cfg.ActivationTokenTTL),
		Reset:      NewPasswordResetTokenGenerator(cfg.SecretKey, cfg.ResetTokenTTL),
		HomeURL:    "/",
		LoginURL:   "/auth/login",
		ForgotURL:  "/auth/forgot-password",
		JWTIssuer:  "authkit",
	}

	a.Session = scs.New()
	a.Session.Lifetime = cfg.RememberMeDuration
	a.Session.IdleTimeout = cfg.SessionIdleTimeout
	// Persist=false makes cookies expire on browser close unless the login
	// opted in via RememberMe
	a.Session.Cookie.Persist = false
	a.Session.Cookie.HttpOnly = true
	a.Session.Cookie.SameSite = http.SameSiteLaxMode

	if cfg.GoogleClientID != "" {
		a.Google = oauth2kit.NewGoogle(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		a.Google.HTTPTimeout = cfg.HTTPTimeout
		a.Google.HandleUser = a.handleFederatedUser
		a.Google.OnError = a.handleOAuthError
	}
	return a
}

// Handler returns the full auth HTTP surface, wrapped in session middleware.
func (a *Auth) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/auth/register", a.ShowRegisterForm).Methods(http.MethodGet)
	r.HandleFunc("/auth/register", a.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", a.ShowLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/auth/login", a.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", a.HandleLogout).Methods(http.MethodGet)
	r.HandleFunc("/auth/confirm/{uid}/{token}", a.HandleConfirmEmail).Methods(http.MethodGet)
	r.HandleFunc("/auth/forgot-password", a.ShowForgotPasswordForm).Methods(http.MethodGet)
	r.HandleFunc("/auth/forgot-password", a.HandleForgotPassword).Methods(http.MethodPost)
	r.HandleFunc("/reset-password/{uid}/{token}", a.ShowResetPasswordForm).Methods(http.MethodGet)
	r.HandleFunc("/reset-password/{uid}/{token}", a.HandleResetPassword).Methods(http.MethodPost)
	if a.Google != nil {
		r.HandleFunc("/auth/google-login", a.Google.HandleRedirect).Methods(http.MethodGet)
		r.HandleFunc("/auth/oauth2/callback", a.Google.HandleCallback).Methods(http.MethodGet)
	}
	return a.Session.LoadAndSave(r)
}

// LoginUser converts a validated identity into an authenticated session.
// remember=false leaves the session cookie ephemeral; remember=true makes it
// persistent for Config.RememberMeDuration. Multiple concurrent sessions per
// user are allowed.
func (a *Auth) LoginUser(w http.ResponseWriter, r *http.Request, user *User, remember bool) error {
	ctx := r.Context()

	// New session token on privilege change
	if err := a.Session.RenewToken(ctx); err != nil {
		return err
	}
	a.Session.Put(ctx, SessionKeyUserID, user.ID)
	a.Session.RememberMe(ctx, remember)

	now := time.Now()
	if err := a.Store.UpdateLastLogin(user.ID, now); err != nil {
		slog.Warn("failed to record last login", "user", user.ID, "err", err)
	}

	// Also drop a JWT cookie for API and gRPC consumers
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"iss": a.JWTIssuer,
		"aud": string(user.Role),
		"exp": now.Add(time.Hour).Unix(),
		"iat": now.Unix(),
	})
	tokenString, err := token.SignedString([]byte(a.Config.SecretKey))
	if err != nil {
		slog.Warn("error signing auth token", "err", err)
		return nil
	}
	maxAge := int(time.Hour.Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     AuthTokenCookieName,
		Value:    tokenString,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  now.Add(time.Hour),
		HttpOnly: true,
	})
	return nil
}

// LogoutUser discards the session and clears the auth cookies.
func (a *Auth) LogoutUser(w http.ResponseWriter, r *http.Request) {
	if err := a.Session.Destroy(r.Context()); err != nil {
		slog.Warn("error destroying session", "err", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    AuthTokenCookieName,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
}

func (a *Auth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	a.LogoutUser(w, r)
	http.Redirect(w, r, a.LoginURL, http.StatusFound)
}

// VerifyAuthToken validates a session JWT and returns the user id it was
// issued for. Used by the HTTP middleware and the gRPC interceptors.
func (a *Auth) VerifyAuthToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return []byte(a.Config.SecretKey), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", jwt.ErrTokenUnverifiable
	}
	return token.Claims.GetSubject()
}

// Middleware returns a request middleware wired to this Auth's session and
// token verifier.
func (a *Auth) Middleware() *Middleware {
	return &Middleware{
		Session:     a.Session,
		LoginURL:    a.LoginURL,
		VerifyToken: a.VerifyAuthToken,
	}
}

// handleFederatedUser is invoked by the OAuth broker after a successful
// exchange + profile fetch. It reconciles the provider identity with the
// local store and starts a session directly - no password flow.
func (a *Auth) handleFederatedUser(email, displayName string, w http.ResponseWriter, r *http.Request) {
	user, err := FindOrCreateFederated(a.Store, email, displayName)
	if err != nil {
		log.Println("error provisioning federated user: ", err)
		a.FlashError(r, "Could not sign you in with Google.")
		http.Redirect(w, r, a.LoginURL, http.StatusFound)
		return
	}
	if err := a.LoginUser(w, r, user, false); err != nil {
		slog.Warn("error establishing session", "err", err)
	}
	http.Redirect(w, r, a.HomeURL, http.StatusFound)
}

// handleOAuthError surfaces broker failures as a login-page flash.
func (a *Auth) handleOAuthError(err error, w http.ResponseWriter, r *http.Request) {
	log.Println("oauth error: ", err)
	a.FlashError(r, "Google sign-in failed. Please try again.")
	http.Redirect(w, r, a.LoginURL, http.StatusFound)
}

// =============================================================================
// Flash messages
// =============================================================================

// FlashSuccess queues a one-shot success message for the next rendered page.
func (a *Auth) FlashSuccess(r *http.Request, msg string) {
	a.Session.Put(r.Context(), flashSuccessKey, msg)
}

// FlashError queues a one-shot error message for the next rendered page.
func (a *Auth) FlashError(r *http.Request, msg string) {
	a.Session.Put(r.Context(), flashErrorKey, msg)
}

// PopFlashes drains queued flash messages into a render context.
func (a *Auth) PopFlashes(r *http.Request) map[string]string {
	out := map[string]string{}
	if msg := a.Session.PopString(r.Context(), flashSuccessKey); msg != "" {
		out["success"] = msg
	}
	if msg := a.Session.PopString(r.Context(), flashErrorKey); msg != "" {
		out["error"] = msg
	}
	return out
}

func (a *Auth) redirectWithError(w http.ResponseWriter, r *http.Request, url, msg string) {
	a.FlashError(r, msg)
	http.Redirect(w, r, url, http.StatusFound)
}

func (a *Auth) redirectWithSuccess(w http.ResponseWriter, r *http.Request, url, msg string) {
	a.FlashSuccess(r, msg)
	http.Redirect(w, r, url, http.StatusFound)
}
