// Package authkit implements the identity and credential lifecycle for a
// server-rendered web application: registration with deferred activation,
// stateless single-use email tokens, session login with a remember-me
// policy, and federated login through Google OAuth2 with account
// auto-provisioning.
//
// # Architecture
//
// User: one account record with unique username/email/phone, an active
// flag, and an optional password hash (federated-only accounts have none).
//
// TokenGenerator: derives time-limited verification tokens by signing the
// user id, a mutable binding field and an issue timestamp with a server
// secret. Activation tokens bind to the active flag; reset tokens bind to
// the password hash. Because the consuming action mutates the binding
// field, every token is single-use without any token table.
//
// Auth: ties a UserStore, an EmailSender, the token generators and an scs
// session manager into the HTTP surface under /auth.
//
// # Basic Usage
//
//	store := stores.NewMemUserStore()
//	auth := authkit.New(authkit.Config{
//	    SecretKey: "change-me",
//	    BaseURL:   "https://app.example.com",
//	}, store, &authkit.ConsoleEmailSender{})
//
//	mux := http.NewServeMux()
//	mux.Handle("/", auth.Handler())
//	http.ListenAndServe(":8080", mux)
//
// Production deployments plug in stores/gorm for persistence, an
// SMTPEmailSender for delivery, and a PageRenderer for the form pages.
//
// # Security
//
// Passwords are hashed with bcrypt at default cost. Login failures return
// one generic error whether the account exists or not, and forgot-password
// always reports success, so responses cannot be used to enumerate users.
// Verification tokens are HMAC-SHA256 signed, compared in constant time,
// and expire after a configured window (24 hours by default).
//
// # Testing
//
// All handlers run against httptest.NewRequest/ResponseRecorder with the
// in-memory store; no server or database is needed.
package authkit
