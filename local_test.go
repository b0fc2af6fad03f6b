package authkit_test

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	ak "github.com/roamly/authkit"
	"github.com/roamly/authkit/stores"
)

func seedUser(t *testing.T, store ak.UserStore, username, email, password string, active bool) *ak.User {
	t.Helper()
	hash := ""
	if password != "" {
		var err error
		hash, err = ak.HashPassword(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
	}
	user := &ak.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       active,
		Role:         ak.RoleUser,
	}
	if err := store.CreateUser(user); err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func TestAuthenticate(t *testing.T) {
	store := stores.NewMemUserStore()
	seedUser(t, store, "alice", "alice@example.com", "Secr3t pass", true)
	seedUser(t, store, "pending", "pending@example.com", "Secr3t pass", false)
	seedUser(t, store, "fednomad", "fed@example.com", "", true) // federated, no password

	tests := []struct {
		name       string
		identifier string
		password   string
		wantErr    error
	}{
		{"by username", "alice", "Secr3t pass", nil},
		{"by email", "alice@example.com", "Secr3t pass", nil},
		{"wrong password", "alice", "wrong", ak.ErrInvalidCredentials},
		{"unknown username", "nobody", "Secr3t pass", ak.ErrInvalidCredentials},
		{"unknown email", "nobody@example.com", "Secr3t pass", ak.ErrInvalidCredentials},
		{"username with at-sign treated as email", "alice@nowhere", "Secr3t pass", ak.ErrInvalidCredentials},
		{"inactive account", "pending", "Secr3t pass", ak.ErrInactiveUser},
		{"federated account has no usable password", "fednomad", "", ak.ErrInvalidCredentials},
		{"case-insensitive username", "ALICE", "Secr3t pass", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := ak.Authenticate(store, tt.identifier, tt.password)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Authenticate: %v", err)
				}
				if user == nil {
					t.Fatal("expected a user")
				}
				return
			}
			if err != tt.wantErr {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if user != nil {
				t.Error("failed authentication must not return a user")
			}
		})
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.Store, "alice", "alice@example.com", "Secr3t pass", true)
	seedUser(t, env.Store, "pending", "pending@example.com", "Secr3t pass", false)

	cases := []url.Values{
		loginForm("nobody", "whatever"),          // unknown user
		loginForm("alice", "wrong password"),     // wrong password
		loginForm("pending", "Secr3t pass"),      // not yet activated
		loginForm("nobody@example.com", "x"),     // unknown email
	}

	var statuses []int
	var flashes []string
	for _, form := range cases {
		resp := env.postForm(t, "/auth/login", form)
		statuses = append(statuses, resp.StatusCode)
		flashes = append(flashes, env.loadFlashes(t)["error"])
	}

	for i := 1; i < len(cases); i++ {
		if statuses[i] != statuses[0] || flashes[i] != flashes[0] {
			t.Errorf("case %d differs: status %d / flash %q vs status %d / flash %q",
				i, statuses[i], flashes[i], statuses[0], flashes[0])
		}
	}
	if flashes[0] != ak.ErrInvalidCredentials.Error() {
		t.Errorf("flash = %q, want the generic credentials message", flashes[0])
	}
}

func TestLoginSetsSessionAndTokenCookies(t *testing.T) {
	env := newTestEnv(t)
	user := seedUser(t, env.Store, "alice", "alice@example.com", "Secr3t pass", true)

	resp := env.postForm(t, "/auth/login", loginForm("alice", "Secr3t pass"))
	assertRedirect(t, resp, "/")

	var session, authToken *http.Cookie
	for _, c := range resp.Cookies() {
		switch c.Name {
		case "session":
			session = c
		case ak.AuthTokenCookieName:
			authToken = c
		}
	}
	if session == nil {
		t.Fatal("no session cookie set")
	}
	if !session.Expires.IsZero() || session.MaxAge != 0 {
		t.Error("plain login should set an ephemeral session cookie")
	}
	if authToken == nil {
		t.Fatal("no auth token cookie set")
	}

	id, err := env.Auth.VerifyAuthToken(authToken.Value)
	if err != nil {
		t.Fatalf("VerifyAuthToken: %v", err)
	}
	if id != user.ID {
		t.Errorf("token subject = %q, want %q", id, user.ID)
	}
}

func TestRememberMeMakesSessionPersistent(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.Store, "alice", "alice@example.com", "Secr3t pass", true)

	form := loginForm("alice", "Secr3t pass")
	form.Set("remember", "on")
	resp := env.postForm(t, "/auth/login", form)
	assertRedirect(t, resp, "/")

	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			if c.Expires.IsZero() && c.MaxAge == 0 {
				t.Error("remember-me login should set a persistent session cookie")
			}
			return
		}
	}
	t.Fatal("no session cookie set")
}

func TestVerifyAuthTokenRejectsForgeries(t *testing.T) {
	env := newTestEnv(t)

	other := ak.New(ak.Config{SecretKey: "a-different-secret"}, env.Store, env.Email)

	seedUser(t, env.Store, "alice", "alice@example.com", "Secr3t pass", true)
	resp := env.postForm(t, "/auth/login", loginForm("alice", "Secr3t pass"))
	assertRedirect(t, resp, "/")

	var token string
	for _, c := range resp.Cookies() {
		if c.Name == ak.AuthTokenCookieName {
			token = c.Value
		}
	}
	if token == "" {
		t.Fatal("no auth token issued")
	}

	if _, err := env.Auth.VerifyAuthToken(token); err != nil {
		t.Fatalf("token should verify under the issuing key: %v", err)
	}
	if _, err := other.VerifyAuthToken(token); err == nil {
		t.Error("token must not verify under a different key")
	}
	if _, err := env.Auth.VerifyAuthToken("not.a.jwt"); err == nil {
		t.Error("malformed token must not verify")
	}

	// An attacker stripping the signature and declaring alg "none" must
	// not get past verification either.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "alice"})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("building unsigned token: %v", err)
	}
	if _, err := env.Auth.VerifyAuthToken(noneToken); err == nil {
		t.Error("unsigned token must not verify")
	}
}
