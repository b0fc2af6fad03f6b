package authkit

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// LoginForm carries a login submission. Identifier is a username, or an
// email when it contains "@".
type LoginForm struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	Remember   bool   `json:"remember"`
}

func parseLoginForm(r *http.Request) (*LoginForm, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var form LoginForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return nil, fmt.Errorf("invalid post body")
		}
		return &form, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("error parsing form")
	}
	return &LoginForm{
		Identifier: strings.TrimSpace(r.FormValue("identifier")),
		Password:   r.FormValue("password"),
		Remember:   r.FormValue("remember") != "",
	}, nil
}

// ShowLoginForm processes GET /auth/login.
func (a *Auth) ShowLoginForm(w http.ResponseWriter, r *http.Request) {
	if a.Renderer != nil {
		data := map[string]any{"flashes": a.PopFlashes(r)}
		if err := a.Renderer.Render(w, "auth/login", data); err != nil {
			log.Println("error rendering login page: ", err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Login</title></head>
<body>
<h1>Login</h1>
<form method="POST" action="/auth/login">
	<label>Username or Email: <input type="text" name="identifier" required></label>
	<label>Password: <input type="password" name="password" required></label>
	<label><input type="checkbox" name="remember"> Remember me</label>
	<button type="submit">Login</button>
</form>
</body>
</html>`)
}

// HandleLogin processes POST /auth/login. Every failure shows the same
// generic message so responses never reveal whether the account exists.
func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	form, err := parseLoginForm(r)
	if err != nil || form.Identifier == "" || form.Password == "" {
		a.redirectWithError(w, r, a.LoginURL, ErrInvalidCredentials.Error())
		return
	}

	user, err := Authenticate(a.Store, form.Identifier, form.Password)
	if err != nil {
		// ErrInactiveUser included: an unactivated account looks no
		// different from a wrong password here
		a.redirectWithError(w, r, a.LoginURL, ErrInvalidCredentials.Error())
		return
	}

	if err := a.LoginUser(w, r, user, form.Remember); err != nil {
		log.Println("error establishing session: ", err)
		a.redirectWithError(w, r, a.LoginURL, "Login failed. Please try again.")
		return
	}
	http.Redirect(w, r, a.HomeURL, http.StatusFound)
}

// ShowForgotPasswordForm processes GET /auth/forgot-password.
func (a *Auth) ShowForgotPasswordForm(w http.ResponseWriter, r *http.Request) {
	if a.Renderer != nil {
		data := map[string]any{"flashes": a.PopFlashes(r)}
		if err := a.Renderer.Render(w, "auth/forgot_password", data); err != nil {
			log.Println("error rendering forgot password page: ", err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Forgot Password</title></head>
<body>
<h1>Forgot Password</h1>
<form method="POST" action="/auth/forgot-password">
	<label>Email: <input type="email" name="email" required></label>
	<button type="submit">Send Reset Link</button>
</form>
</body>
</html>`)
}

// HandleForgotPassword processes POST /auth/forgot-password. The response is
// the same generic success message whether or not the email is registered;
// the reset email only goes out when it is.
func (a *Auth) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		a.redirectWithError(w, r, a.ForgotURL, "Please enter a valid email address.")
		return
	}
	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" || !emailRegex.MatchString(email) {
		a.redirectWithError(w, r, a.ForgotURL, "Please enter a valid email address.")
		return
	}

	if user, err := a.Store.GetUserByEmail(email); err == nil {
		token := a.Reset.Issue(user)
		link := ResetLink(a.Config.BaseURL, user, token)
		if err := a.Email.SendPasswordResetEmail(user.Email, user.Username, link); err != nil {
			log.Println("error sending reset email: ", err)
		}
	}

	a.redirectWithSuccess(w, r, a.ForgotURL,
		"If that email exists in our system, a password reset link has been sent.")
}

// ShowResetPasswordForm processes GET /reset-password/{uid}/{token}. The
// link is re-validated on every page load, not only on submit, so a token
// consumed in another tab stops working immediately.
func (a *Auth) ShowResetPasswordForm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, ok := a.validateResetLink(vars["uid"], vars["token"])
	if !ok {
		a.redirectWithError(w, r, a.ForgotURL, "This link is invalid or has expired.")
		return
	}

	if a.Renderer != nil {
		data := map[string]any{
			"uid":     vars["uid"],
			"token":   vars["token"],
			"user":    user,
			"flashes": a.PopFlashes(r),
		}
		if err := a.Renderer.Render(w, "auth/reset_password", data); err != nil {
			log.Println("error rendering reset password page: ", err)
		}
		return
	}
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>Reset Password</title></head>
<body>
<h1>Reset Password</h1>
<form method="POST" action="/reset-password/%s/%s">
	<label>New Password: <input type="password" name="new_password" required minlength="8"></label>
	<label>Confirm Password: <input type="password" name="confirm_password" required minlength="8"></label>
	<button type="submit">Reset Password</button>
</form>
</body>
</html>`, vars["uid"], vars["token"])
}

// HandleResetPassword processes POST /reset-password/{uid}/{token}.
func (a *Auth) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, ok := a.validateResetLink(vars["uid"], vars["token"])
	if !ok {
		a.redirectWithError(w, r, a.ForgotURL, "This link is invalid or has expired.")
		return
	}

	if err := r.ParseForm(); err != nil {
		a.redirectWithError(w, r, r.URL.Path, "Please fill the form correctly.")
		return
	}

	password := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")
	if pwErr := ValidateNewPassword(password, confirm); pwErr != nil {
		a.redirectWithError(w, r, r.URL.Path, pwErr.Message)
		return
	}

	hash, err := HashPassword(password)
	if err != nil {
		log.Println("error hashing password: ", err)
		a.redirectWithError(w, r, r.URL.Path, "Could not reset your password. Please try again.")
		return
	}

	// This write also invalidates the token just used and every other
	// outstanding reset token for the account
	if err := a.Store.SetPassword(user.ID, hash); err != nil {
		log.Println("error updating password: ", err)
		a.redirectWithError(w, r, r.URL.Path, "Could not reset your password. Please try again.")
		return
	}

	a.redirectWithSuccess(w, r, a.LoginURL, "Your password has been changed. You can log in now.")
}

// validateResetLink resolves and checks a reset link against the user's
// current password state.
func (a *Auth) validateResetLink(encodedUID, token string) (*User, bool) {
	user := a.userFromLink(encodedUID)
	if user == nil || !a.Reset.Check(user, token) {
		return nil, false
	}
	return user, true
}
