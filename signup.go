package authkit

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// RegistrationForm carries the submitted registration fields.
type RegistrationForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Phone           string `json:"phone"`
	DateOfBirth     string `json:"date_of_birth"` // "2006-01-02", optional
	Country         string `json:"country"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Terms           bool   `json:"terms"`
	Newsletter      bool   `json:"newsletter"`
}

// parseRegistrationForm accepts form-urlencoded or JSON bodies.
func parseRegistrationForm(r *http.Request) (*RegistrationForm, *AuthError) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var form RegistrationForm
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return nil, NewAuthError("parse_error", "Invalid post body", "")
		}
		return &form, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, NewAuthError("parse_error", "Error parsing form", "")
	}
	return &RegistrationForm{
		Username:        strings.TrimSpace(r.FormValue("username")),
		Email:           strings.TrimSpace(r.FormValue("email")),
		FirstName:       strings.TrimSpace(r.FormValue("first_name")),
		LastName:        strings.TrimSpace(r.FormValue("last_name")),
		Phone:           strings.TrimSpace(r.FormValue("phone")),
		DateOfBirth:     r.FormValue("date_of_birth"),
		Country:         r.FormValue("country"),
		Password:        r.FormValue("password"),
		ConfirmPassword: r.FormValue("confirm_password"),
		Terms:           r.FormValue("terms") != "",
		Newsletter:      r.FormValue("newsletter") != "",
	}, nil
}

// Validate runs field-level validation and returns one error per offending
// field. Registration only requires a password that is present and matches
// its confirmation; the strength policy applies when a password is changed
// through the reset flow. Duplicate checks are not done here; the store
// decides those.
func (f *RegistrationForm) Validate() []*AuthError {
	var errs []*AuthError
	required := []struct{ field, value, label string }{
		{"username", f.Username, "Username"},
		{"email", f.Email, "Email"},
		{"first_name", f.FirstName, "First name"},
		{"last_name", f.LastName, "Last name"},
		{"phone", f.Phone, "Phone number"},
		{"country", f.Country, "Country"},
	}
	for _, req := range required {
		if req.value == "" {
			errs = append(errs, NewAuthError(ErrCodeMissingField, req.label+" is required", req.field))
		}
	}
	if f.Email != "" && !emailRegex.MatchString(f.Email) {
		errs = append(errs, NewAuthError(ErrCodeInvalidEmail, "Invalid email format", "email"))
	}
	if !f.Terms {
		errs = append(errs, NewAuthError(ErrCodeMissingField, "You must accept the terms of service", "terms"))
	}
	if f.Password == "" {
		errs = append(errs, NewAuthError(ErrCodeMissingField, "Password is required", "password"))
	} else if f.Password != f.ConfirmPassword {
		errs = append(errs, NewAuthError(ErrCodePasswordMismatch, "Passwords don't match", "confirm_password"))
	}
	return errs
}

// ValidateNewPassword enforces the reset-flow password policy: at least 8
// characters, not purely numeric, not purely alphabetic, and matching its
// confirmation.
func ValidateNewPassword(password, confirm string) *AuthError {
	if password == "" {
		return NewAuthError(ErrCodeMissingField, "Password is required", "password")
	}
	if len(password) < 8 {
		return NewAuthError(ErrCodeWeakPassword, "Password must be at least 8 characters", "password")
	}
	allDigits, allLetters := true, true
	for _, r := range password {
		if !unicode.IsDigit(r) {
			allDigits = false
		}
		if !unicode.IsLetter(r) {
			allLetters = false
		}
	}
	if allDigits {
		return NewAuthError(ErrCodeWeakPassword, "Password cannot be entirely numeric", "password")
	}
	if allLetters {
		return NewAuthError(ErrCodeWeakPassword, "Password must contain at least one number or symbol", "password")
	}
	if password != confirm {
		return NewAuthError(ErrCodePasswordMismatch, "Passwords don't match", "confirm_password")
	}
	return nil
}

// Register creates a new inactive user from a validated form and dispatches
// exactly one activation email. Registration never creates a session.
func (a *Auth) Register(form *RegistrationForm) (*User, []*AuthError) {
	if errs := form.Validate(); len(errs) > 0 {
		return nil, errs
	}

	// Advisory pre-checks so the common duplicate case gets a precise
	// field error. The store re-verifies at write time.
	if _, err := a.Store.GetUserByUsername(form.Username); err == nil {
		return nil, []*AuthError{NewAuthError(ErrCodeUsernameTaken, "Username already exists", "username")}
	}
	if _, err := a.Store.GetUserByEmail(form.Email); err == nil {
		return nil, []*AuthError{NewAuthError(ErrCodeEmailTaken, "Email already exists", "email")}
	}

	hash, err := HashPassword(form.Password)
	if err != nil {
		log.Println("error hashing password: ", err)
		return nil, []*AuthError{NewAuthError("server_error", "Could not process registration", "")}
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     form.Username,
		Email:        form.Email,
		PasswordHash: hash,
		Active:       false,
		Role:         RoleUser,
		FirstName:    form.FirstName,
		LastName:     form.LastName,
		Country:      form.Country,
	}
	if form.Phone != "" {
		phone := form.Phone
		user.Phone = &phone
	}
	if form.DateOfBirth != "" {
		if dob, err := time.Parse("2006-01-02", form.DateOfBirth); err == nil {
			user.DateOfBirth = &dob
		} else {
			return nil, []*AuthError{NewAuthError("invalid_date", "Invalid date of birth", "date_of_birth")}
		}
	}

	if err := a.Store.CreateUser(user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			// The check-then-insert race resolved against us; the
			// write-time constraint is the authoritative signal. It
			// does not say which field collided, so neither do we.
			return nil, []*AuthError{NewAuthError(ErrCodeDuplicateUser, err.Error(), "")}
		}
		log.Println("error creating user: ", err)
		return nil, []*AuthError{NewAuthError("server_error", "Could not process registration", "")}
	}

	token := a.Activation.Issue(user)
	link := ConfirmLink(a.Config.BaseURL, user, token)
	if err := a.Email.SendActivationEmail(user.Email, user.Username, link); err != nil {
		// Best effort: the user can re-register or ask for a new link
		log.Println("error sending activation email: ", err)
	}
	return user, nil
}

// HandleRegister processes POST /auth/register.
func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	form, parseErr := parseRegistrationForm(r)
	if parseErr != nil {
		a.renderRegisterForm(w, r, form, []*AuthError{parseErr})
		return
	}

	if _, errs := a.Register(form); len(errs) > 0 {
		a.renderRegisterForm(w, r, form, errs)
		return
	}

	a.redirectWithSuccess(w, r, a.LoginURL, "Registration successful! Please check your inbox to activate your account.")
}

// ShowRegisterForm processes GET /auth/register.
func (a *Auth) ShowRegisterForm(w http.ResponseWriter, r *http.Request) {
	a.renderRegisterForm(w, r, nil, nil)
}

func (a *Auth) renderRegisterForm(w http.ResponseWriter, r *http.Request, form *RegistrationForm, errs []*AuthError) {
	if len(errs) > 0 {
		w.WriteHeader(http.StatusBadRequest)
	}
	if a.Renderer != nil {
		data := map[string]any{
			"form":    form,
			"errors":  fieldErrors(errs),
			"flashes": a.PopFlashes(r),
		}
		if err := a.Renderer.Render(w, "auth/register", data); err != nil {
			log.Println("error rendering register page: ", err)
		}
		return
	}
	// No renderer configured: fall back to JSON
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"errors": errs})
}

// fieldErrors indexes validation errors by field for templates.
func fieldErrors(errs []*AuthError) map[string]string {
	out := map[string]string{}
	for _, e := range errs {
		field := e.Field
		if field == "" {
			field = "__all__"
		}
		if _, dup := out[field]; !dup {
			out[field] = e.Message
		}
	}
	return out
}

// HandleConfirmEmail processes GET /auth/confirm/{uid}/{token}. Whatever
// goes wrong - bad encoding, unknown user, expired or consumed token - the
// user sees the same generic invalid-link message.
func (a *Auth) HandleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user := a.userFromLink(vars["uid"])

	if user == nil || !a.Activation.Check(user, vars["token"]) {
		a.redirectWithError(w, r, a.LoginURL, "This link is invalid or has expired.")
		return
	}

	if err := a.Store.ActivateUser(user.ID); err != nil {
		log.Println("error activating user: ", err)
		a.redirectWithError(w, r, a.LoginURL, "This link is invalid or has expired.")
		return
	}

	a.redirectWithSuccess(w, r, a.LoginURL, "Email confirmed. You can log in now.")
}

// userFromLink resolves the opaque uid segment of an emailed link. Returns
// nil on any failure; callers treat that the same as a bad token.
func (a *Auth) userFromLink(encodedUID string) *User {
	id, err := DecodeUID(encodedUID)
	if err != nil {
		return nil
	}
	user, err := a.Store.GetUserByID(id)
	if err != nil {
		return nil
	}
	return user
}
