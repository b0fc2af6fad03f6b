package authkit

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Role of a user account
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a single account record. Username, email and (when present) phone
// are globally unique; the store enforces that at write time.
//
// PasswordHash is empty for federated-only accounts, which makes password
// login impossible for them: bcrypt never matches an empty hash.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone,omitempty"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	Role         Role       `json:"role"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	Country      string     `json:"country"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasUsablePassword reports whether password login can ever succeed for
// this account.
func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != ""
}

// UserStore owns user identity records.
//
// Implementations must enforce the uniqueness of username, email and phone
// in the write path itself (unique indexes, not application locks) and
// return ErrDuplicateUser when a write loses the race. Lookup misses are
// reported as ErrUserNotFound.
type UserStore interface {
	// CreateUser persists a new user. The caller fills every field except
	// ID/CreatedAt/UpdatedAt which the store may assign.
	CreateUser(user *User) error

	// GetUserByID retrieves a user by their ID
	GetUserByID(id string) (*User, error)

	// GetUserByEmail retrieves a user by email
	GetUserByEmail(email string) (*User, error)

	// GetUserByUsername retrieves a user by username
	GetUserByUsername(username string) (*User, error)

	// ActivateUser flips the active flag on and persists it
	ActivateUser(id string) error

	// SetPassword replaces the stored password hash
	SetPassword(id string, passwordHash string) error

	// UpdateLastLogin records a successful login timestamp
	UpdateLastLogin(id string, at time.Time) error
}

// HashPassword hashes a plaintext password with bcrypt at default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// dummyHash is compared against when a login lookup misses, so the two
// failure cases cost the same bcrypt work and return the same error.
var dummyHash, _ = HashPassword("authkit-no-such-user")

// Authenticate resolves an identifier (username, or email when it contains
// "@") and verifies the password. Every failure - unknown identifier, wrong
// password, unusable password - returns ErrInvalidCredentials; an account
// that exists but has not been activated returns ErrInactiveUser.
func Authenticate(store UserStore, identifier, password string) (*User, error) {
	var user *User
	var err error
	if strings.Contains(identifier, "@") {
		user, err = store.GetUserByEmail(identifier)
	} else {
		user, err = store.GetUserByUsername(identifier)
	}
	if err != nil || user == nil {
		// burn the same bcrypt cost as a real comparison
		CheckPassword(dummyHash, password)
		return nil, ErrInvalidCredentials
	}

	hash := user.PasswordHash
	if hash == "" {
		hash = dummyHash
	}
	if !CheckPassword(hash, password) || !user.HasUsablePassword() {
		return nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, ErrInactiveUser
	}
	return user, nil
}

// maxUsernameAttempts bounds the collision retry loop in federated
// provisioning. Past this the login fails rather than looping forever.
const maxUsernameAttempts = 8

// FindOrCreateFederated reconciles a provider profile with the local store.
// An existing user is matched by email. Otherwise a new account is created:
// username derived from the email local-part (with a short random suffix on
// collision), active immediately, and no usable password.
func FindOrCreateFederated(store UserStore, email, displayName string) (*User, error) {
	user, err := store.GetUserByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	base := strings.SplitN(email, "@", 2)[0]
	username := base
	first, last := splitDisplayName(displayName)

	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		if attempt > 0 {
			username = fmt.Sprintf("%s_%s", base, randomSuffix())
		}
		user = &User{
			ID:        uuid.NewString(),
			Username:  username,
			Email:     email,
			Active:    true,
			Role:      RoleUser,
			FirstName: first,
			LastName:  last,
		}
		err = store.CreateUser(user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, ErrDuplicateUser) {
			return nil, err
		}
		// The email itself may have been registered concurrently
		if existing, lookupErr := store.GetUserByEmail(email); lookupErr == nil {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("could not find a free username for %s: %w", email, err)
}

func splitDisplayName(name string) (first, last string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func randomSuffix() string {
	b := make([]byte, 3)
	rand.Read(b)
	return hex.EncodeToString(b)
}
