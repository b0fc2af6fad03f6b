// Package stores provides UserStore implementations. The in-memory store
// here serves tests and small single-process deployments; production
// applications should use the gorm subpackage.
package stores

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roamly/authkit"
)

// MemUserStore is a concurrency-safe in-memory UserStore. Uniqueness of
// username, email and phone is enforced under one lock in the write path,
// mirroring what unique indexes do in a real database: the write is the
// authoritative duplicate check.
type MemUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*authkit.User
	byEmail map[string]string
	byName  map[string]string
	byPhone map[string]string
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{
		byID:    make(map[string]*authkit.User),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
		byPhone: make(map[string]string),
	}
}

func (s *MemUserStore) CreateUser(user *authkit.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if _, taken := s.byName[strings.ToLower(user.Username)]; taken {
		return authkit.ErrDuplicateUser
	}
	if _, taken := s.byEmail[strings.ToLower(user.Email)]; taken {
		return authkit.ErrDuplicateUser
	}
	if user.Phone != nil {
		if _, taken := s.byPhone[*user.Phone]; taken {
			return authkit.ErrDuplicateUser
		}
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	s.byID[user.ID] = &stored
	s.byName[strings.ToLower(user.Username)] = user.ID
	s.byEmail[strings.ToLower(user.Email)] = user.ID
	if user.Phone != nil {
		s.byPhone[*user.Phone] = user.ID
	}
	return nil
}

func (s *MemUserStore) GetUserByID(id string) (*authkit.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(id)
}

func (s *MemUserStore) GetUserByEmail(email string) (*authkit.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authkit.ErrUserNotFound
	}
	return s.copyOf(id)
}

func (s *MemUserStore) GetUserByUsername(username string) (*authkit.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[strings.ToLower(username)]
	if !ok {
		return nil, authkit.ErrUserNotFound
	}
	return s.copyOf(id)
}

func (s *MemUserStore) ActivateUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.Active = true
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemUserStore) SetPassword(id string, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemUserStore) UpdateLastLogin(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return authkit.ErrUserNotFound
	}
	user.LastLogin = &at
	user.UpdatedAt = time.Now()
	return nil
}

// copyOf returns a copy so callers cannot mutate the stored record without
// going through the store. Callers hold at least a read lock.
func (s *MemUserStore) copyOf(id string) (*authkit.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, authkit.ErrUserNotFound
	}
	out := *user
	return &out, nil
}
