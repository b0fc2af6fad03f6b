// Package gorm implements authkit.UserStore on a relational database via
// GORM. Open the database with TranslateError enabled so unique-constraint
// violations surface as gorm.ErrDuplicatedKey.
package gorm

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/roamly/authkit"
)

// Username and email uniqueness is case-insensitive, so the unique indexes
// are built on lower() expressions that GORM's tag syntax cannot express.
var caseInsensitiveUniqueIndexes = []string{
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (lower(username))",
	"CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))",
}

// AutoMigrate runs database migrations for the authkit tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&UserModel{}); err != nil {
		return err
	}
	for _, stmt := range caseInsensitiveUniqueIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// UserStore implements authkit.UserStore using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) CreateUser(user *authkit.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	model := UserToModel(user)
	if err := s.db.Create(model).Error; err != nil {
		// The unique index decides duplicates, not any earlier read
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return authkit.ErrDuplicateUser
		}
		return err
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}

func (s *UserStore) GetUserByID(id string) (*authkit.User, error) {
	return s.getUser("id = ?", id)
}

func (s *UserStore) GetUserByEmail(email string) (*authkit.User, error) {
	return s.getUser("lower(email) = lower(?)", email)
}

func (s *UserStore) GetUserByUsername(username string) (*authkit.User, error) {
	return s.getUser("lower(username) = lower(?)", username)
}

func (s *UserStore) getUser(query string, arg any) (*authkit.User, error) {
	var model UserModel
	if err := s.db.First(&model, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authkit.ErrUserNotFound
		}
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) ActivateUser(id string) error {
	return s.updateUser(id, map[string]any{"active": true})
}

func (s *UserStore) SetPassword(id string, passwordHash string) error {
	return s.updateUser(id, map[string]any{"password_hash": passwordHash})
}

func (s *UserStore) UpdateLastLogin(id string, at time.Time) error {
	return s.updateUser(id, map[string]any{"last_login": at})
}

func (s *UserStore) updateUser(id string, fields map[string]any) error {
	res := s.db.Model(&UserModel{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return authkit.ErrUserNotFound
	}
	return nil
}
