package gorm

import (
	"time"

	"github.com/roamly/authkit"
)

// UserModel is the GORM model for users. Username, email and phone are
// unique; the database, not the application, arbitrates duplicate writes.
// Username and email uniqueness is case-insensitive, so their indexes are
// the lower() expression indexes created by AutoMigrate rather than tag
// declarations on the raw columns.
type UserModel struct {
	ID           string     `gorm:"primaryKey;size:64"`
	Username     string     `gorm:"size:255"`
	Email        string     `gorm:"size:255"`
	Phone        *string    `gorm:"size:20;uniqueIndex"`
	PasswordHash string     `gorm:"size:255"`
	Active       bool       `gorm:"default:false"`
	Role         string     `gorm:"size:20;default:user"`
	FirstName    string     `gorm:"size:255"`
	LastName     string     `gorm:"size:255"`
	DateOfBirth  *time.Time
	Country      string `gorm:"size:2"`
	LastLogin    *time.Time
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *authkit.User {
	return &authkit.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		Phone:        m.Phone,
		PasswordHash: m.PasswordHash,
		Active:       m.Active,
		Role:         authkit.Role(m.Role),
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		DateOfBirth:  m.DateOfBirth,
		Country:      m.Country,
		LastLogin:    m.LastLogin,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func UserToModel(u *authkit.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		Active:       u.Active,
		Role:         string(u.Role),
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		DateOfBirth:  u.DateOfBirth,
		Country:      u.Country,
		LastLogin:    u.LastLogin,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
