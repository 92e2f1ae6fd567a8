package users

import (
	"time"

	"voiceclone-backend/internal/domain/access"
)

const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

type User struct {
	ID           uint        `gorm:"primaryKey"`
	Name         string      `gorm:"type:varchar(120)"`
	Email        string      `gorm:"not null;uniqueIndex:idx_users_email"`
	Password     *string     `json:"-"`
	AuthProvider string      `gorm:"type:varchar(20);not null;default:'local'"`
	GoogleSub    *string     `gorm:"uniqueIndex:idx_users_google_sub"`
	Role         access.Role `gorm:"type:varchar(16);not null;default:'user'"`
	IsVerified   bool        `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u *User) Principal() access.Principal {
	role := u.Role
	if role == "" {
		role = access.RoleUser
	}
	return access.Principal{UserID: u.ID, Email: u.Email, Role: role}
}
