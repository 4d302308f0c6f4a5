package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// User represents an account; contact_number is the login identifier.
type User struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name          string         `gorm:"column:name;not null"`
	ContactNumber string         `gorm:"column:contact_number;not null;uniqueIndex"`
	Email         *string        `gorm:"column:email;uniqueIndex"`
	Address       *string        `gorm:"column:address"`
	Role          enums.UserRole `gorm:"column:role;not null"`
	PasswordHash  string         `gorm:"column:password_hash;not null"`
	IsActive      bool           `gorm:"column:is_active;not null;default:true"`
	LastLoginAt   *time.Time     `gorm:"column:last_login_at"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
