package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID            uuid.UUID      `json:"id"`
	Name          string         `json:"name"`
	ContactNumber string         `json:"contact_number"`
	Email         *string        `json:"email,omitempty"`
	Address       *string        `json:"address,omitempty"`
	Role          enums.UserRole `json:"role"`
	IsActive      bool           `json:"is_active"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Name          string
	ContactNumber string
	Email         *string
	Address       *string
	Role          enums.UserRole
	PasswordHash  string
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:            u.ID,
		Name:          u.Name,
		ContactNumber: u.ContactNumber,
		Email:         u.Email,
		Address:       u.Address,
		Role:          u.Role,
		IsActive:      u.IsActive,
		LastLoginAt:   u.LastLoginAt,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// ToModel builds an active user with a fresh id.
func (c CreateUserDTO) ToModel() *models.User {
	return &models.User{
		ID:            uuid.New(),
		Name:          c.Name,
		ContactNumber: c.ContactNumber,
		Email:         c.Email,
		Address:       c.Address,
		Role:          c.Role,
		PasswordHash:  c.PasswordHash,
		IsActive:      true,
	}
}
