package auth

import (
	"github.com/angelmondragon/farmlink-backend/internal/users"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// LoginRequest captures the credentials sent to the login endpoint.
type LoginRequest struct {
	ContactNumber string `json:"contact_number" validate:"required,min=7,max=20"`
	Password      string `json:"password" validate:"required"`
}

// RegisterRequest contains the payload required to open a customer or farmer account.
type RegisterRequest struct {
	Name          string         `json:"name" validate:"required,max=120"`
	ContactNumber string         `json:"contact_number" validate:"required,contact_number"`
	Email         *string        `json:"email,omitempty" validate:"omitempty,email"`
	Address       *string        `json:"address,omitempty" validate:"omitempty,max=255"`
	Role          enums.UserRole `json:"role" validate:"required"`
	Password      string         `json:"password" validate:"required,min=8"`
}

// LoginResponse contains the tokens and user produced by a successful login or registration.
type LoginResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	User         *users.UserDTO `json:"user"`
}
