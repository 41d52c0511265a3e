package auth

import (
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
)

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse contains the access token and the authenticated user.
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        *users.UserDTO `json:"user"`
}

// RegisterRequest contains the payload required to open a buyer or shop account.
type RegisterRequest struct {
	FirstName string         `json:"first_name" validate:"required,max=150"`
	LastName  string         `json:"last_name" validate:"required,max=150"`
	Email     string         `json:"email" validate:"required,email"`
	Password  string         `json:"password" validate:"required"`
	Company   string         `json:"company" validate:"max=255"`
	Position  string         `json:"position" validate:"max=255"`
	Type      enums.UserType `json:"type,omitempty" validate:"omitempty,oneof=buyer shop"`
}

// RegisterResponse identifies the inactive account awaiting confirmation.
type RegisterResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

// ConfirmRequest activates the account owning Email with the mailed Token.
type ConfirmRequest struct {
	Email string `json:"email" validate:"required,email"`
	Token string `json:"token" validate:"required"`
}
