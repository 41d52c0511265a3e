package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// UserDTO is the transport shape that omits sensitive credentials.
type UserDTO struct {
	ID          uuid.UUID      `json:"id"`
	Email       string         `json:"email"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Company     string         `json:"company"`
	Position    string         `json:"position"`
	Type        enums.UserType `json:"type"`
	IsActive    bool           `json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateUserDTO holds the data required by the repo to persist a new user.
type CreateUserDTO struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Company      string
	Position     string
	Type         enums.UserType
}

// UpdateDetailsRequest is the body of POST /user/details. Omitted fields keep
// their current value.
type UpdateDetailsRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitempty,min=1,max=150"`
	LastName  *string `json:"last_name,omitempty" validate:"omitempty,min=1,max=150"`
	Company   *string `json:"company,omitempty" validate:"omitempty,max=255"`
	Position  *string `json:"position,omitempty" validate:"omitempty,max=255"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}

	return &UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Company:     u.Company,
		Position:    u.Position,
		Type:        u.Type,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// ToModel builds an inactive account; confirmation flips IsActive.
func (c CreateUserDTO) ToModel() *models.User {
	userType := c.Type
	if userType == "" {
		userType = enums.UserTypeBuyer
	}
	return &models.User{
		Email:        c.Email,
		PasswordHash: c.PasswordHash,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		Company:      c.Company,
		Position:     c.Position,
		Type:         userType,
		IsActive:     false,
	}
}
