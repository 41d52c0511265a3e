package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service reads and edits the caller's own profile.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error)
	UpdateDetails(ctx context.Context, userID uuid.UUID, req UpdateDetailsRequest) (*UserDTO, error)
}

type profileRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error)
}

type service struct {
	repo        profileRepository
	passwordCfg config.PasswordConfig
}

// NewService builds the profile service.
func NewService(repo profileRepository, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("user repository required")
	}
	return &service{repo: repo, passwordCfg: passwordCfg}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*UserDTO, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(user), nil
}

func (s *service) UpdateDetails(ctx context.Context, userID uuid.UUID, req UpdateDetailsRequest) (*UserDTO, error) {
	fields := map[string]any{}
	setTrimmed := func(column string, value *string) {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}
	setTrimmed("first_name", req.FirstName)
	setTrimmed("last_name", req.LastName)
	setTrimmed("company", req.Company)
	setTrimmed("position", req.Position)

	if req.Password != nil {
		if err := security.CheckPasswordStrength(*req.Password); err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "weak password").
				WithDetails(map[string]string{"password": err.Error()})
		}
		hash, err := security.HashPassword(*req.Password, s.passwordCfg)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		fields["password_hash"] = hash
	}

	for _, column := range []string{"first_name", "last_name"} {
		if v, ok := fields[column]; ok && v == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
				WithDetails(map[string]string{column: "is required"})
		}
	}

	user, err := s.repo.UpdateFields(ctx, userID, fields)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return FromModel(user), nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
}
