package auth

import (
	"cmp"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/users"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/security"
	"gorm.io/gorm"
)

const (
	confirmTokenBytes = 32
	confirmTokenTTL   = 48 * time.Hour
)

// RegisterService handles account creation and email confirmation.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Confirm(ctx context.Context, req ConfirmRequest) error
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             db.TxRunner
	Outbox         outbox.Emitter
	PasswordConfig config.PasswordConfig
}

type registerService struct {
	db          db.TxRunner
	outbox      outbox.Emitter
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	return &registerService{
		db:          params.DB,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required").
			WithDetails(map[string]string{"email": "is required"})
	}
	userType, err := enums.ParseUserType(string(cmp.Or(req.Type, enums.UserTypeBuyer)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user type").
			WithDetails(map[string]string{"type": "must be one of [buyer shop]"})
	}
	if err := security.CheckPasswordStrength(req.Password); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "weak password").
			WithDetails(map[string]string{"password": err.Error()})
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	key, err := security.NewURLToken(confirmTokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate confirm token")
	}

	var resp RegisterResponse
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user, err := userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			Company:      strings.TrimSpace(req.Company),
			Position:     strings.TrimSpace(req.Position),
			Type:         userType,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "users_email_key") {
				return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}

		token := &models.ConfirmEmailToken{
			UserID:    user.ID,
			Key:       key,
			ExpiresAt: s.now().Add(confirmTokenTTL),
		}
		if err := userRepo.CreateConfirmToken(ctx, token); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create confirm token")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventUserRegistered,
			AggregateType: enums.AggregateUser,
			AggregateID:   user.ID,
			Actor:         &outbox.ActorRef{UserID: user.ID, Type: string(user.Type)},
			Data: payloads.UserRegisteredEvent{
				UserID:       user.ID,
				Email:        user.Email,
				FirstName:    user.FirstName,
				Type:         user.Type,
				ConfirmToken: token.Key,
				ExpiresAt:    token.ExpiresAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit user registered")
		}

		resp.UserID = user.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Confirm activates the account when the token belongs to the email and has
// not expired. Every failure surfaces as the same token error.
func (s *registerService) Confirm(ctx context.Context, req ConfirmRequest) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	key := strings.TrimSpace(req.Token)
	if email == "" || key == "" {
		return pkgerrors.New(pkgerrors.CodeTokenInvalid, "token invalid or expired")
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)

		token, err := userRepo.FindConfirmToken(ctx, key)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeTokenInvalid, "token invalid or expired")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup confirm token")
		}
		user, err := userRepo.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeTokenInvalid, "token invalid or expired")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
		}
		if token.UserID != user.ID || !token.ExpiresAt.After(s.now()) {
			return pkgerrors.New(pkgerrors.CodeTokenInvalid, "token invalid or expired")
		}

		if err := userRepo.Activate(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "activate user")
		}
		if err := userRepo.DeleteConfirmTokens(ctx, user.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete confirm tokens")
		}
		return nil
	})
}
