package users

import (
	"context"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists accounts and their email confirmation keys.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) row(ctx context.Context, id uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
}

func firstUser(tx *gorm.DB, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := tx.Where(query, args...).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	// is_active has a column default, so the false value must be written explicitly
	if err := r.db.WithContext(ctx).Select("*").Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByEmail matches case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return firstUser(r.db.WithContext(ctx), "lower(email) = lower(?)", email)
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return firstUser(r.db.WithContext(ctx), "id = ?", id)
}

// LockByID loads the user row with FOR UPDATE. Basket mutations, checkout and
// partner imports take this lock so one user's writes run one at a time.
func (r *Repository) LockByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return firstUser(db.ForUpdate(r.db.WithContext(ctx)), "id = ?", id)
}

func (r *Repository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.row(ctx, id).UpdateColumn("last_login_at", at).Error
}

// Activate marks the account as confirmed.
func (r *Repository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.row(ctx, id).Updates(map[string]any{"is_active": true, "updated_at": time.Now().UTC()}).Error
}

// UpdateFields writes the provided columns and returns the refreshed row.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (*models.User, error) {
	if len(fields) > 0 {
		fields["updated_at"] = time.Now().UTC()
		if err := r.row(ctx, id).Updates(fields).Error; err != nil {
			return nil, err
		}
	}
	return r.FindByID(ctx, id)
}

// CreateConfirmToken stores a confirmation key for the user.
func (r *Repository) CreateConfirmToken(ctx context.Context, token *models.ConfirmEmailToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

// FindConfirmToken looks up a confirmation key together with the user email.
func (r *Repository) FindConfirmToken(ctx context.Context, key string) (*models.ConfirmEmailToken, error) {
	var token models.ConfirmEmailToken
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&token).Error; err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteConfirmTokens removes every outstanding key of the user.
func (r *Repository) DeleteConfirmTokens(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.ConfirmEmailToken{}).Error
}

// DeleteExpiredConfirmTokens removes keys that can no longer activate an account.
func (r *Repository) DeleteExpiredConfirmTokens(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.ConfirmEmailToken{})
	return result.RowsAffected, result.Error
}
