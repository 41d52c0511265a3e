package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
)

// Repository persists notifications. Order services build one on their
// transaction handle so notifications commit with the status change.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type listQuery struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

func (r *Repository) owned(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *Repository) Create(ctx context.Context, rows ...*models.Notification) error {
	if len(rows) == 0 {
		return nil
	}
	for _, n := range rows {
		if !n.Type.IsValid() {
			return fmt.Errorf("notifications: unknown type %q", n.Type)
		}
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// List returns up to Limit+1 rows, newest first, so the caller can tell
// whether another page follows.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Notification, error) {
	query := r.owned(ctx, q.UserID)
	if q.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var rows []models.Notification
	err := pagination.Apply(query, "notifications", q.Cursor, q.Limit).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at unless already set and reports whether the
// notification exists for userID at all.
func (r *Repository) MarkRead(ctx context.Context, userID, id uuid.UUID, now time.Time) (bool, error) {
	res := r.owned(ctx, userID).
		Where("id = ?", id).
		UpdateColumn("read_at", gorm.Expr("COALESCE(read_at, ?)", now))
	return res.RowsAffected > 0, res.Error
}

func (r *Repository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.owned(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

func (r *Repository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.owned(ctx, userID).Where("read_at IS NULL").Count(&n).Error
	return n, err
}

// DeleteReadBefore purges notifications read before cutoff. Unread rows are
// kept regardless of age.
func (r *Repository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
