package basket

import (
	"context"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const basketIndex = "ux_orders_one_basket_per_user"

// Repository persists baskets: orders rows with status basket and their items.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindBasket returns gorm.ErrRecordNotFound when the user has no basket yet.
func (r *Repository) FindBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, enums.OrderStatusBasket).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) CreateBasket(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	order := &models.Order{UserID: userID, Status: enums.OrderStatusBasket}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

// ListItems loads an order's lines with everything a Line view renders.
func (r *Repository) ListItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Preload("ProductInfo.Product.Category").
		Preload("ProductInfo.Shop").
		Preload("ProductInfo.Parameters.Parameter").
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// FindListings returns the live listings among ids with their shops preloaded.
func (r *Repository) FindListings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.ProductInfo, error) {
	out := make(map[uuid.UUID]models.ProductInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.ProductInfo
	if err := r.db.WithContext(ctx).Preload("Shop").Where("id IN ? AND retired_at IS NULL", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// UpsertItem sets the quantity of a listing in the order, inserting the line
// when it is not there yet.
func (r *Repository) UpsertItem(ctx context.Context, orderID, productInfoID uuid.UUID, quantity int) error {
	item := &models.OrderItem{OrderID: orderID, ProductInfoID: productInfoID, Quantity: quantity}
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "product_info_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
		}).
		Create(item).Error
}

func (r *Repository) UpdateItemQuantity(ctx context.Context, orderID, itemID uuid.UUID, quantity int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ? AND order_id = ?", itemID, orderID).
		UpdateColumn("quantity", quantity)
	return result.RowsAffected, result.Error
}

func (r *Repository) DeleteItems(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (int64, error) {
	if len(itemIDs) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("order_id = ? AND id IN ?", orderID, itemIDs).
		Delete(&models.OrderItem{})
	return result.RowsAffected, result.Error
}

// Touch bumps updated_at so basket edits are visible on the order row.
func (r *Repository) Touch(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}
