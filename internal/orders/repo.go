package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const shopLinesExist = `EXISTS (
	SELECT 1 FROM order_items
	JOIN product_infos ON product_infos.id = order_items.product_info_id
	WHERE order_items.order_id = orders.id AND product_infos.shop_id = ?
)`

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Repository reads and updates placed orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	MarkPlaced(ctx context.Context, orderID, contactID uuid.UUID, at time.Time) (int64, error)
	ListBuyerOrders(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	FindBuyerOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListShopOrders(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	LockShopOrder(ctx context.Context, shopID, orderID uuid.UUID) (*models.Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID, shopID *uuid.UUID) ([]models.OrderItem, error)
	ListShops(ctx context.Context, orderID uuid.UUID) ([]models.Shop, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time) (int64, error)
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// MarkPlaced turns a basket into a new order. Zero rows means the order was
// no longer a basket.
func (r *repository) MarkPlaced(ctx context.Context, orderID, contactID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, enums.OrderStatusBasket).
		Updates(map[string]any{
			"status":     enums.OrderStatusNew,
			"contact_id": contactID,
			"placed_at":  at,
			"updated_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) ListBuyerOrders(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("orders.user_id = ? AND orders.status <> ?", userID, enums.OrderStatusBasket)
	err := pagination.Apply(q, "orders", cursor, limit).Find(&rows).Error
	return rows, err
}

func (r *repository) FindBuyerOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Contact").
		Where("id = ? AND user_id = ? AND status <> ?", orderID, userID, enums.OrderStatusBasket).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListShopOrders returns placed orders holding at least one of the shop's listings.
func (r *repository) ListShopOrders(ctx context.Context, shopID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	var rows []models.Order
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Contact").
		Where("orders.status <> ?", enums.OrderStatusBasket).
		Where(shopLinesExist, shopID)
	err := pagination.Apply(q, "orders", cursor, limit).Find(&rows).Error
	return rows, err
}

// LockShopOrder loads a placed order of the shop with a row lock.
func (r *repository) LockShopOrder(ctx context.Context, shopID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("orders.id = ? AND orders.status <> ?", orderID, enums.OrderStatusBasket).
		Where(shopLinesExist, shopID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListItems loads the lines of an order, optionally only those of one shop.
func (r *repository) ListItems(ctx context.Context, orderID uuid.UUID, shopID *uuid.UUID) ([]models.OrderItem, error) {
	var items []models.OrderItem
	q := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_items.order_id = ?", orderID).
		Preload("ProductInfo.Product.Category").
		Preload("ProductInfo.Shop").
		Preload("ProductInfo.Parameters.Parameter").
		Order("order_items.created_at ASC, order_items.id ASC")
	if shopID != nil {
		q = q.Select("order_items.*").
			Joins("JOIN product_infos ON product_infos.id = order_items.product_info_id").
			Where("product_infos.shop_id = ?", *shopID)
	}
	err := q.Find(&items).Error
	return items, err
}

// ListShops returns the distinct shops whose listings appear in the order.
func (r *repository) ListShops(ctx context.Context, orderID uuid.UUID) ([]models.Shop, error) {
	var shops []models.Shop
	err := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where(`shops.id IN (
			SELECT product_infos.shop_id FROM order_items
			JOIN product_infos ON product_infos.id = order_items.product_info_id
			WHERE order_items.order_id = ?
		)`, orderID).
		Order("shops.name ASC").
		Find(&shops).Error
	return shops, err
}

// UpdateStatus applies a transition only if the order is still in from.
func (r *repository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": at})
	return result.RowsAffected, result.Error
}
