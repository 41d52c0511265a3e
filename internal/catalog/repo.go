package catalog

import (
	"context"
	"strings"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the catalog tables written by partner imports.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var rows []models.Category
	err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error
	return rows, err
}

// ListActiveShops returns shops currently accepting orders.
func (r *Repository) ListActiveShops(ctx context.Context) ([]models.Shop, error) {
	var rows []models.Shop
	err := r.db.WithContext(ctx).Where("state = ?", true).Order("name ASC").Find(&rows).Error
	return rows, err
}

// likeEscaper neutralizes LIKE wildcards in user input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListProducts returns the live listings of active shops with product,
// category, shop and parameters preloaded.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]models.ProductInfo, error) {
	query := r.db.WithContext(ctx).
		Model(&models.ProductInfo{}).
		Select("product_infos.*").
		Joins("JOIN shops ON shops.id = product_infos.shop_id").
		Joins("JOIN products ON products.id = product_infos.product_id").
		Where("shops.state = ? AND product_infos.retired_at IS NULL", true)
	if filter.ShopID != nil {
		query = query.Where("product_infos.shop_id = ?", *filter.ShopID)
	}
	if filter.CategoryID != nil {
		query = query.Where("products.category_id = ?", *filter.CategoryID)
	}
	if filter.Search != "" {
		query = query.Where(`LOWER(products.name) LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(strings.ToLower(filter.Search))+"%")
	}

	var rows []models.ProductInfo
	err := query.
		Preload("Product.Category").
		Preload("Shop").
		Preload("Parameters.Parameter").
		Order("products.name ASC").
		Order("product_infos.external_id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) FindShopByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Where("user_id = ?", ownerID).First(&shop).Error; err != nil {
		return nil, err
	}
	return &shop, nil
}

func (r *Repository) SetShopState(ctx context.Context, ownerID uuid.UUID, state bool) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("user_id = ?", ownerID).
		Updates(map[string]any{"state": state})
	return result.RowsAffected, result.Error
}
